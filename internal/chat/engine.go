package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"chat-client/internal/models"
	"chat-client/internal/ws"
)

const (
	// PageSize is the number of messages requested per history page.
	PageSize = 20
	// A first page shorter than this ends pagination even if the server
	// might have more.
	smallHistory = 10

	RecalledPlaceholder = "Message recalled"
	sendFailedMessage   = "Send failed."
)

var (
	ErrNoConversation  = errors.New("no conversation selected")
	ErrFetchInProgress = errors.New("history fetch already in progress")
)

// RejectedError is returned when the server refuses a message:send.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return e.Reason
}

// ConversationAPI is the REST surface the engine reads from.
type ConversationAPI interface {
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	ListMessages(ctx context.Context, conversationID, cursor string, limit int) ([]models.Message, error)
	CreatePrivateConversation(ctx context.Context, userID string) (models.Conversation, error)
}

// Channel is the real-time connection the engine sends on and listens to.
type Channel interface {
	Emit(event string, payload interface{}) error
	EmitWithAck(event string, payload interface{}, ack ws.AckFunc)
	On(event string, handler ws.Handler)
}

// SendInput is the content of an outgoing message.
type SendInput struct {
	Type      string  `json:"type"`
	Text      *string `json:"text"`
	FileURL   *string `json:"fileUrl"`
	ReplyToID *string `json:"replyToId"`
}

// Engine keeps the conversation list and the open timeline in sync with the
// REST API and the real-time channel.
type Engine struct {
	api     ConversationAPI
	channel Channel

	mu            sync.Mutex
	conversations []models.Conversation
	currentID     string
	timeline      []models.Message
	seen          map[string]struct{}
	hasMore       bool
	loading       bool
	generation    uint64
	// index of the first timeline message delivered live during the
	// in-flight first page fetch
	liveFrom int

	subs subscribers
}

// NewEngine wires the engine to api and registers its event handlers on channel.
func NewEngine(api ConversationAPI, channel Channel) *Engine {
	e := &Engine{
		api:     api,
		channel: channel,
		seen:    make(map[string]struct{}),
	}
	channel.On(models.EventMessageNew, e.handleMessageNew)
	channel.On(models.EventMessageRecalled, e.handleMessageRecalled)
	channel.On(models.EventReactionUpdated, e.handleReactionUpdated)
	channel.On(models.EventConnect, e.handleConnect)
	return e
}

// FetchConversations replaces the conversation list, most recently updated first.
func (e *Engine) FetchConversations(ctx context.Context) ([]models.Conversation, error) {
	list, err := e.api.ListConversations(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.Conversation, 0, len(list))
	ids := make(map[string]struct{}, len(list))
	for _, c := range list {
		if _, dup := ids[c.ID]; dup {
			continue
		}
		ids[c.ID] = struct{}{}
		out = append(out, c.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	e.mu.Lock()
	e.conversations = out
	snapshot := cloneConversations(out)
	e.mu.Unlock()

	e.subs.notify(Change{Kind: ChangeConversations})
	return snapshot, nil
}

// SelectConversation opens id and loads its newest page. Selecting the
// already selected conversation does nothing.
func (e *Engine) SelectConversation(ctx context.Context, id string) error {
	e.mu.Lock()
	if e.currentID == id {
		e.mu.Unlock()
		return nil
	}
	e.resetTimelineLocked(id)
	e.mu.Unlock()
	e.subs.notify(Change{Kind: ChangeTimeline})

	_, err := e.FetchMessages(ctx, id, "")
	return err
}

// Reload refetches the newest page of the selected conversation.
func (e *Engine) Reload(ctx context.Context) error {
	id := e.CurrentConversationID()
	if id == "" {
		return ErrNoConversation
	}
	_, err := e.FetchMessages(ctx, id, "")
	return err
}

// LoadOlder fetches the page before the oldest message in the timeline.
func (e *Engine) LoadOlder(ctx context.Context) ([]models.Message, error) {
	e.mu.Lock()
	id := e.currentID
	var cursor string
	if len(e.timeline) > 0 {
		cursor = e.timeline[0].ID
	}
	e.mu.Unlock()

	if id == "" {
		return nil, ErrNoConversation
	}
	if cursor == "" {
		return nil, nil
	}
	return e.FetchMessages(ctx, id, cursor)
}

// FetchMessages loads one history page of conversationID and returns it as
// the server sent it. Without a cursor the page replaces the timeline and
// joins the conversation room; with one it is prepended. A result that
// arrives after another first page fetch started is returned but not applied.
func (e *Engine) FetchMessages(ctx context.Context, conversationID, cursor string) ([]models.Message, error) {
	firstPage := cursor == ""

	e.mu.Lock()
	if firstPage {
		if e.currentID != conversationID {
			e.resetTimelineLocked(conversationID)
		}
		e.generation++
		e.liveFrom = len(e.timeline)
	} else {
		if e.currentID != conversationID || !e.hasMore {
			e.mu.Unlock()
			return nil, nil
		}
		if e.loading {
			e.mu.Unlock()
			return nil, ErrFetchInProgress
		}
	}
	gen := e.generation
	e.loading = true
	e.mu.Unlock()
	e.subs.notify(Change{Kind: ChangeTimeline})

	page, err := e.api.ListMessages(ctx, conversationID, cursor, PageSize)

	e.mu.Lock()
	if e.generation != gen || e.currentID != conversationID {
		e.mu.Unlock()
		if err == nil {
			log.Printf("discarding stale history page conversation=%s", conversationID)
		}
		return page, err
	}
	e.loading = false
	if err != nil {
		e.mu.Unlock()
		e.subs.notify(Change{Kind: ChangeTimeline})
		return nil, err
	}

	if firstPage {
		e.applyFirstPageLocked(page)
	} else {
		e.applyOlderPageLocked(page)
	}
	e.mu.Unlock()
	e.subs.notify(Change{Kind: ChangeTimeline})

	if firstPage {
		if err := e.channel.Emit(models.EventConversationJoin, models.JoinRequest{ConversationID: conversationID}); err != nil {
			log.Printf("join deferred until reconnect conversation=%s: %v", conversationID, err)
		}
	}
	return page, nil
}

func (e *Engine) applyFirstPageLocked(page []models.Message) {
	var live []models.Message
	if e.liveFrom < len(e.timeline) {
		live = e.timeline[e.liveFrom:]
	}

	timeline := make([]models.Message, 0, len(page)+len(live))
	seen := make(map[string]struct{}, len(page)+len(live))
	for i := len(page) - 1; i >= 0; i-- {
		if _, dup := seen[page[i].ID]; dup {
			continue
		}
		seen[page[i].ID] = struct{}{}
		timeline = append(timeline, ingest(page[i]))
	}
	for _, m := range live {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		timeline = append(timeline, m)
	}

	e.timeline = timeline
	e.seen = seen
	e.hasMore = true
	if len(page) < PageSize {
		e.hasMore = false
	}
	if len(page) < smallHistory {
		e.hasMore = false
	}
}

func (e *Engine) applyOlderPageLocked(page []models.Message) {
	older := make([]models.Message, 0, len(page))
	for i := len(page) - 1; i >= 0; i-- {
		if _, dup := e.seen[page[i].ID]; dup {
			continue
		}
		e.seen[page[i].ID] = struct{}{}
		older = append(older, ingest(page[i]))
	}
	e.timeline = append(older, e.timeline...)
	if len(page) < PageSize {
		e.hasMore = false
		return
	}
	// the cursor would not move, so the next request would return the same page
	if len(older) == 0 {
		log.Printf("older page added no messages conversation_id=%s, ending pagination", e.currentID)
		e.hasMore = false
	}
}

// ingest copies a server message, clearing the content of a recalled one.
func ingest(m models.Message) models.Message {
	out := m.Clone()
	if out.IsRecalled {
		out.Recall()
	}
	return out
}

// SendMessage posts a message to the selected conversation over the channel
// and waits for the server's acknowledgement.
func (e *Engine) SendMessage(ctx context.Context, in SendInput) (models.Message, error) {
	id := e.CurrentConversationID()
	if id == "" {
		return models.Message{}, ErrNoConversation
	}

	type result struct {
		data json.RawMessage
		err  error
	}
	done := make(chan result, 1)
	e.channel.EmitWithAck(models.EventMessageSend, models.SendRequest{
		ConversationID: id,
		Type:           in.Type,
		Text:           in.Text,
		FileURL:        in.FileURL,
		ReplyToID:      in.ReplyToID,
	}, func(data json.RawMessage, err error) {
		done <- result{data: data, err: err}
	})

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		return models.Message{}, ctx.Err()
	}
	if r.err != nil {
		return models.Message{}, r.err
	}

	var ack models.SendAck
	if err := json.Unmarshal(r.data, &ack); err != nil {
		return models.Message{}, err
	}
	if !ack.Success {
		return models.Message{}, &RejectedError{Reason: rejectionReason(ack.Message)}
	}

	var msg models.Message
	if err := json.Unmarshal(ack.Message, &msg); err != nil {
		return models.Message{}, err
	}
	msg = ingest(msg)
	e.insertMessage(msg)
	return msg.Clone(), nil
}

func rejectionReason(raw json.RawMessage) string {
	var reason string
	if err := json.Unmarshal(raw, &reason); err == nil && reason != "" {
		return reason
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return sendFailedMessage
}

// CreatePrivateConversation opens a one-to-one conversation with userID,
// adds it to the list when new, and selects it.
func (e *Engine) CreatePrivateConversation(ctx context.Context, userID string) (models.Conversation, error) {
	conv, err := e.api.CreatePrivateConversation(ctx, userID)
	if err != nil {
		return models.Conversation{}, err
	}

	e.mu.Lock()
	if e.conversationIndexLocked(conv.ID) < 0 {
		e.conversations = append([]models.Conversation{conv.Clone()}, e.conversations...)
	}
	e.mu.Unlock()
	e.subs.notify(Change{Kind: ChangeConversations})

	if err := e.SelectConversation(ctx, conv.ID); err != nil {
		return conv, err
	}
	return conv, nil
}

func (e *Engine) handleMessageNew(data json.RawMessage) {
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.ID == "" {
		log.Printf("ignoring malformed %s event: %v", models.EventMessageNew, err)
		return
	}
	e.insertMessage(msg)
}

// insertMessage appends msg to the open timeline unless it is already there,
// and moves its conversation to the front of the list.
func (e *Engine) insertMessage(msg models.Message) {
	var changes []Change

	e.mu.Lock()
	if msg.ConversationID == e.currentID {
		if _, dup := e.seen[msg.ID]; !dup {
			e.seen[msg.ID] = struct{}{}
			e.timeline = append(e.timeline, ingest(msg))
			changes = append(changes, Change{Kind: ChangeTimeline})
		}
	}
	if idx := e.conversationIndexLocked(msg.ConversationID); idx >= 0 && !isLastMessage(e.conversations[idx], msg.ID) {
		conv := e.conversations[idx]
		last := ingest(msg)
		if last.IsRecalled {
			text := RecalledPlaceholder
			last.Text = &text
		}
		conv.LastMessage = &last
		conv.UpdatedAt = msg.CreatedAt
		if conv.UpdatedAt.IsZero() {
			conv.UpdatedAt = time.Now()
		}
		copy(e.conversations[1:idx+1], e.conversations[:idx])
		e.conversations[0] = conv
		changes = append(changes, Change{Kind: ChangeConversations})
	}
	e.mu.Unlock()

	e.subs.notify(changes...)
}

func isLastMessage(conv models.Conversation, messageID string) bool {
	return conv.LastMessage != nil && conv.LastMessage.ID == messageID
}

func (e *Engine) handleMessageRecalled(data json.RawMessage) {
	var evt models.RecallEvent
	if err := json.Unmarshal(data, &evt); err != nil || evt.MessageID == "" {
		log.Printf("ignoring malformed %s event: %v", models.EventMessageRecalled, err)
		return
	}

	var changes []Change
	e.mu.Lock()
	if evt.ConversationID == "" || evt.ConversationID == e.currentID {
		if idx := e.messageIndexLocked(evt.MessageID); idx >= 0 {
			e.timeline[idx].Recall()
			changes = append(changes, Change{Kind: ChangeTimeline})
		}
	}
	for i := range e.conversations {
		conv := &e.conversations[i]
		if evt.ConversationID != "" && conv.ID != evt.ConversationID {
			continue
		}
		if isLastMessage(*conv, evt.MessageID) {
			text := RecalledPlaceholder
			conv.LastMessage.Text = &text
			changes = append(changes, Change{Kind: ChangeConversations})
			break
		}
	}
	e.mu.Unlock()

	e.subs.notify(changes...)
}

func (e *Engine) handleReactionUpdated(data json.RawMessage) {
	var evt models.ReactionEvent
	if err := json.Unmarshal(data, &evt); err != nil || evt.MessageID == "" {
		log.Printf("ignoring malformed %s event: %v", models.EventReactionUpdated, err)
		return
	}

	e.mu.Lock()
	idx := -1
	if evt.ConversationID == "" || evt.ConversationID == e.currentID {
		idx = e.messageIndexLocked(evt.MessageID)
	}
	if idx >= 0 {
		e.timeline[idx].Reactions = models.CloneReactions(evt.Reactions)
	}
	e.mu.Unlock()

	if idx >= 0 {
		e.subs.notify(Change{Kind: ChangeTimeline})
	}
}

// handleConnect rejoins the open conversation's room after every (re)connect.
func (e *Engine) handleConnect(json.RawMessage) {
	id := e.CurrentConversationID()
	if id == "" {
		return
	}
	if err := e.channel.Emit(models.EventConversationJoin, models.JoinRequest{ConversationID: id}); err != nil {
		log.Printf("rejoin failed conversation=%s: %v", id, err)
	}
}

func (e *Engine) resetTimelineLocked(id string) {
	e.currentID = id
	e.timeline = nil
	e.seen = make(map[string]struct{})
	e.hasMore = true
	e.liveFrom = 0
}

func (e *Engine) conversationIndexLocked(id string) int {
	for i := range e.conversations {
		if e.conversations[i].ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) messageIndexLocked(id string) int {
	if _, ok := e.seen[id]; !ok {
		return -1
	}
	for i := range e.timeline {
		if e.timeline[i].ID == id {
			return i
		}
	}
	return -1
}
