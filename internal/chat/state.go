package chat

import (
	"sync"

	"chat-client/internal/models"
)

// ChangeKind names the part of the engine state that changed.
type ChangeKind int

const (
	ChangeConversations ChangeKind = iota + 1
	ChangeTimeline
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeConversations:
		return "conversations"
	case ChangeTimeline:
		return "timeline"
	default:
		return "unknown"
	}
}

// Change is delivered to subscribers after the engine state was updated.
type Change struct {
	Kind ChangeKind
}

type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Change)
}

func (s *subscribers) add(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(Change))
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.fns, id)
		s.mu.Unlock()
	}
}

func (s *subscribers) notify(changes ...Change) {
	if len(changes) == 0 {
		return
	}
	s.mu.Lock()
	fns := make([]func(Change), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}

// Subscribe registers fn for state changes. Calls happen without the engine
// lock held, so fn may read snapshots. The returned func unsubscribes.
func (e *Engine) Subscribe(fn func(Change)) func() {
	return e.subs.add(fn)
}

// Conversations returns a copy of the conversation list.
func (e *Engine) Conversations() []models.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneConversations(e.conversations)
}

// CurrentConversationID returns the selected conversation id, or "".
func (e *Engine) CurrentConversationID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentID
}

// CurrentConversation returns the selected conversation if it is in the list.
func (e *Engine) CurrentConversation() (models.Conversation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx := e.conversationIndexLocked(e.currentID); idx >= 0 {
		return e.conversations[idx].Clone(), true
	}
	return models.Conversation{}, false
}

// Timeline returns a copy of the open timeline, oldest first.
func (e *Engine) Timeline() []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Message, len(e.timeline))
	for i := range e.timeline {
		out[i] = e.timeline[i].Clone()
	}
	return out
}

func (e *Engine) HasMore() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasMore
}

func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// Reset drops all state, as after a logout.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.conversations = nil
	e.resetTimelineLocked("")
	e.hasMore = false
	e.loading = false
	e.generation++
	e.mu.Unlock()

	e.subs.notify(Change{Kind: ChangeConversations}, Change{Kind: ChangeTimeline})
}

func cloneConversations(in []models.Conversation) []models.Conversation {
	out := make([]models.Conversation, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
