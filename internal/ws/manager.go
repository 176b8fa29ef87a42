package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"chat-client/internal/models"
	"chat-client/internal/observability"
)

var (
	ErrNotConnected = errors.New("channel not connected")
	ErrDisconnected = errors.New("channel disconnected")

	errReconnectAborted = errors.New("reconnect aborted")
)

// ackEvent carries the server's reply to a frame that requested an ack.
const ackEvent = "ack"

const lifecycleRoutingKey = "ws_events.client"

// State is the connection state of the channel.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Handler receives the raw payload of one event.
type Handler func(data json.RawMessage)

// AckFunc receives the server's acknowledgement, or the reason none will come.
type AckFunc func(data json.RawMessage, err error)

// Frame is the JSON envelope exchanged over the socket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   uint64          `json:"ack,omitempty"`
}

// TokenSource supplies the access token used in the handshake.
type TokenSource interface {
	AccessToken() string
}

// Options configures a Manager.
type Options struct {
	URL        string
	Dialer     Dialer
	DeviceID   string
	Reconnect  bool
	NewBackOff func() backoff.BackOff
}

// Manager owns the single real-time connection of the client.
type Manager struct {
	opts   Options
	tokens TokenSource

	mu            sync.Mutex
	state         State
	conn          Conn
	info          ConnInfo
	generation    uint64
	closing       bool
	stopReconnect context.CancelFunc
	pending       map[uint64]AckFunc
	nextAck       uint64

	writeMu sync.Mutex

	hmu      sync.RWMutex
	handlers map[string][]Handler

	pmu    sync.RWMutex
	online map[string]struct{}
}

// NewManager constructs a disconnected Manager.
func NewManager(opts Options, tokens TokenSource) *Manager {
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer(nil)
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = DefaultBackOff
	}
	m := &Manager{
		opts:     opts,
		tokens:   tokens,
		pending:  make(map[uint64]AckFunc),
		handlers: make(map[string][]Handler),
		online:   make(map[string]struct{}),
	}
	m.On(models.EventUserOnline, m.handlePresence)
	return m
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Info returns metadata of the live connection.
func (m *Manager) Info() (ConnInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info, m.state == StateConnected
}

// Connect opens the channel with the current access token. It is a no-op
// unless the channel is disconnected.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.closing = false
	m.generation++
	gen := m.generation
	m.state = StateConnecting
	m.mu.Unlock()

	conn, err := m.dial(ctx)
	if err != nil {
		m.mu.Lock()
		if m.generation == gen {
			m.state = StateDisconnected
		}
		m.mu.Unlock()
		observability.IncWSEvent("ws_error")
		return err
	}
	if !m.attach(conn, gen) {
		return ErrDisconnected
	}
	return nil
}

// Disconnect tears the channel down and stops reconnection. Pending acks fail
// with ErrDisconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.closing = true
	m.generation++
	conn := m.conn
	info := m.info
	wasConnected := m.state == StateConnected
	m.conn = nil
	m.state = StateDisconnected
	pending := m.takePendingLocked()
	stop := m.stopReconnect
	m.stopReconnect = nil
	m.mu.Unlock()

	m.pmu.Lock()
	m.online = make(map[string]struct{})
	m.pmu.Unlock()

	if stop != nil {
		stop()
	}
	if conn != nil {
		_ = conn.Close()
	}
	failAcks(pending, ErrDisconnected)

	if wasConnected {
		m.lifecycle("ws_disconnect", info, "client disconnect")
		m.dispatch(models.EventDisconnect, nil)
	}
}

// On registers handler for every future occurrence of event. Handlers run
// sequentially on the connection's read goroutine, in arrival order, and stay
// registered across reconnects.
func (m *Manager) On(event string, handler Handler) {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	m.handlers[event] = append(m.handlers[event], handler)
}

// Emit sends a fire-and-forget event.
func (m *Manager) Emit(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return m.write(conn, Frame{Event: event, Data: data})
}

// EmitWithAck sends event and invokes ack exactly once: with the server's
// reply, or with the error that prevented one.
func (m *Manager) EmitWithAck(event string, payload interface{}, ack AckFunc) {
	m.emitWithAck(event, payload, ack)
}

// Request is EmitWithAck as a blocking call. Cancelling ctx abandons the ack.
func (m *Manager) Request(ctx context.Context, event string, payload interface{}) (json.RawMessage, error) {
	type result struct {
		data json.RawMessage
		err  error
	}
	done := make(chan result, 1)
	id := m.emitWithAck(event, payload, func(data json.RawMessage, err error) {
		done <- result{data: data, err: err}
	})

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		m.takeAck(id)
		return nil, ctx.Err()
	}
}

// OnlineUsers returns the ids announced by user:online, sorted.
func (m *Manager) OnlineUsers() []string {
	m.pmu.RLock()
	defer m.pmu.RUnlock()
	out := make([]string, 0, len(m.online))
	for id := range m.online {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IsOnline reports whether userID has been announced online.
func (m *Manager) IsOnline(userID string) bool {
	m.pmu.RLock()
	defer m.pmu.RUnlock()
	_, ok := m.online[userID]
	return ok
}

func (m *Manager) emitWithAck(event string, payload interface{}, ack AckFunc) uint64 {
	data, err := json.Marshal(payload)
	if err != nil {
		ack(nil, err)
		return 0
	}

	m.mu.Lock()
	conn := m.conn
	if conn == nil {
		m.mu.Unlock()
		ack(nil, ErrNotConnected)
		return 0
	}
	m.nextAck++
	id := m.nextAck
	m.pending[id] = ack
	m.mu.Unlock()

	if err := m.write(conn, Frame{Event: event, Data: data, Ack: id}); err != nil {
		if cb := m.takeAck(id); cb != nil {
			cb(nil, err)
		}
	}
	return id
}

func (m *Manager) write(conn Conn, frame Frame) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteJSON(frame)
}

func (m *Manager) dial(ctx context.Context) (Conn, error) {
	header := http.Header{}
	if token := m.tokens.AccessToken(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	observability.SetDeviceID(header, m.opts.DeviceID)
	return m.opts.Dialer(ctx, m.opts.URL, header)
}

// attach installs conn if the dial that produced it is still the current one.
func (m *Manager) attach(conn Conn, gen uint64) bool {
	m.mu.Lock()
	if m.generation != gen || m.state != StateConnecting {
		m.mu.Unlock()
		_ = conn.Close()
		return false
	}
	m.conn = conn
	m.state = StateConnected
	m.info = ConnInfo{
		ConnID:      newConnID(),
		DeviceID:    m.opts.DeviceID,
		URL:         m.opts.URL,
		ConnectedAt: time.Now(),
	}
	info := m.info
	m.mu.Unlock()

	log.Printf("ws connected conn_id=%s url=%s", info.ConnID, info.URL)
	m.lifecycle("ws_connect", info, "")
	go m.readLoop(conn, gen)
	return true
}

func (m *Manager) readLoop(conn Conn, gen uint64) {
	m.dispatch(models.EventConnect, nil)

	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			m.handleDrop(conn, gen, err)
			return
		}

		if frame.Event == ackEvent {
			if cb := m.takeAck(frame.Ack); cb != nil {
				cb(frame.Data, nil)
			}
			continue
		}
		m.dispatch(frame.Event, frame.Data)
	}
}

func (m *Manager) handleDrop(conn Conn, gen uint64, cause error) {
	m.mu.Lock()
	if m.generation != gen {
		// Disconnect already tore this connection down.
		m.mu.Unlock()
		return
	}
	m.generation++
	info := m.info
	m.conn = nil
	m.state = StateDisconnected
	pending := m.takePendingLocked()
	reconnect := m.opts.Reconnect && !m.closing
	var ctx context.Context
	if reconnect {
		if m.stopReconnect != nil {
			m.stopReconnect()
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(context.Background())
		m.stopReconnect = cancel
	}
	m.mu.Unlock()

	_ = conn.Close()
	failAcks(pending, ErrDisconnected)

	log.Printf("ws dropped conn_id=%s: %v", info.ConnID, cause)
	m.lifecycle("ws_disconnect", info, cause.Error())
	m.dispatch(models.EventDisconnect, nil)

	if reconnect {
		m.reconnectLoop(ctx)
	}
}

func (m *Manager) reconnectLoop(ctx context.Context) {
	op := func() error {
		m.mu.Lock()
		if ctx.Err() != nil || m.closing || m.state != StateDisconnected {
			m.mu.Unlock()
			return backoff.Permanent(errReconnectAborted)
		}
		m.generation++
		gen := m.generation
		m.state = StateConnecting
		m.mu.Unlock()

		conn, err := m.dial(ctx)
		if err != nil {
			m.mu.Lock()
			if m.generation == gen {
				m.state = StateDisconnected
			}
			m.mu.Unlock()
			return err
		}
		if !m.attach(conn, gen) {
			return backoff.Permanent(errReconnectAborted)
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		observability.IncWSEvent("ws_error")
		log.Printf("ws reconnect failed, retrying in %s: %v", wait, err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(m.opts.NewBackOff(), ctx), notify); err != nil && !errors.Is(err, errReconnectAborted) {
		log.Printf("ws reconnect stopped: %v", err)
	}
}

func (m *Manager) dispatch(event string, data json.RawMessage) {
	observability.IncWSEvent(event)

	m.hmu.RLock()
	handlers := append([]Handler(nil), m.handlers[event]...)
	m.hmu.RUnlock()

	for _, h := range handlers {
		h(data)
	}
}

func (m *Manager) handlePresence(data json.RawMessage) {
	var evt models.PresenceEvent
	if err := json.Unmarshal(data, &evt); err != nil || evt.UserID == "" {
		return
	}
	m.pmu.Lock()
	m.online[evt.UserID] = struct{}{}
	m.pmu.Unlock()
}

func (m *Manager) takeAck(id uint64) AckFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	cb := m.pending[id]
	delete(m.pending, id)
	return cb
}

func (m *Manager) takePendingLocked() map[uint64]AckFunc {
	pending := m.pending
	m.pending = make(map[uint64]AckFunc)
	return pending
}

func failAcks(pending map[uint64]AckFunc, err error) {
	for _, cb := range pending {
		cb(nil, err)
	}
}

func (m *Manager) lifecycle(event string, info ConnInfo, reason string) {
	observability.IncWSEvent(event)
	observability.SetWSConnected(event == "ws_connect")

	_ = observability.PublishEvent(context.Background(), lifecycleRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       event,
				"conn_id":     info.ConnID,
				"url":         info.URL,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"device_id": info.DeviceID,
			},
		},
	}, observability.BuildHeaders(info.ConnID, ""))
}
