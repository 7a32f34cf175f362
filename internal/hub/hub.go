// Package hub fans job events out to subscribed connections by topic.
//
// A topic is "kind:id" (for example "generation:3f2a..."). Clients never
// see topics; the transport maps their join/leave requests onto them.
// Delivery is at-most-once: a connection that is not subscribed when an
// event is published misses it, and a connection whose outbound queue is
// full has the event dropped. Late joiners are caught up by replay.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
)

// Kind is the job family a topic belongs to.
type Kind string

const (
	KindUpload     Kind = "upload"
	KindGeneration Kind = "generation"
)

// Topic builds the topic name for a job.
func Topic(kind Kind, id string) string {
	return string(kind) + ":" + id
}

// ParseTopic splits a topic into its kind and job id.
func ParseTopic(topic string) (Kind, string, bool) {
	kind, id, ok := strings.Cut(topic, ":")
	if !ok || id == "" {
		return "", "", false
	}
	return Kind(kind), id, true
}

// Message is one event as delivered to a connection. Terminal marks the
// last event of a job in a replay; it is never sent on the wire.
type Message struct {
	Event    string `json:"event"`
	Data     any    `json:"data"`
	Terminal bool   `json:"-"`
}

// Conn is a client connection able to receive messages. Send is only ever
// called from the connection's own writer goroutine. Subscribe, Unsubscribe
// and Disconnect for one connection are expected to be called sequentially.
type Conn interface {
	ID() string
	Send(msg Message) error
}

// Publisher is the narrow interface pipelines depend on.
type Publisher interface {
	Publish(topic, event string, payload any)
}

// Replayer returns the messages that bring a new subscriber of topic up to
// date: the latest progress event, or only the terminal event once the job
// has finished.
type Replayer interface {
	Replay(ctx context.Context, topic string) []Message
}

// Recorder observes hub traffic.
type Recorder interface {
	EventPublished(event string, delivered int)
	EventDropped(event string)
}

// DefaultQueueSize is the per-connection outbound buffer.
const DefaultQueueSize = 64

// Option configures a Hub.
type Option func(*Hub)

// WithReplayer enables replay-on-join.
func WithReplayer(r Replayer) Option {
	return func(h *Hub) { h.replayer = r }
}

// WithRecorder reports publish and drop counts.
func WithRecorder(r Recorder) Option {
	return func(h *Hub) { h.recorder = r }
}

// WithQueueSize overrides the per-connection outbound buffer.
func WithQueueSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// Hub routes events to the connections subscribed to their topic.
// A nil *Hub is valid and drops everything.
//
// Hub.mu is never held while waiting on a topic lock, so a slow replay only
// holds up its own topic.
type Hub struct {
	mu        sync.RWMutex
	topics    map[string]*topic
	members   map[string]*member
	replayer  Replayer
	recorder  Recorder
	queueSize int
}

// topic serializes publishes and replays for one job topic.
type topic struct {
	refs int // guarded by Hub.mu

	mu   sync.Mutex
	subs map[string]*member
	// replayed holds terminal messages already replayed to a member; the
	// matching live publish is skipped for that member.
	replayed map[string][]Message
}

type member struct {
	conn   Conn
	queue  chan Message
	topics map[string]*topic // guarded by Hub.mu
}

// New creates a hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		topics:    make(map[string]*topic),
		members:   make(map[string]*member),
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe adds conn to topic and queues the replay for that connection
// only. The replay is taken under the topic lock, so no event published to
// the topic after the snapshot can overtake it; other topics are unaffected.
func (h *Hub) Subscribe(ctx context.Context, conn Conn, name string) {
	if h == nil || name == "" {
		return
	}

	h.mu.Lock()
	m, ok := h.members[conn.ID()]
	if !ok {
		m = &member{
			conn:   conn,
			queue:  make(chan Message, h.queueSize),
			topics: make(map[string]*topic),
		}
		h.members[conn.ID()] = m
		go m.writeLoop()
	}
	t, joined := m.topics[name]
	if !joined {
		t, ok = h.topics[name]
		if !ok {
			t = &topic{subs: make(map[string]*member), replayed: make(map[string][]Message)}
			h.topics[name] = t
		}
		t.refs++
		m.topics[name] = t
	}
	h.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.subs[conn.ID()] = m
	delete(t.replayed, conn.ID())
	slog.Debug("connection joined topic", "conn_id", conn.ID(), "topic", name)

	if h.replayer == nil {
		return
	}
	for _, msg := range h.replayer.Replay(ctx, name) {
		if h.enqueue(m, msg) && msg.Terminal {
			t.replayed[conn.ID()] = append(t.replayed[conn.ID()], msg)
		}
	}
}

// Unsubscribe removes conn from topic. Unknown memberships are ignored.
func (h *Hub) Unsubscribe(conn Conn, name string) {
	if h == nil {
		return
	}

	h.mu.Lock()
	m, ok := h.members[conn.ID()]
	if !ok {
		h.mu.Unlock()
		return
	}
	t := h.detach(m, name)
	h.mu.Unlock()

	if t != nil {
		t.remove(conn.ID())
		slog.Debug("connection left topic", "conn_id", conn.ID(), "topic", name)
	}
}

// Disconnect drops every membership of conn and stops its writer.
func (h *Hub) Disconnect(conn Conn) {
	if h == nil {
		return
	}

	h.mu.Lock()
	m, ok := h.members[conn.ID()]
	if !ok {
		h.mu.Unlock()
		return
	}
	var left []*topic
	for name := range m.topics {
		left = append(left, h.detach(m, name))
	}
	delete(h.members, conn.ID())
	h.mu.Unlock()

	// The queue may only be closed once no topic can enqueue to it.
	for _, t := range left {
		t.remove(conn.ID())
	}
	close(m.queue)
}

// Publish queues an event for every current subscriber of topic. It never
// blocks on slow connections; it only waits for a replay in progress on the
// same topic.
func (h *Hub) Publish(name, event string, payload any) {
	if h == nil || name == "" {
		return
	}

	h.mu.RLock()
	t := h.topics[name]
	h.mu.RUnlock()

	delivered := 0
	if t != nil {
		msg := Message{Event: event, Data: payload}
		t.mu.Lock()
		for id, m := range t.subs {
			if t.consumeReplayed(id, msg) {
				slog.Debug("event already replayed, skipping", "conn_id", id, "event", event)
				continue
			}
			if h.enqueue(m, msg) {
				delivered++
			}
		}
		t.mu.Unlock()
	}
	if h.recorder != nil {
		h.recorder.EventPublished(event, delivered)
	}
}

// Subscribers returns the number of connections joined to topic.
func (h *Hub) Subscribers(name string) int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if t, ok := h.topics[name]; ok {
		return t.refs
	}
	return 0
}

// detach drops the membership bookkeeping of m in topic name and returns
// the topic the member still has to be removed from. Caller must hold the
// write lock.
func (h *Hub) detach(m *member, name string) *topic {
	t, ok := m.topics[name]
	if !ok {
		return nil
	}
	delete(m.topics, name)
	t.refs--
	if t.refs == 0 && h.topics[name] == t {
		delete(h.topics, name)
	}
	return t
}

func (t *topic) remove(connID string) {
	t.mu.Lock()
	delete(t.subs, connID)
	delete(t.replayed, connID)
	t.mu.Unlock()
}

// consumeReplayed reports whether msg was already delivered to connID as a
// replayed terminal event, forgetting the match. Caller must hold t.mu.
func (t *topic) consumeReplayed(connID string, msg Message) bool {
	pending := t.replayed[connID]
	if len(pending) == 0 {
		return false
	}
	for i, r := range pending {
		if sameMessage(r, msg) {
			pending = append(pending[:i], pending[i+1:]...)
			if len(pending) == 0 {
				delete(t.replayed, connID)
			} else {
				t.replayed[connID] = pending
			}
			return true
		}
	}
	return false
}

// sameMessage compares event names and the wire form of the payloads, so a
// snapshot decoded from a store matches the value it was built from.
func sameMessage(a, b Message) bool {
	if a.Event != b.Event {
		return false
	}
	ab, err := json.Marshal(a.Data)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b.Data)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// enqueue hands msg to the member's writer without blocking.
// Caller must hold the lock of a topic the member is subscribed to.
func (h *Hub) enqueue(m *member, msg Message) bool {
	select {
	case m.queue <- msg:
		return true
	default:
		slog.Warn("outbound queue full, dropping event", "conn_id", m.conn.ID(), "event", msg.Event)
		if h.recorder != nil {
			h.recorder.EventDropped(msg.Event)
		}
		return false
	}
}

func (m *member) writeLoop() {
	for msg := range m.queue {
		if err := m.conn.Send(msg); err != nil {
			slog.Debug("send to connection failed", "conn_id", m.conn.ID(), "event", msg.Event, "error", err)
		}
	}
}
