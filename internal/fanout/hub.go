package fanout

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	EventType     = "new-webhook-event"
	DefaultBuffer = 64
)

// Message is what every viewer receives. Topic routes the message and is not
// part of the wire format.
type Message struct {
	Type    string          `json:"type"`
	Topic   string          `json:"-"`
	Payload json.RawMessage `json:"payload"`
}

func NewEvent(topic string, payload []byte) Message {
	return Message{
		Type:    EventType,
		Topic:   topic,
		Payload: json.RawMessage(payload),
	}
}

// Subscriber is one connected viewer. An empty Topic receives every message.
type Subscriber struct {
	ID    uuid.UUID
	Topic string
	C     <-chan Message

	ch     chan Message
	closed bool
}

func (s *Subscriber) accepts(m Message) bool {
	return s.Topic == "" || m.Topic == "" || s.Topic == m.Topic
}

// Hub delivers each broadcast to the viewers connected at that moment. There
// is no backlog: a viewer only sees messages broadcast after it subscribed.
type Hub struct {
	mu          sync.Mutex
	subscribers map[uuid.UUID]*Subscriber
	buffer      int
	log         zerolog.Logger
}

func NewHub(buffer int, logger zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	return &Hub{
		subscribers: make(map[uuid.UUID]*Subscriber),
		buffer:      buffer,
		log:         logger,
	}
}

func (h *Hub) Subscribe(topic string) *Subscriber {
	ch := make(chan Message, h.buffer)
	s := &Subscriber{
		ID:    uuid.New(),
		Topic: topic,
		C:     ch,
		ch:    ch,
	}

	h.mu.Lock()
	h.subscribers[s.ID] = s
	n := len(h.subscribers)
	h.mu.Unlock()

	h.log.Debug().Str("viewer", s.ID.String()).Str("topic", topic).Int("viewers", n).Msg("viewer connected")

	return s
}

// Unsubscribe removes s and closes its channel. Calling it twice is a no-op.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	delete(h.subscribers, s.ID)
	close(s.ch)

	h.log.Debug().Str("viewer", s.ID.String()).Int("viewers", len(h.subscribers)).Msg("viewer disconnected")
}

// Broadcast hands m to every matching viewer and returns how many got it.
// Broadcasts are serialised so all viewers see the same order; a viewer
// whose buffer is full misses the message.
func (h *Hub) Broadcast(m Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for _, s := range h.subscribers {
		if !s.accepts(m) {
			continue
		}

		select {
		case s.ch <- m:
			delivered++
		default:
			h.log.Warn().Str("viewer", s.ID.String()).Msg("viewer is too slow, dropping message")
		}
	}

	return delivered
}

// Len returns the number of connected viewers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subscribers)
}

// Close disconnects every viewer.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for _, s := range h.subscribers {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		h.Unsubscribe(s)
	}
}
