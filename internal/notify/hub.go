package notify

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"algo-arena/internal/domain"
)

var ErrHubClosed = errors.New("notify hub closed")

// Envelope is an event with its position in the hub.
type Envelope struct {
	EventID  string       `json:"event_id"`
	ServerTS int64        `json:"server_ts"`
	Event    domain.Event `json:"event"`
}

// Hub keeps a bounded replay buffer and pushes new events to subscribers
// whose topic prefix matches. Slow subscribers drop events rather than
// block the producer.
type Hub struct {
	mu       sync.Mutex
	nextID   int64
	max      int
	events   []Envelope
	watchers map[chan Envelope]string
	closed   bool
}

func NewHub(max int) *Hub {
	if max <= 0 {
		max = 500
	}
	return &Hub{
		max:      max,
		watchers: map[chan Envelope]string{},
	}
}

func (h *Hub) Notify(_ context.Context, ev domain.Event) error {
	_, err := h.Append(ev)
	return err
}

func (h *Hub) Append(ev domain.Event) (Envelope, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return Envelope{}, ErrHubClosed
	}
	h.nextID++
	env := Envelope{
		EventID:  strconv.FormatInt(h.nextID, 10),
		ServerTS: time.Now().UnixMilli(),
		Event:    ev,
	}
	h.events = append(h.events, env)
	if len(h.events) > h.max {
		h.events = h.events[len(h.events)-h.max:]
	}
	for ch, prefix := range h.watchers {
		if !strings.HasPrefix(ev.Topic, prefix) {
			continue
		}
		select {
		case ch <- env:
		default:
		}
	}
	return env, nil
}

// ReplayAfter returns buffered events on topics starting with prefix whose
// id is greater than lastEventID. An empty or malformed id replays all.
func (h *Hub) ReplayAfter(prefix, lastEventID string) []Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	last, err := strconv.ParseInt(lastEventID, 10, 64)
	if err != nil {
		last = 0
	}
	out := make([]Envelope, 0, len(h.events))
	for _, env := range h.events {
		if !strings.HasPrefix(env.Event.Topic, prefix) {
			continue
		}
		id, _ := strconv.ParseInt(env.EventID, 10, 64)
		if id > last {
			out = append(out, env)
		}
	}
	return out
}

func (h *Hub) Subscribe(prefix string) chan Envelope {
	ch := make(chan Envelope, 32)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.watchers[ch] = prefix
	return ch
}

func (h *Hub) Unsubscribe(ch chan Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.watchers[ch]; ok {
		delete(h.watchers, ch)
		close(ch)
	}
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.watchers {
		close(ch)
		delete(h.watchers, ch)
	}
}
