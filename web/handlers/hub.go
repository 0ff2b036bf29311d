package handlers

import (
	"log/slog"
	"sync"

	"github.com/alienxp03/agora/internal/engine"
)

// subscriberBuffer is the number of events queued per subscriber before it
// is dropped as too slow.
const subscriberBuffer = 64

// Hub fans engine events out to stream subscribers of each debate.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	debateID string
	events   chan engine.Event
	once     sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.events) })
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{})}
}

// Subscribe registers for events of a debate. The returned channel is
// closed when cancel is called, when the debate is deleted, or when the
// subscriber falls too far behind.
func (h *Hub) Subscribe(debateID string) (<-chan engine.Event, func()) {
	sub := &subscriber{
		debateID: debateID,
		events:   make(chan engine.Event, subscriberBuffer),
	}

	h.mu.Lock()
	if h.subs[debateID] == nil {
		h.subs[debateID] = make(map[*subscriber]struct{})
	}
	h.subs[debateID][sub] = struct{}{}
	h.mu.Unlock()

	return sub.events, func() { h.remove(sub) }
}

// Publish implements engine.Notifier. It never blocks.
func (h *Hub) Publish(ev engine.Event) {
	h.mu.RLock()
	var slow []*subscriber
	for sub := range h.subs[ev.DebateID] {
		select {
		case sub.events <- ev:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		slog.Warn("Dropping slow stream subscriber", "debate_id", sub.debateID)
		h.remove(sub)
	}

	if ev.Type == engine.EventDebateDeleted {
		h.closeDebate(ev.DebateID)
	}
}

// Subscribers returns the number of subscribers of a debate.
func (h *Hub) Subscribers(debateID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[debateID])
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	if subs, ok := h.subs[sub.debateID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subs, sub.debateID)
		}
	}
	h.mu.Unlock()
	sub.close()
}

func (h *Hub) closeDebate(debateID string) {
	h.mu.Lock()
	subs := h.subs[debateID]
	delete(h.subs, debateID)
	h.mu.Unlock()

	for sub := range subs {
		sub.close()
	}
}
