package usecase

import (
	"sync"
	"time"

	"vr-screenshotter/internal/domain"
)

// StatusHub fans core status out to presentation subscribers. Publishing
// never blocks: a slow subscriber loses events.
type StatusHub struct {
	mu        sync.RWMutex
	listeners map[chan domain.StatusEvent]struct{}
	last      map[domain.StatusType]domain.StatusEvent
}

func NewStatusHub() *StatusHub {
	return &StatusHub{
		listeners: make(map[chan domain.StatusEvent]struct{}),
		last:      make(map[domain.StatusType]domain.StatusEvent),
	}
}

func (h *StatusHub) Publish(ev domain.StatusEvent) {
	if h == nil {
		return
	}
	if ev.Ts.IsZero() {
		ev.Ts = time.Now().UTC()
	}
	// Sends stay under the lock: Unsubscribe closes channels while holding it.
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last[ev.Type] = ev
	for ch := range h.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe returns a channel receiving status events. Caller must Unsubscribe.
func (h *StatusHub) Subscribe() chan domain.StatusEvent {
	ch := make(chan domain.StatusEvent, 64)
	h.mu.Lock()
	h.listeners[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *StatusHub) Unsubscribe(ch chan domain.StatusEvent) {
	h.mu.Lock()
	if _, ok := h.listeners[ch]; ok {
		delete(h.listeners, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Last returns the most recent event of each type, used to prime new subscribers.
func (h *StatusHub) Last() []domain.StatusEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]domain.StatusEvent, 0, len(h.last))
	for _, ev := range h.last {
		out = append(out, ev)
	}
	return out
}

// LastOf returns the most recent event of type t.
func (h *StatusHub) LastOf(t domain.StatusType) (domain.StatusEvent, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ev, ok := h.last[t]
	return ev, ok
}
