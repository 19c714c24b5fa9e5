package usecase

import (
	"sort"
	"sync"

	"vr-screenshotter/internal/domain"
)

// CaptureQueue maps runtime handles to pending captures. It is the single
// source of truth for "is a capture in flight". Writes happen on the polling
// goroutine; status readers may call from anywhere.
type CaptureQueue struct {
	mu    sync.RWMutex
	items map[domain.Handle]domain.PendingCapture
}

func NewCaptureQueue() *CaptureQueue {
	return &CaptureQueue{items: make(map[domain.Handle]domain.PendingCapture)}
}

// Add inserts p unless its handle is already pending.
func (q *CaptureQueue) Add(p domain.PendingCapture) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.items[p.Handle]; exists {
		return false
	}
	q.items[p.Handle] = p
	return true
}

func (q *CaptureQueue) Get(h domain.Handle) (domain.PendingCapture, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	p, ok := q.items[h]
	return p, ok
}

func (q *CaptureQueue) Has(h domain.Handle) bool {
	_, ok := q.Get(h)
	return ok
}

// Remove deletes h and reports whether it was present.
func (q *CaptureQueue) Remove(h domain.Handle) (domain.PendingCapture, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p, ok := q.items[h]
	if ok {
		delete(q.items, h)
	}
	return p, ok
}

func (q *CaptureQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// Clear drops every entry and returns how many were discarded.
func (q *CaptureQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = make(map[domain.Handle]domain.PendingCapture, n)
	return n
}

// Snapshot returns the pending captures ordered by handle.
func (q *CaptureQueue) Snapshot() []domain.PendingCapture {
	q.mu.RLock()
	out := make([]domain.PendingCapture, 0, len(q.items))
	for _, p := range q.items {
		out = append(out, p)
	}
	q.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}
