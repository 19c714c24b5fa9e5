package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"vr-screenshotter/internal/domain"
	"vr-screenshotter/internal/usecase"
)

type recordEntry struct {
	rec       domain.CaptureRecord
	createdAt time.Time
}

// Store is a bounded, process-local journal of completed captures. It
// evicts the oldest record at capacity and anything older than ttl.
type Store struct {
	mu sync.RWMutex
	// ring by insertion order of record ids
	order []string
	items map[string]*recordEntry

	maxRecords int
	ttl        time.Duration
	now        func() time.Time
}

func NewStore(maxRecords int, ttl time.Duration) *Store {
	if maxRecords <= 0 {
		maxRecords = 500
	}
	return &Store{
		order:      make([]string, 0, maxRecords),
		items:      make(map[string]*recordEntry, maxRecords),
		maxRecords: maxRecords,
		ttl:        ttl,
		now:        time.Now,
	}
}

func (s *Store) Name() string { return "memory" }

// Publish appends rec; it satisfies usecase.ResultSink.
func (s *Store) Publish(ctx context.Context, rec domain.CaptureRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked()
	if _, exists := s.items[rec.ID]; exists {
		s.items[rec.ID].rec = rec
		return nil
	}
	if len(s.items) >= s.maxRecords {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.items, oldest)
	}
	s.items[rec.ID] = &recordEntry{rec: rec, createdAt: s.now()}
	s.order = append(s.order, rec.ID)
	return nil
}

func (s *Store) GetRecord(ctx context.Context, id string) (domain.CaptureRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.items[id]; ok && !s.expired(e) {
		return e.rec, true, nil
	}
	return domain.CaptureRecord{}, false, nil
}

// ListRecords returns matching records newest first with the total before paging.
func (s *Store) ListRecords(ctx context.Context, f usecase.HistoryFilter) ([]domain.CaptureRecord, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(f.Q)
	results := make([]domain.CaptureRecord, 0, len(s.items))
	for i := len(s.order) - 1; i >= 0; i-- {
		e := s.items[s.order[i]]
		if e == nil || s.expired(e) {
			continue
		}
		if f.AppID != "" && e.rec.AppID != f.AppID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(e.rec.Tag), q) && !strings.Contains(strings.ToLower(e.rec.Nonce), q) {
			continue
		}
		results = append(results, e.rec)
	}
	total := len(results)
	start := f.Offset
	if start > total {
		start = total
	}
	end := start + f.Limit
	if f.Limit <= 0 || end > total {
		end = total
	}
	return results[start:end], total, nil
}

func (s *Store) ClearRecords(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*recordEntry, len(s.items))
	s.order = s.order[:0]
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) expired(e *recordEntry) bool {
	return s.ttl > 0 && s.now().Sub(e.createdAt) > s.ttl
}

func (s *Store) evictExpiredLocked() {
	if s.ttl <= 0 {
		return
	}
	i := 0
	for i < len(s.order) {
		id := s.order[i]
		e := s.items[id]
		if e == nil || s.expired(e) {
			delete(s.items, id)
			s.order = append(s.order[:i], s.order[i+1:]...)
			continue
		}
		i++
	}
}
