package hours

import (
	"context"
	"sort"
	"sync"
)

// InMemory implements Store with in-process concurrency safety. It backs
// tests and development mode; production uses the PostgreSQL store.
type InMemory struct {
	mu       sync.RWMutex
	active   map[string]Entry
	archived map[string]Archived // keyed by original entry id
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		active:   make(map[string]Entry),
		archived: make(map[string]Archived),
	}
}

var _ Store = (*InMemory)(nil)

func (s *InMemory) Insert(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[e.ID] = *e
	return nil
}

func (s *InMemory) Get(ctx context.Context, id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.active[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func (s *InMemory) ListPending(ctx context.Context, filter PendingFilter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Entry
	for _, entry := range s.active {
		if filter.OpportunityID != "" && entry.OpportunityID != filter.OpportunityID {
			continue
		}
		res = append(res, entry)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].SubmittedAt.After(res[j].SubmittedAt)
	})
	return res, nil
}

func (s *InMemory) ListByUser(ctx context.Context, userID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Entry
	for _, entry := range s.active {
		if entry.UserID == userID {
			res = append(res, entry)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].SubmittedAt.After(res[j].SubmittedAt)
	})
	return res, nil
}

// Archive moves the active entry into the archive atomically under the store
// lock. A missing active row means another reviewer won the race.
func (s *InMemory) Archive(ctx context.Context, rec Archived) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[rec.OriginalHoursID]; !ok {
		return ErrNotPending
	}
	if _, ok := s.archived[rec.OriginalHoursID]; ok {
		return ErrNotPending
	}
	s.archived[rec.OriginalHoursID] = rec
	delete(s.active, rec.OriginalHoursID)
	return nil
}

func (s *InMemory) ListArchivedByUser(ctx context.Context, userID string) ([]Archived, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Archived
	for _, rec := range s.archived {
		if rec.UserID == userID {
			res = append(res, rec)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].ProcessedAt.After(res[j].ProcessedAt)
	})
	return res, nil
}

func (s *InMemory) ApprovedTotal(ctx context.Context, userID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	for _, rec := range s.archived {
		if rec.UserID == userID && rec.Status == StatusApproved {
			total += rec.Hours
		}
	}
	return total, nil
}

func (s *InMemory) ReconcileArchived(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for id := range s.active {
		if _, ok := s.archived[id]; ok {
			delete(s.active, id)
			n++
		}
	}
	return n, nil
}
