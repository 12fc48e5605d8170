package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/driftsearch/snaprestore/internal/model"
)

// InMemoryHistoryStore implements HistoryStore in process, for tests and
// single-node development setups.
type InMemoryHistoryStore struct {
	mu      sync.RWMutex
	records map[string]*ArchivedRestore
}

// NewInMemoryHistoryStore creates an empty in-memory history store
func NewInMemoryHistoryStore() *InMemoryHistoryStore {
	return &InMemoryHistoryStore{records: map[string]*ArchivedRestore{}}
}

// SaveCompleted implements HistoryStore
func (s *InMemoryHistoryStore) SaveCompleted(ctx context.Context, op model.RestoreOperation, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[op.ID] = &ArchivedRestore{Operation: op.Clone(), CompletedAt: completedAt}
	return nil
}

// Get implements HistoryStore
func (s *InMemoryHistoryStore) Get(ctx context.Context, restoreID string) (*ArchivedRestore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[restoreID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// List implements HistoryStore, newest first
func (s *InMemoryHistoryStore) List(ctx context.Context, limit int) ([]*ArchivedRestore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ArchivedRestore, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping implements HistoryStore
func (s *InMemoryHistoryStore) Ping(ctx context.Context) error { return nil }

// Close implements HistoryStore
func (s *InMemoryHistoryStore) Close() {}
