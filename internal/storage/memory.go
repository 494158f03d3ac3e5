package storage

import (
	"context"
	"sync"

	"cohere/internal/domain"
)

// InMemoryStore keeps the default deployment lightweight and testable. It
// intentionally favors clarity over performance: one map per collection,
// guarded by a single RWMutex, records cloned on the way in and out so
// callers never alias store state.
type InMemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*domain.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{collections: make(map[string]map[string]*domain.Record)}
}

func (s *InMemoryStore) Get(_ context.Context, collection, id string, opts ReadOptions) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.collections[collection][id]
	if !ok || !Visible(record, opts) {
		return nil, ErrNotFound
	}
	return record.Clone(), nil
}

func (s *InMemoryStore) Put(_ context.Context, collection string, record *domain.Record) (*domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]*domain.Record)
	}
	s.collections[collection][record.ID] = record.Clone()
	return record.Clone(), nil
}

func (s *InMemoryStore) GetAll(_ context.Context, collection string, opts ReadOptions) ([]*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]*domain.Record, 0, len(s.collections[collection]))
	for _, record := range s.collections[collection] {
		if Visible(record, opts) {
			records = append(records, record.Clone())
		}
	}
	sortRecords(records)
	return records, nil
}

func (s *InMemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections[collection], id)
	return nil
}
