package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"cohere/internal/domain"
)

type MemoryStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
}

func (s *MemoryStoreSuite) TestPutAndGet() {
	record := &domain.Record{ID: "c1", Fields: map[string]any{"name": "Jane"}}
	saved, err := s.store.Put(s.ctx, "contacts", record)
	s.Require().NoError(err)
	s.Equal("c1", saved.ID)

	got, err := s.store.Get(s.ctx, "contacts", "c1", ReadOptions{})
	s.Require().NoError(err)
	s.Equal("Jane", got.StringField("name"))
}

func (s *MemoryStoreSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, "contacts", "ghost", ReadOptions{})
	s.ErrorIs(err, ErrNotFound)
}

func (s *MemoryStoreSuite) TestReturnsClones() {
	record := &domain.Record{ID: "c1", Fields: map[string]any{"name": "Jane"}}
	_, err := s.store.Put(s.ctx, "contacts", record)
	s.Require().NoError(err)

	// Mutating the caller's copy must not reach store state.
	record.Fields["name"] = "changed"
	first, err := s.store.Get(s.ctx, "contacts", "c1", ReadOptions{})
	s.Require().NoError(err)
	s.Equal("Jane", first.StringField("name"))

	first.Fields["name"] = "changed again"
	second, err := s.store.Get(s.ctx, "contacts", "c1", ReadOptions{})
	s.Require().NoError(err)
	s.Equal("Jane", second.StringField("name"))
}

func (s *MemoryStoreSuite) TestVisibilityFilter() {
	active := &domain.Record{ID: "a"}
	pending := &domain.Record{ID: "b", DeletedAtPending: time.Now().UTC()}
	deleted := &domain.Record{ID: "c", IsDeleted: true, DeletedAt: time.Now().UTC()}
	for _, record := range []*domain.Record{active, pending, deleted} {
		_, err := s.store.Put(s.ctx, "contacts", record)
		s.Require().NoError(err)
	}

	s.Run("default excludes pending and deleted", func() {
		records, err := s.store.GetAll(s.ctx, "contacts", ReadOptions{})
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.Equal("a", records[0].ID)
	})

	s.Run("includePending adds pending only", func() {
		records, err := s.store.GetAll(s.ctx, "contacts", ReadOptions{IncludePending: true})
		s.Require().NoError(err)
		s.Len(records, 2)
	})

	s.Run("includeDeleted adds tombstones only", func() {
		records, err := s.store.GetAll(s.ctx, "contacts", ReadOptions{IncludeDeleted: true})
		s.Require().NoError(err)
		s.Len(records, 2)
	})

	s.Run("both flags see everything in id order", func() {
		records, err := s.store.GetAll(s.ctx, "contacts", ReadOptions{IncludePending: true, IncludeDeleted: true})
		s.Require().NoError(err)
		s.Require().Len(records, 3)
		s.Equal("a", records[0].ID)
		s.Equal("b", records[1].ID)
		s.Equal("c", records[2].ID)
	})

	s.Run("get honors the same filter", func() {
		_, err := s.store.Get(s.ctx, "contacts", "b", ReadOptions{})
		s.ErrorIs(err, ErrNotFound)
		_, err = s.store.Get(s.ctx, "contacts", "b", ReadOptions{IncludePending: true})
		s.NoError(err)
	})
}

func (s *MemoryStoreSuite) TestDelete() {
	_, err := s.store.Put(s.ctx, "contacts", &domain.Record{ID: "c1"})
	s.Require().NoError(err)

	s.Require().NoError(s.store.Delete(s.ctx, "contacts", "c1"))
	_, err = s.store.Get(s.ctx, "contacts", "c1", ReadOptions{IncludePending: true, IncludeDeleted: true})
	s.ErrorIs(err, ErrNotFound)

	s.Run("deleting a missing id is a no-op", func() {
		s.NoError(s.store.Delete(s.ctx, "contacts", "ghost"))
		s.NoError(s.store.Delete(s.ctx, "nowhere", "ghost"))
	})
}

func (s *MemoryStoreSuite) TestCollectionsAreIsolated() {
	_, err := s.store.Put(s.ctx, "contacts", &domain.Record{ID: "x"})
	s.Require().NoError(err)

	records, err := s.store.GetAll(s.ctx, "companies", ReadOptions{})
	s.Require().NoError(err)
	s.Empty(records)
}
