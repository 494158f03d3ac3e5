package relink

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"cohere/internal/domain"
	"cohere/internal/storage"
)

type RelinkerSuite struct {
	suite.Suite
	ctx      context.Context
	store    *storage.InMemoryStore
	relinker *Relinker
}

func TestRelinkerSuite(t *testing.T) {
	suite.Run(t, new(RelinkerSuite))
}

func (s *RelinkerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = storage.NewInMemoryStore()
	s.relinker = New(s.store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *RelinkerSuite) put(collection string, record *domain.Record) {
	_, err := s.store.Put(s.ctx, collection, record)
	s.Require().NoError(err)
}

func (s *RelinkerSuite) edge(id, from, to string) *domain.Record {
	return &domain.Record{
		ID: id,
		Fields: map[string]any{
			"fromId":  from,
			"toId":    to,
			"edgeKey": domain.CanonicalEdgeKey(from, to),
		},
	}
}

func (s *RelinkerSuite) TestRewritesScalarForeignKeys() {
	s.put("deals", &domain.Record{ID: "d1", Fields: map[string]any{"contactId": "loser"}})
	s.put("deals", &domain.Record{ID: "d2", Fields: map[string]any{"contactId": "other"}})

	result, err := s.relinker.Relink(s.ctx, "winner", "loser", []CollectionSpec{
		{Name: "deals", RefFields: []string{"contactId"}},
	})
	s.Require().NoError(err)
	s.Equal(1, result.RecordsRewritten)

	d1, err := s.store.Get(s.ctx, "deals", "d1", storage.ReadOptions{})
	s.Require().NoError(err)
	s.Equal("winner", d1.StringField("contactId"))

	d2, err := s.store.Get(s.ctx, "deals", "d2", storage.ReadOptions{})
	s.Require().NoError(err)
	s.Equal("other", d2.StringField("contactId"))
}

func (s *RelinkerSuite) TestRewritesListsAndDedupes() {
	s.put("deals", &domain.Record{ID: "d1", Fields: map[string]any{
		"participantIds": []any{"winner", "loser", "other"},
	}})

	result, err := s.relinker.Relink(s.ctx, "winner", "loser", []CollectionSpec{
		{Name: "deals", RefListFields: []string{"participantIds"}},
	})
	s.Require().NoError(err)
	s.Equal(1, result.RecordsRewritten)

	d1, err := s.store.Get(s.ctx, "deals", "d1", storage.ReadOptions{})
	s.Require().NoError(err)
	s.Equal([]any{"winner", "other"}, d1.Field("participantIds"))
}

func (s *RelinkerSuite) TestEdgeRelinkCollapsesDuplicatePairs() {
	// Both edges touch the loser from opposite directions against the same
	// third record; after rewrite they describe the same unordered pair.
	s.put("relationships", s.edge("e1", "loser", "c1"))
	s.put("relationships", s.edge("e2", "c1", "loser"))

	result, err := s.relinker.Relink(s.ctx, "winner", "loser", []CollectionSpec{
		{Name: "relationships", Edges: true},
	})
	s.Require().NoError(err)
	s.Equal(1, result.EdgesRewritten)
	s.Equal(1, result.EdgesDropped)

	remaining, err := s.store.GetAll(s.ctx, "relationships", storage.ReadOptions{})
	s.Require().NoError(err)
	s.Require().Len(remaining, 1)
	s.Equal(domain.CanonicalEdgeKey("winner", "c1"), remaining[0].StringField("edgeKey"))
}

func (s *RelinkerSuite) TestEdgeRelinkRespectsExistingWinnerEdge() {
	s.put("relationships", s.edge("e1", "winner", "c1"))
	s.put("relationships", s.edge("e2", "loser", "c1"))

	result, err := s.relinker.Relink(s.ctx, "winner", "loser", []CollectionSpec{
		{Name: "relationships", Edges: true},
	})
	s.Require().NoError(err)
	s.Equal(0, result.EdgesRewritten)
	s.Equal(1, result.EdgesDropped)

	remaining, err := s.store.GetAll(s.ctx, "relationships", storage.ReadOptions{})
	s.Require().NoError(err)
	s.Require().Len(remaining, 1)
	s.Equal("e1", remaining[0].ID)
}

func (s *RelinkerSuite) TestEdgeRelinkDropsSelfEdges() {
	s.put("relationships", s.edge("e1", "winner", "loser"))

	result, err := s.relinker.Relink(s.ctx, "winner", "loser", []CollectionSpec{
		{Name: "relationships", Edges: true},
	})
	s.Require().NoError(err)
	s.Equal(1, result.EdgesDropped)

	remaining, err := s.store.GetAll(s.ctx, "relationships", storage.ReadOptions{})
	s.Require().NoError(err)
	s.Empty(remaining)
}

func (s *RelinkerSuite) TestMissingCollectionIsSkipped() {
	result, err := s.relinker.Relink(s.ctx, "winner", "loser", []CollectionSpec{
		{Name: "nowhere", RefFields: []string{"contactId"}},
	})
	s.NoError(err)
	s.Equal(Result{}, result)
}

func (s *RelinkerSuite) TestIdempotentOnConsistentStore() {
	s.put("deals", &domain.Record{ID: "d1", Fields: map[string]any{"contactId": "loser"}})
	s.put("relationships", s.edge("e1", "loser", "c1"))
	specs := []CollectionSpec{
		{Name: "deals", RefFields: []string{"contactId"}},
		{Name: "relationships", Edges: true},
	}

	first, err := s.relinker.Relink(s.ctx, "winner", "loser", specs)
	s.Require().NoError(err)
	s.NotEqual(Result{}, first)

	second, err := s.relinker.Relink(s.ctx, "winner", "loser", specs)
	s.Require().NoError(err)
	s.Equal(Result{}, second)
}

func (s *RelinkerSuite) TestReachesPendingAndDeletedRecords() {
	pending := &domain.Record{ID: "d1", Fields: map[string]any{"contactId": "loser"}}
	pending.DeletedAtPending = time.Now().UTC()
	s.put("deals", &domain.Record{ID: "d2", IsDeleted: true, Fields: map[string]any{"contactId": "loser"}})
	s.put("deals", pending)

	result, err := s.relinker.Relink(s.ctx, "winner", "loser", []CollectionSpec{
		{Name: "deals", RefFields: []string{"contactId"}},
	})
	s.Require().NoError(err)
	s.Equal(2, result.RecordsRewritten)
}

type failingStore struct {
	storage.Store
	failPut bool
}

func (f *failingStore) Put(ctx context.Context, collection string, record *domain.Record) (*domain.Record, error) {
	if f.failPut {
		return nil, errors.New("adapter down")
	}
	return f.Store.Put(ctx, collection, record)
}

func (s *RelinkerSuite) TestWriteFailureAbortsPass() {
	s.put("deals", &domain.Record{ID: "d1", Fields: map[string]any{"contactId": "loser"}})
	broken := &failingStore{Store: s.store, failPut: true}
	relinker := New(broken, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := relinker.Relink(s.ctx, "winner", "loser", []CollectionSpec{
		{Name: "deals", RefFields: []string{"contactId"}},
	})
	s.Error(err)
	s.Contains(err.Error(), "relink write")
}
