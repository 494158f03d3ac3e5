// Package records orchestrates the public consistency operations: duplicate
// candidate lookup, the merge write sequence, and the soft-delete lifecycle,
// emitting exactly one change notification per logical operation.
package records

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"cohere/internal/dedupe"
	"cohere/internal/domain"
	"cohere/internal/lifecycle"
	"cohere/internal/merge"
	"cohere/internal/notify"
	"cohere/internal/platform/metrics"
	"cohere/internal/relink"
	"cohere/internal/storage"
	domainerrors "cohere/pkg/domain-errors"
	"cohere/pkg/platform/sentinel"
)

// MergeRequest names the two records to merge and the caller's per-field
// picks. Picks are optional; absent fields resolve automatically.
type MergeRequest struct {
	Collection string         `json:"collection"`
	AID        string         `json:"aId"`
	BID        string         `json:"bId"`
	Picks      domain.PickMap `json:"picks,omitempty"`
}

// MergeResult reports the survivor and what relinking touched.
type MergeResult struct {
	Winner   *domain.Record `json:"winner"`
	WinnerID string         `json:"winnerId"`
	LoserID  string         `json:"loserId"`
	Relink   relink.Result  `json:"relink"`
}

// Service wires the engine components behind the public operations. Callers
// are responsible for not issuing concurrent merges or deletes against the
// same record id; the service performs no per-record locking.
type Service struct {
	store     storage.Store
	relinker  *relink.Relinker
	lifecycle *lifecycle.Manager
	notifier  notify.Notifier
	specs     []relink.CollectionSpec
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	mu      sync.Mutex
	indexes map[string]*dedupe.Index
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithCollections declares the referencing collections every merge must
// relink. Order is preserved; the merge visits them in sequence.
func WithCollections(specs []relink.CollectionSpec) Option {
	return func(s *Service) { s.specs = specs }
}

func NewService(store storage.Store, relinker *relink.Relinker, lc *lifecycle.Manager, notifier notify.Notifier, opts ...Option) *Service {
	s := &Service{
		store:     store,
		relinker:  relinker,
		lifecycle: lc,
		notifier:  notifier,
		logger:    slog.Default(),
		tracer:    otel.Tracer("cohere/records"),
		indexes:   make(map[string]*dedupe.Index),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// FindExisting returns the record an incoming candidate most likely
// duplicates, or nil when it looks new. Lookup precedence is id, email,
// phone, then name+locality; a candidate yielding no keys is always new.
func (s *Service) FindExisting(ctx context.Context, collection string, candidate *domain.Record) (*domain.Record, error) {
	idx, err := s.indexFor(ctx, collection)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeAdapter, "build dedupe index").WithOp("findExisting")
	}
	existing := idx.Find(candidate)
	if existing == nil {
		return nil, nil
	}
	return existing.Clone(), nil
}

// Merge merges two records into one survivor and repairs every reference to
// the absorbed record. The write order is fixed: (1) persist the merged
// winner, (2) relink all referencing collections, (3) soft-delete the loser,
// (4) emit exactly one notification. Failures before step 1 abort cleanly
// with no writes and no event. Failures after step 1 leave the store
// partially consistent: the operation reports partial consistency, notifies
// once with the failure state, and a retry of the identical merge is safe:
// relinking and loser absorption are no-ops on already-consistent state.
func (s *Service) Merge(ctx context.Context, req MergeRequest) (*MergeResult, error) {
	ctx, span := s.tracer.Start(ctx, "records.Merge")
	defer span.End()
	start := time.Now()

	if req.AID == "" || req.BID == "" || req.AID == req.BID {
		s.metrics.IncrementMergeOutcome("error")
		return nil, domainerrors.New(domainerrors.CodeBadRequest, "two distinct record ids required").WithOp("merge")
	}

	// Pending records stay mergeable so a retry after a partial failure can
	// reach the loser it already absorbed.
	readOpts := storage.ReadOptions{IncludePending: true}
	a, err := s.store.Get(ctx, req.Collection, req.AID, readOpts)
	if err != nil {
		return nil, s.mergeLookupErr(err, req.AID)
	}
	b, err := s.store.Get(ctx, req.Collection, req.BID, readOpts)
	if err != nil {
		return nil, s.mergeLookupErr(err, req.BID)
	}

	merged, err := merge.MergeRecords(a, b, req.Picks)
	if err != nil {
		s.metrics.IncrementMergeOutcome("error")
		return nil, domainerrors.Wrap(err, domainerrors.CodeBadRequest, "merge records").WithOp("merge")
	}

	winner, loser := a, b
	if merge.PickWinner(a, b) == domain.PickB {
		winner, loser = b, a
	}
	// The merged content survives under the winner's identity; ids are never
	// rewritten, references are.
	merged.ID = winner.ID

	// Step 1: persist the merged winner. Nothing is committed before this.
	if _, err := s.store.Put(ctx, req.Collection, merged); err != nil {
		s.metrics.IncrementMergeOutcome("error")
		return nil, domainerrors.Wrap(err, domainerrors.CodeAdapter, "persist merged winner").WithOp("merge")
	}

	// Step 2: repair references across every declared collection.
	relinkStart := time.Now()
	relinkResult, err := s.relinker.Relink(ctx, winner.ID, loser.ID, s.specs)
	s.metrics.ObserveRelinkLatency(time.Since(relinkStart))
	if err != nil {
		return nil, s.partialConsistency(ctx, req.Collection, winner.ID, loser.ID, "relink references", err)
	}

	// Step 3: absorb the loser (soft delete, no notification of its own).
	if err := s.lifecycle.Absorb(ctx, req.Collection, loser.ID); err != nil {
		return nil, s.partialConsistency(ctx, req.Collection, winner.ID, loser.ID, "absorb loser", err)
	}

	s.reindex(req.Collection, merged, loser)

	// Step 4: exactly one notification for the whole operation.
	s.notifier.Notify(ctx, notify.Event{
		Scope:    req.Collection,
		Action:   notify.ActionMerge,
		WinnerID: winner.ID,
		LoserID:  loser.ID,
	})
	s.metrics.IncrementNotification(notify.ActionMerge)
	s.metrics.IncrementMergeOutcome("merged")
	s.metrics.ObserveMergeLatency(time.Since(start))

	return &MergeResult{
		Winner:   merged,
		WinnerID: winner.ID,
		LoserID:  loser.ID,
		Relink:   relinkResult,
	}, nil
}

func (s *Service) mergeLookupErr(err error, id string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		s.metrics.IncrementMergeOutcome("not_found")
		return domainerrors.Wrap(err, domainerrors.CodeNotFound, "merge candidate "+id+" not found").WithOp("merge")
	}
	s.metrics.IncrementMergeOutcome("error")
	return domainerrors.Wrap(err, domainerrors.CodeAdapter, "load merge candidate "+id).WithOp("merge")
}

// partialConsistency surfaces a failure after the winner was already
// persisted: logged, counted, notified exactly once with the failure state,
// and reported to the caller with enough context to retry the same merge.
func (s *Service) partialConsistency(ctx context.Context, collection, winnerID, loserID, step string, err error) error {
	s.logger.ErrorContext(ctx, "merge left partial state; retry the same merge to converge",
		"collection", collection,
		"winner_id", winnerID,
		"loser_id", loserID,
		"step", step,
		"error", err,
	)
	s.notifier.Notify(ctx, notify.Event{
		Scope:    collection,
		Action:   notify.ActionMerge,
		WinnerID: winnerID,
		LoserID:  loserID,
		Failed:   true,
	})
	s.metrics.IncrementNotification(notify.ActionMerge)
	s.metrics.IncrementMergeOutcome("partial")
	return domainerrors.Wrap(errors.Join(sentinel.ErrPartialState, err), domainerrors.CodePartialConsistency,
		"winner "+winnerID+" persisted but "+step+" failed; loser "+loserID+" may still be referenced").WithOp("merge")
}

// SoftDelete hides the record immediately and schedules finalization. The
// lifecycle manager owns the single notification.
func (s *Service) SoftDelete(ctx context.Context, collection, id string) (lifecycle.Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "records.SoftDelete")
	defer span.End()

	receipt, err := s.lifecycle.SoftDelete(ctx, collection, id)
	if err != nil {
		return receipt, err
	}
	s.metrics.IncrementNotification(notify.ActionSoftDelete)
	s.dropFromIndex(ctx, collection, id)
	return receipt, nil
}

// Undo restores a pending record while its window is open.
func (s *Service) Undo(ctx context.Context, collection, id string) error {
	ctx, span := s.tracer.Start(ctx, "records.Undo")
	defer span.End()

	if err := s.lifecycle.Undo(ctx, collection, id); err != nil {
		return err
	}
	s.metrics.IncrementNotification(notify.ActionUndo)
	if record, err := s.store.Get(ctx, collection, id, storage.ReadOptions{}); err == nil {
		s.registerInIndex(collection, record)
	}
	return nil
}

// Get reads one record under the caller's visibility options.
func (s *Service) Get(ctx context.Context, collection, id string, opts storage.ReadOptions) (*domain.Record, error) {
	record, err := s.store.Get(ctx, collection, id, opts)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, domainerrors.Wrap(err, domainerrors.CodeNotFound, "record "+id+" not found").WithOp("get")
	}
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeAdapter, "load record").WithOp("get")
	}
	return record, nil
}

// List reads a collection under the caller's visibility options.
func (s *Service) List(ctx context.Context, collection string, opts storage.ReadOptions) ([]*domain.Record, error) {
	records, err := s.store.GetAll(ctx, collection, opts)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeAdapter, "list collection").WithOp("list")
	}
	return records, nil
}

// Collections returns the record collections the service watches, the
// primary collection of each relink spec included; the sweeper runs over
// these.
func (s *Service) Collections() []string {
	names := make([]string, 0, len(s.specs))
	for _, spec := range s.specs {
		names = append(names, spec.Name)
	}
	return names
}

// indexFor lazily builds and caches the dedupe index for a collection from
// its currently visible records.
func (s *Service) indexFor(ctx context.Context, collection string) (*dedupe.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexes[collection]; ok {
		return idx, nil
	}
	records, err := s.store.GetAll(ctx, collection, storage.ReadOptions{})
	if err != nil {
		return nil, err
	}
	idx := dedupe.BuildIndex(records)
	s.indexes[collection] = idx
	return idx, nil
}

// reindex applies a merge to the cached index: winner registered, loser
// unregistered. Invoked only after the store writes landed.
func (s *Service) reindex(collection string, winner, loser *domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[collection]
	if !ok {
		return
	}
	idx.Unregister(loser)
	idx.Register(winner)
}

func (s *Service) registerInIndex(collection string, record *domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexes[collection]; ok {
		idx.Register(record)
	}
}

func (s *Service) dropFromIndex(ctx context.Context, collection, id string) {
	record, err := s.store.Get(ctx, collection, id, storage.ReadOptions{IncludePending: true, IncludeDeleted: true})
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexes[collection]; ok {
		idx.Unregister(record)
	}
}
