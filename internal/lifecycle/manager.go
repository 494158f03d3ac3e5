// Package lifecycle implements reversible deletion: a record is marked
// pending with a timestamp, hidden from default reads immediately, and
// finalized (tombstoned) after a TTL unless undone. The deadline stored on
// the record is the source of truth; per-record timers and the background
// sweep are both just executors of that deadline, so a late-firing timer
// still finalizes correctly and a cancelled one is a no-op.
//
// State machine: ACTIVE → PENDING → {ACTIVE on undo | FINALIZED on expiry}.
// FINALIZED is terminal.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"cohere/internal/notify"
	"cohere/internal/platform/metrics"
	"cohere/internal/storage"
	domainerrors "cohere/pkg/domain-errors"
	"cohere/pkg/platform/sentinel"
)

// DefaultTTL is the undo window before a pending delete finalizes.
const DefaultTTL = 15 * time.Second

// Receipt reports a soft-delete outcome to the caller.
type Receipt struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}

type Manager struct {
	store    storage.Store
	notifier notify.Notifier
	ttl      time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
}

type Option func(*Manager)

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithMetrics(metrics *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithClock overrides the time source; tests advance it to cross deadlines
// without sleeping.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func New(store storage.Store, notifier notify.Notifier, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		notifier: notifier,
		ttl:      DefaultTTL,
		logger:   slog.Default(),
		now:      time.Now,
		timers:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// TTL exposes the configured undo window.
func (m *Manager) TTL() time.Duration { return m.ttl }

// SoftDelete marks the record pending deletion, hides it from default reads,
// arms the finalization timer, and emits exactly one notification. Calling
// it on an already-pending record re-arms the timer from now; that call still
// emits exactly one notification of its own. Deleting a missing or finalized
// record is an invalid transition: reported, no state change, no event.
func (m *Manager) SoftDelete(ctx context.Context, collection, id string) (Receipt, error) {
	record, err := m.store.Get(ctx, collection, id, storage.ReadOptions{IncludePending: true})
	if errors.Is(err, sentinel.ErrNotFound) {
		return Receipt{}, domainerrors.Wrap(err, domainerrors.CodeInvalidTransition, "record not found or already finalized").WithOp("softDelete")
	}
	if err != nil {
		return Receipt{}, domainerrors.Wrap(err, domainerrors.CodeAdapter, "load record").WithOp("softDelete")
	}

	record.DeletedAtPending = m.now().UTC()
	if _, err := m.store.Put(ctx, collection, record); err != nil {
		return Receipt{}, domainerrors.Wrap(err, domainerrors.CodeAdapter, "persist pending mark").WithOp("softDelete")
	}
	m.armTimer(collection, id)
	m.metrics.IncrementLifecycle(notify.ActionSoftDelete)

	m.notifier.Notify(ctx, notify.Event{
		Scope:    collection,
		Action:   notify.ActionSoftDelete,
		RecordID: id,
	})
	return Receipt{OK: true, Count: 1}, nil
}

// Absorb is the merge engine's non-notifying path for the losing record: the
// loser is marked pending exactly like a soft delete, but the merge itself
// owns the single notification for the whole operation. Absorbing an
// already-pending, already-finalized, or missing loser is a no-op so merge
// retries stay idempotent.
func (m *Manager) Absorb(ctx context.Context, collection, id string) error {
	record, err := m.store.Get(ctx, collection, id, storage.ReadOptions{IncludePending: true, IncludeDeleted: true})
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeAdapter, "load loser record").WithOp("merge")
	}
	if record.Pending() || record.IsDeleted {
		return nil
	}
	record.DeletedAtPending = m.now().UTC()
	if _, err := m.store.Put(ctx, collection, record); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeAdapter, "persist absorbed loser").WithOp("merge")
	}
	m.armTimer(collection, id)
	return nil
}

// Undo clears the pending mark while the window is open and emits exactly one
// notification. After the stored deadline has passed the record counts as
// finalized even if no timer fired yet (the deadline, not the timer, is
// authoritative), so the undo fails with an invalid transition and changes
// nothing.
func (m *Manager) Undo(ctx context.Context, collection, id string) error {
	record, err := m.store.Get(ctx, collection, id, storage.ReadOptions{IncludePending: true, IncludeDeleted: true})
	if errors.Is(err, sentinel.ErrNotFound) {
		return domainerrors.Wrap(err, domainerrors.CodeInvalidTransition, "record not found").WithOp("undo")
	}
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeAdapter, "load record").WithOp("undo")
	}
	if record.IsDeleted {
		return domainerrors.New(domainerrors.CodeInvalidTransition, "record already finalized").WithOp("undo")
	}
	if !record.Pending() {
		return domainerrors.New(domainerrors.CodeInvalidTransition, "record is not pending deletion").WithOp("undo")
	}
	if !m.now().Before(record.DeletedAtPending.Add(m.ttl)) {
		return domainerrors.New(domainerrors.CodeInvalidTransition, "undo window expired").WithOp("undo")
	}

	record.DeletedAtPending = time.Time{}
	if _, err := m.store.Put(ctx, collection, record); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeAdapter, "persist undo").WithOp("undo")
	}
	m.disarmTimer(collection, id)
	m.metrics.IncrementLifecycle(notify.ActionUndo)

	m.notifier.Notify(ctx, notify.Event{
		Scope:    collection,
		Action:   notify.ActionUndo,
		RecordID: id,
	})
	return nil
}

// finalize tombstones a pending record once its deadline passed. It re-reads
// state first: if undo already ran, the record vanished, or a re-armed
// deadline is still in the future, it does nothing. At most one finalize
// takes effect per pending mark, so at most one notification fires.
func (m *Manager) finalize(ctx context.Context, collection, id string) error {
	record, err := m.store.Get(ctx, collection, id, storage.ReadOptions{IncludePending: true, IncludeDeleted: true})
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeAdapter, "load record").WithOp("finalize")
	}
	if record.IsDeleted || !record.Pending() {
		return nil
	}
	now := m.now().UTC()
	if now.Before(record.DeletedAtPending.Add(m.ttl)) {
		return nil
	}

	record.IsDeleted = true
	record.DeletedAt = now
	record.DeletedAtPending = time.Time{}
	if _, err := m.store.Put(ctx, collection, record); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeAdapter, "persist tombstone").WithOp("finalize")
	}
	m.disarmTimer(collection, id)
	m.metrics.IncrementLifecycle(notify.ActionFinalize)

	m.notifier.Notify(ctx, notify.Event{
		Scope:    collection,
		Action:   notify.ActionFinalize,
		RecordID: id,
	})
	return nil
}

func timerKey(collection, id string) string { return collection + "/" + id }

// armTimer schedules best-effort finalization at the deadline, replacing any
// timer from an earlier soft delete of the same record.
func (m *Manager) armTimer(collection, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := timerKey(collection, id)
	if t, ok := m.timers[key]; ok {
		t.Stop()
	}
	m.timers[key] = time.AfterFunc(m.ttl, func() {
		// Detached from the caller's request: finalization outlives it.
		if err := m.finalize(context.Background(), collection, id); err != nil {
			m.logger.Error("finalize after TTL failed; sweep will retry",
				"collection", collection,
				"id", id,
				"error", err,
			)
		}
	})
}

func (m *Manager) disarmTimer(collection, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := timerKey(collection, id)
	if t, ok := m.timers[key]; ok {
		t.Stop()
		delete(m.timers, key)
	}
}

// armed reports whether a finalization timer is held for the record; test
// hook for undo cancellation.
func (m *Manager) armed(collection, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[timerKey(collection, id)]
	return ok
}
