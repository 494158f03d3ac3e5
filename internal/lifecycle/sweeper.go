package lifecycle

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"cohere/internal/storage"
)

// SweepOnce finalizes every pending record whose deadline has passed, across
// the given collections. It backstops the per-record timers: a process that
// slept through a deadline, or restarted and lost its timers, converges on
// the correct state at the next sweep. Collections fan out concurrently;
// each record is touched by at most one goroutine, so the single-writer
// assumption holds.
func (m *Manager) SweepOnce(ctx context.Context, collections []string) (int, error) {
	var finalized atomic.Int64
	g, ctx := errgroup.WithContext(ctx)

	for _, collection := range collections {
		g.Go(func() error {
			records, err := m.store.GetAll(ctx, collection, storage.ReadOptions{IncludePending: true})
			if err != nil {
				return err
			}
			deadline := m.now()
			for _, record := range records {
				if !record.Pending() || deadline.Before(record.DeletedAtPending.Add(m.ttl)) {
					continue
				}
				if err := m.finalize(ctx, collection, record.ID); err != nil {
					return err
				}
				finalized.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(finalized.Load()), err
	}
	return int(finalized.Load()), nil
}

// Run sweeps on the given interval until the context ends.
func (m *Manager) Run(ctx context.Context, collections []string, interval time.Duration) error {
	if interval <= 0 {
		interval = m.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := m.SweepOnce(ctx, collections); err != nil {
				m.logger.ErrorContext(ctx, "lifecycle sweep failed", "error", err)
			} else if n > 0 {
				m.logger.InfoContext(ctx, "lifecycle sweep finalized records", "count", n)
			}
		}
	}
}
