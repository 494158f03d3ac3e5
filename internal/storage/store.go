// Package storage defines the record store contract the consistency engine
// runs on: key-value get/put/getAll/delete per collection, with explicit
// visibility flags for records in the deletion lifecycle. The store offers no
// cross-collection atomicity; the engine layers an ordered, idempotent write
// sequence on top.
package storage

import (
	"context"
	"sort"

	"cohere/internal/domain"
)

// ReadOptions widens read visibility. Default (zero value) reads exclude both
// pending-deletion and finalized records; a soft-deleted record vanishes from
// normal queries immediately, not after its TTL.
type ReadOptions struct {
	IncludePending bool
	IncludeDeleted bool
}

// Stores are interface-driven to keep the engine testable and to allow
// swapping in-memory, Redis, or Postgres persistence without rewiring
// business code. Implementations serialize writes per key; callers are
// responsible for not racing writes to the same record.
type Store interface {
	// Get returns the record or ErrNotFound. Records hidden by visibility
	// rules also report ErrNotFound.
	Get(ctx context.Context, collection, id string, opts ReadOptions) (*domain.Record, error)
	// Put upserts the record and returns the stored copy.
	Put(ctx context.Context, collection string, record *domain.Record) (*domain.Record, error)
	// GetAll returns all visible records. An unknown collection yields an
	// empty result, not an error.
	GetAll(ctx context.Context, collection string, opts ReadOptions) ([]*domain.Record, error)
	// Delete removes the record permanently. Missing records are a no-op.
	Delete(ctx context.Context, collection, id string) error
}

// sortRecords gives GetAll a stable id order across implementations.
func sortRecords(records []*domain.Record) {
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
}

// Visible applies the read-visibility contract to a single record.
func Visible(r *domain.Record, opts ReadOptions) bool {
	if r.Pending() && !opts.IncludePending {
		return false
	}
	if r.IsDeleted && !opts.IncludeDeleted {
		return false
	}
	return true
}
