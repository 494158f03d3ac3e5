// Package relink rewrites foreign-key references and relationship edges from
// a merge's superseded record to its survivor, across every collection the
// caller declares. The pass is idempotent: on an already-consistent store it
// writes nothing, so a failed merge can be retried safely.
package relink

import (
	"context"
	"fmt"
	"log/slog"

	"cohere/internal/domain"
	"cohere/internal/storage"
)

// CollectionSpec declares how one collection references records. Scalar
// foreign keys are rewritten in place; id-list fields are rewritten then
// deduplicated; Edges marks a collection of relationship-edge records.
type CollectionSpec struct {
	Name          string
	RefFields     []string
	RefListFields []string
	Edges         bool
}

// Result summarizes what a relink pass changed.
type Result struct {
	RecordsRewritten int
	EdgesRewritten   int
	EdgesDropped     int
}

type Relinker struct {
	store  storage.Store
	logger *slog.Logger
}

func New(store storage.Store, logger *slog.Logger) *Relinker {
	return &Relinker{store: store, logger: logger}
}

// Relink visits every declared collection and repoints references from
// loserID to winnerID. A collection absent from the store is an empty scan
// and is skipped naturally; a collection that errors during scan or write
// aborts the pass; the caller surfaces the partial state, no rollback is
// attempted here.
//
// Relinking reads through the visibility filter (pending and deleted
// included) so references inside records mid-lifecycle are fixed too.
func (r *Relinker) Relink(ctx context.Context, winnerID, loserID string, specs []CollectionSpec) (Result, error) {
	var result Result
	opts := storage.ReadOptions{IncludePending: true, IncludeDeleted: true}

	for _, spec := range specs {
		records, err := r.store.GetAll(ctx, spec.Name, opts)
		if err != nil {
			return result, fmt.Errorf("relink scan %s: %w", spec.Name, err)
		}
		if spec.Edges {
			rewritten, dropped, err := r.relinkEdges(ctx, spec.Name, records, winnerID, loserID)
			if err != nil {
				return result, err
			}
			result.EdgesRewritten += rewritten
			result.EdgesDropped += dropped
			continue
		}
		for _, record := range records {
			if !rewriteRefs(record, spec, winnerID, loserID) {
				continue
			}
			if _, err := r.store.Put(ctx, spec.Name, record); err != nil {
				return result, fmt.Errorf("relink write %s/%s: %w", spec.Name, record.ID, err)
			}
			result.RecordsRewritten++
		}
	}
	if result != (Result{}) {
		r.logger.InfoContext(ctx, "relinked references",
			"winner_id", winnerID,
			"loser_id", loserID,
			"records", result.RecordsRewritten,
			"edges", result.EdgesRewritten,
			"edges_dropped", result.EdgesDropped,
		)
	}
	return result, nil
}

// rewriteRefs repoints the record's declared reference fields, reporting
// whether anything changed.
func rewriteRefs(record *domain.Record, spec CollectionSpec, winnerID, loserID string) bool {
	changed := false
	for _, field := range spec.RefFields {
		if record.StringField(field) == loserID {
			record.SetField(field, winnerID)
			changed = true
		}
	}
	for _, field := range spec.RefListFields {
		ids, ok := record.Field(field).([]any)
		if !ok {
			continue
		}
		replaced := false
		for i, v := range ids {
			if v == loserID {
				ids[i] = winnerID
				replaced = true
			}
		}
		if replaced {
			record.SetField(field, dedupeIDs(ids))
			changed = true
		}
	}
	return changed
}

// dedupeIDs drops repeated ids, keeping first-occurrence order. Rewriting
// loser→winner can introduce a duplicate when the record referenced both.
func dedupeIDs(ids []any) []any {
	seen := make(map[any]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// relinkEdges repoints edge endpoints and enforces the post-merge invariant
// of at most one edge per unordered endpoint pair: a rewritten edge whose
// canonical key collides with a surviving edge is deleted, not kept. Edges
// that collapse onto themselves (both endpoints become the winner) describe a
// relationship absorbed by the merge and are dropped too.
func (r *Relinker) relinkEdges(ctx context.Context, collection string, records []*domain.Record, winnerID, loserID string) (rewritten, dropped int, err error) {
	held := make(map[string]struct{}, len(records))
	for _, record := range records {
		if edge, ok := edgeFromRecord(record); ok && !edge.Touches(loserID) {
			held[domain.CanonicalEdgeKey(edge.FromID, edge.ToID)] = struct{}{}
		}
	}

	for _, record := range records {
		edge, ok := edgeFromRecord(record)
		if !ok || !edge.Touches(loserID) {
			continue
		}
		if edge.FromID == loserID {
			edge.FromID = winnerID
		}
		if edge.ToID == loserID {
			edge.ToID = winnerID
		}
		edge.Rekey()

		_, collides := held[edge.EdgeKey]
		if collides || edge.FromID == edge.ToID {
			if err := r.store.Delete(ctx, collection, record.ID); err != nil {
				return rewritten, dropped, fmt.Errorf("relink drop edge %s/%s: %w", collection, record.ID, err)
			}
			dropped++
			continue
		}
		held[edge.EdgeKey] = struct{}{}
		applyEdge(record, edge)
		if _, err := r.store.Put(ctx, collection, record); err != nil {
			return rewritten, dropped, fmt.Errorf("relink write edge %s/%s: %w", collection, record.ID, err)
		}
		rewritten++
	}
	return rewritten, dropped, nil
}

// Edge records live in the store as ordinary records with fromId/toId/edgeKey
// body fields, keeping the adapter contract to a single record shape.

func edgeFromRecord(record *domain.Record) (domain.RelationshipEdge, bool) {
	from := record.StringField("fromId")
	to := record.StringField("toId")
	if from == "" || to == "" {
		return domain.RelationshipEdge{}, false
	}
	return domain.RelationshipEdge{
		ID:      record.ID,
		FromID:  from,
		ToID:    to,
		EdgeKey: record.StringField("edgeKey"),
	}, true
}

func applyEdge(record *domain.Record, edge domain.RelationshipEdge) {
	record.SetField("fromId", edge.FromID)
	record.SetField("toId", edge.ToID)
	record.SetField("edgeKey", edge.EdgeKey)
}
