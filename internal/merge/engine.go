package merge

import (
	"errors"
	"sort"
	"time"

	"cohere/internal/domain"
)

// ErrRecordsRequired is returned when both merge inputs are nil.
var ErrRecordsRequired = errors.New("records required")

// arrayIdentityKey dedupes object-valued array elements during union.
const arrayIdentityKey = "id"

// PickWinner decides which record survives a merge: the side with strictly
// more non-empty body fields, ties favoring A. The loser is absorbed.
func PickWinner(a, b *domain.Record) domain.Pick {
	if nonEmptyFields(b) > nonEmptyFields(a) {
		return domain.PickB
	}
	return domain.PickA
}

func nonEmptyFields(r *domain.Record) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, v := range r.Fields {
		if !isEmpty(v) {
			n++
		}
	}
	return n
}

// MergeRecords produces one record from two, honoring the pick map where
// present and falling back to resolver scoring. The engine is agnostic to
// which id survives: it emits field content with an empty ID, and the caller
// forces the winner's id onto the result.
//
// Per field: PickNone omits it; on array-valued fields PickA/PickB take that
// side's array verbatim (empty when absent) and anything else unions; on
// scalars PickA/PickB take that side's value and anything else resolves. The
// result stamps a fresh UpdatedAt and keeps the earlier CreatedAt.
func MergeRecords(a, b *domain.Record, picks domain.PickMap) (*domain.Record, error) {
	if a == nil && b == nil {
		return nil, ErrRecordsRequired
	}
	if a == nil {
		a = &domain.Record{}
	}
	if b == nil {
		b = &domain.Record{}
	}

	merged := &domain.Record{
		CreatedAt: earlierOf(a.CreatedAt, b.CreatedAt),
		UpdatedAt: time.Now().UTC(),
		Fields:    make(map[string]any),
		Extras:    unionExtras(a.Extras, b.Extras),
	}

	for _, field := range fieldUnion(a, b) {
		av, bv := a.Field(field), b.Field(field)
		pick := picks[field]
		if pick == domain.PickNone {
			continue
		}

		aArr, aIsArr := asArray(av)
		bArr, bIsArr := asArray(bv)
		if aIsArr || bIsArr {
			switch pick {
			case domain.PickA:
				merged.Fields[field] = aArr
			case domain.PickB:
				merged.Fields[field] = bArr
			default:
				merged.Fields[field] = UnionArray(aArr, bArr, arrayIdentityKey)
			}
			continue
		}

		switch pick {
		case domain.PickA:
			merged.Fields[field] = av
		case domain.PickB:
			merged.Fields[field] = bv
		default:
			merged.Fields[field] = ChooseValue(field, av, bv, a.UpdatedAt, b.UpdatedAt).Value
		}
	}
	return merged, nil
}

// fieldUnion returns the sorted union of both records' field names, so merge
// output is deterministic across runs.
func fieldUnion(a, b *domain.Record) []string {
	seen := make(map[string]struct{}, len(a.Fields)+len(b.Fields))
	for name := range a.Fields {
		seen[name] = struct{}{}
	}
	for name := range b.Fields {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func asArray(v any) ([]any, bool) {
	if v == nil {
		return []any{}, false
	}
	arr, ok := v.([]any)
	if !ok {
		return []any{}, false
	}
	return arr, true
}

// unionExtras keeps every nested extra, A's entries winning key conflicts to
// match the scalar tie-break direction.
func unionExtras(a, b map[string]any) map[string]any {
	if a == nil && b == nil {
		return nil
	}
	out := make(map[string]any, len(a)+len(b))
	for k, v := range b {
		out[k] = v
	}
	for k, v := range a {
		out[k] = v
	}
	return out
}

func earlierOf(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	if b.Before(a) {
		return b
	}
	return a
}
