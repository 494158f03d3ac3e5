// Package domain holds the value types shared by the consistency engine:
// records with open field sets, relationship edges, and merge pick maps.
// It depends on nothing above it.
package domain

import "time"

// Record is a CRM record with a small reserved envelope plus an open field
// set. Callers treat Fields as the record body; the named struct fields are
// the identity, timestamps, and deletion lifecycle the engine owns.
//
// ID is assigned once and never changes: a merge rewrites other records'
// references toward the winner, it never rewrites the winner's ID.
type Record struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Deletion lifecycle. At most one of pending/finalized holds at a time:
	// DeletedAtPending is non-zero only while the delete is reversible, and
	// IsDeleted/DeletedAt are set only once finalization ran.
	DeletedAtPending time.Time `json:"deletedAtPending,omitzero"`
	IsDeleted        bool      `json:"isDeleted,omitempty"`
	DeletedAt        time.Time `json:"deletedAt,omitzero"`

	// Fields is the open record body: scalars, arrays, or nested maps keyed
	// by field name. Values survive a JSON round trip, so numbers read back
	// as float64 and arrays as []any.
	Fields map[string]any `json:"fields,omitempty"`

	// Extras carries forward-compatible nested data the engine never
	// interprets. It is preserved verbatim through merges and deletes.
	Extras map[string]any `json:"extras,omitempty"`
}

// Pending reports whether the record sits in the reversible deletion window.
func (r *Record) Pending() bool { return !r.DeletedAtPending.IsZero() }

// Active reports whether the record is neither pending deletion nor finalized.
func (r *Record) Active() bool { return !r.Pending() && !r.IsDeleted }

// Field returns the named body field, nil when absent.
func (r *Record) Field(name string) any {
	if r.Fields == nil {
		return nil
	}
	return r.Fields[name]
}

// StringField returns the named field as a string, "" when absent or not a
// string.
func (r *Record) StringField(name string) string {
	s, _ := r.Field(name).(string)
	return s
}

// SetField writes a body field, allocating the map on first use.
func (r *Record) SetField(name string, value any) {
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[name] = value
}

// Clone deep-copies the record so store implementations can hand out values
// without aliasing their internal state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Fields = cloneMap(r.Fields)
	out.Extras = cloneMap(r.Extras)
	return &out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
