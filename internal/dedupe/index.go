package dedupe

import "cohere/internal/domain"

// Index holds one map per key kind, each mapping normalized key to the record
// that most recently registered it (last write wins per kind, not globally
// ordered). Construct it with NewIndex or BuildIndex and pass it around
// explicitly; mutation happens only through Register/Unregister, which a
// caller invokes after persisting.
type Index struct {
	byKind map[Kind]map[string]*domain.Record
}

func NewIndex() *Index {
	byKind := make(map[Kind]map[string]*domain.Record, len(kindPrecedence))
	for _, kind := range kindPrecedence {
		byKind[kind] = make(map[string]*domain.Record)
	}
	return &Index{byKind: byKind}
}

// BuildIndex registers every record. Registering the same record twice under
// identical keys is idempotent: one entry per key kind.
func BuildIndex(records []*domain.Record) *Index {
	idx := NewIndex()
	for _, record := range records {
		idx.Register(record)
	}
	return idx
}

// Register inserts the record under all keys it yields, replacing whatever
// held those keys before.
func (idx *Index) Register(record *domain.Record) {
	for _, key := range BuildKeys(record) {
		idx.byKind[key.Kind][key.Value] = record
	}
}

// Unregister removes the record's keys, but only where the key still points
// at this record; a later registration under the same key is left alone.
func (idx *Index) Unregister(record *domain.Record) {
	for _, key := range BuildKeys(record) {
		if held, ok := idx.byKind[key.Kind][key.Value]; ok && held.ID == record.ID {
			delete(idx.byKind[key.Kind], key.Value)
		}
	}
}

// Find returns the existing record a candidate most likely duplicates, or nil
// when the candidate looks new. Kinds are consulted in precedence order (id,
// email, phone, fallback); the first hit wins outright.
func (idx *Index) Find(candidate *domain.Record) *domain.Record {
	keys := BuildKeys(candidate)
	for _, kind := range kindPrecedence {
		for _, key := range keys {
			if key.Kind != kind {
				continue
			}
			if existing, ok := idx.byKind[kind][key.Value]; ok {
				return existing
			}
		}
	}
	return nil
}

// Len reports the number of entries held for a kind; used by callers sizing
// rebuild work and by tests asserting idempotent registration.
func (idx *Index) Len(kind Kind) int {
	return len(idx.byKind[kind])
}
