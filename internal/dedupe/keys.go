// Package dedupe finds likely-duplicate records for an incoming record via a
// multi-key index: primary id, normalized email, normalized phone, and a
// name+locality fallback. The index is an explicit value object owned by the
// caller, never package-level state.
package dedupe

import (
	"strings"

	"cohere/internal/domain"
)

// Kind identifies which normalized key a DedupeKey carries. Lookup precedence
// follows declaration order: id first, fallback last, first hit wins.
type Kind string

const (
	KindID       Kind = "id"
	KindEmail    Kind = "email"
	KindPhone    Kind = "phone"
	KindFallback Kind = "fallback"
)

// kindPrecedence is the fixed lookup order. There is no scoring across kinds.
var kindPrecedence = []Kind{KindID, KindEmail, KindPhone, KindFallback}

// DedupeKey is a normalized derived value used to locate candidate duplicates.
type DedupeKey struct {
	Kind  Kind
	Value string
}

const fallbackSeparator = "|"

// BuildKeys derives every dedupe key a record yields. A record lacking all
// four kinds yields nothing and is always treated as new. Side effect free.
func BuildKeys(record *domain.Record) []DedupeKey {
	var keys []DedupeKey
	if record == nil {
		return keys
	}
	if record.ID != "" {
		keys = append(keys, DedupeKey{Kind: KindID, Value: record.ID})
	}
	if email := NormalizeEmail(record.StringField("email")); email != "" {
		keys = append(keys, DedupeKey{Kind: KindEmail, Value: email})
	}
	if phone := NormalizePhone(record.StringField("phone")); phone != "" {
		keys = append(keys, DedupeKey{Kind: KindPhone, Value: phone})
	}
	if fb := fallbackKey(record); fb != "" {
		keys = append(keys, DedupeKey{Kind: KindFallback, Value: fb})
	}
	return keys
}

// NormalizeEmail lower-cases and trims. Empty in, empty out.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips everything but digits, a leading "+", and "x"
// extension markers, so formatting differences collapse to one key.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == 'x' || r == 'X':
			b.WriteRune('x')
		}
	}
	return b.String()
}

// fallbackKey joins normalized name and locality with a stable separator.
// Both parts are required; a name alone is too weak a duplicate signal.
func fallbackKey(record *domain.Record) string {
	name := strings.ToLower(strings.TrimSpace(record.StringField("name")))
	locality := strings.ToLower(strings.TrimSpace(record.StringField("locality")))
	if locality == "" {
		locality = strings.ToLower(strings.TrimSpace(record.StringField("city")))
	}
	if name == "" || locality == "" {
		return ""
	}
	return name + fallbackSeparator + locality
}
