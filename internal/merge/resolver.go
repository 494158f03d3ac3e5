// Package merge implements field-level conflict resolution and whole-record
// merging. The resolver's scoring is a deterministic heuristic tuned for CRM
// contact data, not a correctness guarantee; callers override it per field
// through a pick map.
package merge

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"cohere/internal/domain"
)

var emailShape = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Choice is the resolver's verdict for one field.
type Choice struct {
	From  domain.Pick // PickA or PickB
	Value any
}

// ScoreField scores two candidate values for a field; positive favors A.
// Weights: +2 for being non-empty, +2 for an email-shaped value on an
// email-ish field, +1 for >=7 digits on a phone-ish field, +1 for the side
// with the strictly newer record timestamp, and up to +2 for string length
// (longer presumed more informative, capped).
func ScoreField(field string, a, b any, aUpdated, bUpdated time.Time) int {
	score := sideScore(field, a) - sideScore(field, b)
	if aUpdated.After(bUpdated) {
		score++
	} else if bUpdated.After(aUpdated) {
		score--
	}
	return score
}

func sideScore(field string, v any) int {
	if isEmpty(v) {
		return 0
	}
	score := 2
	s, _ := v.(string)
	lower := strings.ToLower(field)
	if strings.Contains(lower, "email") && emailShape.MatchString(s) {
		score += 2
	}
	if strings.Contains(lower, "phone") && digitCount(s) >= 7 {
		score++
	}
	if n := len(s); n > 0 {
		bonus := n / 10
		if bonus > 2 {
			bonus = 2
		}
		score += bonus
	}
	return score
}

// ChooseValue picks a winner for a scalar field. Ties prefer the non-empty
// side, then A.
func ChooseValue(field string, a, b any, aUpdated, bUpdated time.Time) Choice {
	score := ScoreField(field, a, b, aUpdated, bUpdated)
	switch {
	case score > 0:
		return Choice{From: domain.PickA, Value: a}
	case score < 0:
		return Choice{From: domain.PickB, Value: b}
	case isEmpty(a) && !isEmpty(b):
		return Choice{From: domain.PickB, Value: b}
	default:
		return Choice{From: domain.PickA, Value: a}
	}
}

// UnionArray merges two array values: all of A's items deduplicated, then B's
// novel items. Elements dedupe by identityKey when they are objects carrying
// it, otherwise by full value equality. When the same identity recurs, the
// later occurrence replaces the earlier one in place, so colliding identities
// collapse to a single slot.
func UnionArray(a, b []any, identityKey string) []any {
	out := make([]any, 0, len(a)+len(b))
	slot := make(map[string]int)
	add := func(item any) {
		key := identityOf(item, identityKey)
		if at, ok := slot[key]; ok {
			out[at] = item
			return
		}
		slot[key] = len(out)
		out = append(out, item)
	}
	for _, item := range a {
		add(item)
	}
	for _, item := range b {
		add(item)
	}
	return out
}

// identityOf keys an array element for dedupe: the identityKey field when the
// element is an object that has it, otherwise the canonical JSON of the whole
// value (map keys serialize sorted, so equal values key equally).
func identityOf(item any, identityKey string) string {
	if identityKey != "" {
		if m, ok := item.(map[string]any); ok {
			if id, ok := m[identityKey]; ok && !isEmpty(id) {
				return fmt.Sprintf("%s=%v", identityKey, id)
			}
		}
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Sprintf("%#v", item)
	}
	return string(raw)
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	}
	return false
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
