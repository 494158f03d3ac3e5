package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cohere/internal/domain"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Jane.Doe@Example.COM", "jane.doe@example.com"},
		{"trims whitespace", "  jane@example.com  ", "jane@example.com"},
		{"empty stays empty", "", ""},
		{"whitespace only collapses to empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeEmail(tt.input))
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"strips punctuation", "(555) 123-4567", "5551234567"},
		{"keeps leading plus", "+1 555 123 4567", "+15551234567"},
		{"keeps extension marker", "555-123-4567 x89", "5551234567x89"},
		{"uppercase extension marker normalized", "5551234567X89", "5551234567x89"},
		{"plus not at start dropped", "555+1234567", "5551234567"},
		{"letters dropped", "call 555.1234", "5551234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.input))
		})
	}
}

func TestBuildKeys(t *testing.T) {
	t.Run("yields all four kinds when present", func(t *testing.T) {
		record := &domain.Record{
			ID: "c1",
			Fields: map[string]any{
				"email":    " Jane@Example.com ",
				"phone":    "(555) 123-4567",
				"name":     "Jane Doe",
				"locality": "Springfield",
			},
		}
		keys := BuildKeys(record)
		assert.Len(t, keys, 4)
		assert.Contains(t, keys, DedupeKey{Kind: KindID, Value: "c1"})
		assert.Contains(t, keys, DedupeKey{Kind: KindEmail, Value: "jane@example.com"})
		assert.Contains(t, keys, DedupeKey{Kind: KindPhone, Value: "5551234567"})
		assert.Contains(t, keys, DedupeKey{Kind: KindFallback, Value: "jane doe|springfield"})
	})

	t.Run("city stands in for locality", func(t *testing.T) {
		record := &domain.Record{Fields: map[string]any{"name": "Jane", "city": "Shelbyville"}}
		keys := BuildKeys(record)
		assert.Contains(t, keys, DedupeKey{Kind: KindFallback, Value: "jane|shelbyville"})
	})

	t.Run("name without locality yields no fallback", func(t *testing.T) {
		record := &domain.Record{Fields: map[string]any{"name": "Jane"}}
		assert.Empty(t, BuildKeys(record))
	})

	t.Run("record with no usable fields yields nothing", func(t *testing.T) {
		assert.Empty(t, BuildKeys(&domain.Record{}))
		assert.Empty(t, BuildKeys(nil))
	})
}
