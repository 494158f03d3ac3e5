package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"cohere/internal/domain"
)

type EngineSuite struct {
	suite.Suite
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) TestPickWinner() {
	s.Run("more non-empty fields wins", func() {
		a := &domain.Record{Fields: map[string]any{"name": "Jane"}}
		b := &domain.Record{Fields: map[string]any{"name": "Jane", "email": "jane@example.com"}}
		s.Equal(domain.PickB, PickWinner(a, b))
		s.Equal(domain.PickA, PickWinner(b, a))
	})

	s.Run("empty fields do not count", func() {
		a := &domain.Record{Fields: map[string]any{"name": "Jane"}}
		b := &domain.Record{Fields: map[string]any{"name": "Jane", "email": "", "phone": "  "}}
		s.Equal(domain.PickA, PickWinner(a, b))
	})

	s.Run("tie favors A", func() {
		a := &domain.Record{Fields: map[string]any{"name": "Jane"}}
		b := &domain.Record{Fields: map[string]any{"email": "j@example.com"}}
		s.Equal(domain.PickA, PickWinner(a, b))
	})

	s.Run("nil counts as zero fields", func() {
		a := &domain.Record{Fields: map[string]any{"name": "Jane"}}
		s.Equal(domain.PickA, PickWinner(a, nil))
		s.Equal(domain.PickB, PickWinner(nil, a))
	})
}

func (s *EngineSuite) TestMergeRecords() {
	now := time.Now().UTC()
	earlier := now.Add(-24 * time.Hour)

	s.Run("both nil is an error", func() {
		merged, err := MergeRecords(nil, nil, nil)
		s.ErrorIs(err, ErrRecordsRequired)
		s.Nil(merged)
	})

	s.Run("one nil merges against empty", func() {
		a := &domain.Record{Fields: map[string]any{"name": "Jane"}}
		merged, err := MergeRecords(a, nil, nil)
		s.Require().NoError(err)
		s.Equal("Jane", merged.Fields["name"])
	})

	s.Run("field union covers fields unique to either side", func() {
		a := &domain.Record{Fields: map[string]any{"name": "Jane", "title": "VP"}}
		b := &domain.Record{Fields: map[string]any{"name": "Jane", "phone": "555-123-4567"}}
		merged, err := MergeRecords(a, b, nil)
		s.Require().NoError(err)
		s.Equal("Jane", merged.Fields["name"])
		s.Equal("VP", merged.Fields["title"])
		s.Equal("555-123-4567", merged.Fields["phone"])
	})

	s.Run("resolver prefers the well-formed email", func() {
		a := &domain.Record{
			UpdatedAt: now,
			Fields:    map[string]any{"email": "jane doe at example"},
		}
		b := &domain.Record{
			UpdatedAt: earlier,
			Fields:    map[string]any{"email": "jane.doe@example.com"},
		}
		merged, err := MergeRecords(a, b, nil)
		s.Require().NoError(err)
		s.Equal("jane.doe@example.com", merged.Fields["email"])
	})

	s.Run("pick map overrides the resolver", func() {
		a := &domain.Record{Fields: map[string]any{"email": "keep@example.com"}}
		b := &domain.Record{Fields: map[string]any{"email": "better.formed@example.com"}}
		merged, err := MergeRecords(a, b, domain.PickMap{"email": domain.PickA})
		s.Require().NoError(err)
		s.Equal("keep@example.com", merged.Fields["email"])
	})

	s.Run("pick none omits the field entirely", func() {
		a := &domain.Record{Fields: map[string]any{"notes": "internal", "name": "Jane"}}
		b := &domain.Record{Fields: map[string]any{"notes": "other"}}
		merged, err := MergeRecords(a, b, domain.PickMap{"notes": domain.PickNone})
		s.Require().NoError(err)
		s.NotContains(merged.Fields, "notes")
		s.Equal("Jane", merged.Fields["name"])
	})

	s.Run("arrays union by default", func() {
		a := &domain.Record{Fields: map[string]any{"tags": []any{"vip", "q3"}}}
		b := &domain.Record{Fields: map[string]any{"tags": []any{"q3", "churn-risk"}}}
		merged, err := MergeRecords(a, b, nil)
		s.Require().NoError(err)
		s.Equal([]any{"vip", "q3", "churn-risk"}, merged.Fields["tags"])
	})

	s.Run("array pick takes one side verbatim", func() {
		a := &domain.Record{Fields: map[string]any{"tags": []any{"vip"}}}
		b := &domain.Record{Fields: map[string]any{"tags": []any{"churn-risk"}}}
		merged, err := MergeRecords(a, b, domain.PickMap{"tags": domain.PickB})
		s.Require().NoError(err)
		s.Equal([]any{"churn-risk"}, merged.Fields["tags"])
	})

	s.Run("array pick of an absent side yields empty", func() {
		a := &domain.Record{Fields: map[string]any{"tags": []any{"vip"}}}
		b := &domain.Record{Fields: map[string]any{}}
		merged, err := MergeRecords(a, b, domain.PickMap{"tags": domain.PickB})
		s.Require().NoError(err)
		s.Equal([]any{}, merged.Fields["tags"])
	})

	s.Run("keeps earlier createdAt and stamps fresh updatedAt", func() {
		a := &domain.Record{CreatedAt: now, UpdatedAt: earlier}
		b := &domain.Record{CreatedAt: earlier, UpdatedAt: now}
		before := time.Now().UTC()
		merged, err := MergeRecords(a, b, nil)
		s.Require().NoError(err)
		s.Equal(earlier, merged.CreatedAt)
		s.False(merged.UpdatedAt.Before(before))
	})

	s.Run("extras union with A winning conflicts", func() {
		a := &domain.Record{Extras: map[string]any{"source": "import", "owner": "alice"}}
		b := &domain.Record{Extras: map[string]any{"source": "manual", "team": "west"}}
		merged, err := MergeRecords(a, b, nil)
		s.Require().NoError(err)
		s.Equal("import", merged.Extras["source"])
		s.Equal("alice", merged.Extras["owner"])
		s.Equal("west", merged.Extras["team"])
	})

	s.Run("result carries no id", func() {
		a := &domain.Record{ID: "c1", Fields: map[string]any{"name": "Jane"}}
		b := &domain.Record{ID: "c2", Fields: map[string]any{"name": "Janet"}}
		merged, err := MergeRecords(a, b, nil)
		s.Require().NoError(err)
		s.Empty(merged.ID)
	})
}
