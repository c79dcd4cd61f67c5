package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bqworks/paygrid/internal/domain"
	"github.com/bqworks/paygrid/internal/records"
)

func TestOrderClause(t *testing.T) {
	tests := []struct {
		name  string
		query records.Query
		want  string
	}{
		{
			name:  "default sort is created_at desc with id tie-break",
			query: records.NewQuery(),
			want:  " ORDER BY created_at DESC, id DESC",
		},
		{
			name:  "created_at asc keeps the id tie-break",
			query: records.NewQuery().OrderBy(records.SortByCreatedAt, records.SortAsc),
			want:  " ORDER BY created_at ASC, id DESC",
		},
		{
			name:  "value sort breaks ties by created_at desc",
			query: records.NewQuery().OrderBy(records.SortByValue, records.SortAsc),
			want:  " ORDER BY value ASC, created_at DESC",
		},
		{
			name:  "value desc breaks ties by created_at desc",
			query: records.NewQuery().OrderBy(records.SortByValue, records.SortDesc),
			want:  " ORDER BY value DESC, created_at DESC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orderClause(tt.query))
		})
	}
}

func TestBuildWhere(t *testing.T) {
	t.Run("excluded records are always filtered", func(t *testing.T) {
		where, args := buildWhere(records.NewQuery())
		assert.Equal(t, " WHERE excluded = false", where)
		assert.Empty(t, args)
	})

	t.Run("filters compose with positional args in order", func(t *testing.T) {
		window := domain.TimeWindow{
			From: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC),
		}
		q := records.NewQuery().
			WithSource(domain.RecordSourceSalary).
			RestrictToSegments("seg-1", "seg-2").
			ApprovedOnly(true).
			Within(window)

		where, args := buildWhere(q)

		assert.Equal(t,
			" WHERE excluded = false"+
				" AND source = ANY($1)"+
				" AND segment_id = ANY($2::uuid[])"+
				" AND approved_for_stats = true"+
				" AND created_at >= $3 AND created_at < $4",
			where,
		)
		require.Len(t, args, 4)
		assert.Equal(t, []domain.RecordSource{domain.RecordSourceSalary}, args[0])
		assert.Equal(t, []string{"seg-1", "seg-2"}, args[1])
		assert.Equal(t, window.From, args[2])
		assert.Equal(t, window.To, args[3])
	})
}
