// Package postgres provides the PostgreSQL implementation of the record store.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/bqworks/paygrid/internal/domain"
	"github.com/bqworks/paygrid/internal/records"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements records.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL record store.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Materialize executes the query and returns the requested page.
func (r *Repository) Materialize(ctx context.Context, q records.Query, page records.Page) (*records.PageResult, error) {
	where, args := buildWhere(q)

	countQuery := `SELECT count(*) FROM stats_records` + where
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}

	if page.Size <= 0 {
		page.Size = 50
	}
	if page.Number <= 0 {
		page.Number = 1
	}

	query := `
		SELECT id, source, value, currency, segment_id, approved_for_stats, excluded, created_at
		FROM stats_records` + where + orderClause(q) + fmt.Sprintf(" LIMIT %d OFFSET %d", page.Size, (page.Number-1)*page.Size)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("materialize records: %w", err)
	}
	defer rows.Close()

	result := &records.PageResult{
		Records: make([]domain.StatsRecord, 0, page.Size),
		Total:   total,
		Page:    page,
	}
	for rows.Next() {
		var rec domain.StatsRecord
		err := rows.Scan(
			&rec.ID,
			&rec.Source,
			&rec.Value,
			&rec.Currency,
			&rec.SegmentID,
			&rec.ApprovedForStats,
			&rec.Excluded,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		result.Records = append(result.Records, rec)
	}

	return result, nil
}

// Values returns only the numeric values matching the query.
func (r *Repository) Values(ctx context.Context, q records.Query) ([]float64, error) {
	where, args := buildWhere(q)

	rows, err := r.db.Query(ctx, `SELECT value FROM stats_records`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query record values: %w", err)
	}
	defer rows.Close()

	values := make([]float64, 0)
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan record value: %w", err)
		}
		values = append(values, v)
	}

	return values, nil
}

// buildWhere translates query filters into a WHERE clause. Excluded
// records never enter any result set.
func buildWhere(q records.Query) (string, []any) {
	clauses := []string{"excluded = false"}
	args := make([]any, 0, 4)

	if sources := q.Sources(); len(sources) > 0 {
		args = append(args, sources)
		clauses = append(clauses, fmt.Sprintf("source = ANY($%d)", len(args)))
	}
	if q.RestrictsSegments() {
		args = append(args, q.SegmentIDs())
		clauses = append(clauses, fmt.Sprintf("segment_id = ANY($%d::uuid[])", len(args)))
	}
	if q.IsApprovedOnly() {
		clauses = append(clauses, "approved_for_stats = true")
	}
	if w := q.Window(); w != nil {
		args = append(args, w.From)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
		args = append(args, w.To)
		clauses = append(clauses, fmt.Sprintf("created_at < $%d", len(args)))
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

// orderClause renders the primary sort plus the stable created_at DESC
// tie-break that keeps pagination deterministic.
func orderClause(q records.Query) string {
	field, dir := q.Sort()

	column := "created_at"
	if field == records.SortByValue {
		column = "value"
	}
	direction := "ASC"
	if dir == records.SortDesc {
		direction = "DESC"
	}

	if column == "created_at" {
		return fmt.Sprintf(" ORDER BY created_at %s, id DESC", direction)
	}
	return fmt.Sprintf(" ORDER BY %s %s, created_at DESC", column, direction)
}
