// Package postgres provides the PostgreSQL segment repository.
package postgres

import (
	"context"
	"fmt"

	"github.com/bqworks/paygrid/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements segments.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL segment repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListSegments returns all non-archived segments.
func (r *Repository) ListSegments(ctx context.Context) ([]domain.Segment, error) {
	query := `
		SELECT id, title
		FROM segments
		WHERE archived_at IS NULL
		ORDER BY title
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	segments := make([]domain.Segment, 0)
	for rows.Next() {
		var s domain.Segment
		if err := rows.Scan(&s.ID, &s.Title); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		segments = append(segments, s)
	}

	return segments, nil
}
