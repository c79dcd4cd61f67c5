package records

import (
	"context"

	"github.com/bqworks/paygrid/internal/domain"
)

// Page selects one page of a materialized query.
type Page struct {
	Number int
	Size   int
}

// PageResult is one page of records plus the total match count.
type PageResult struct {
	Records []domain.StatsRecord
	Total   int
	Page    Page
}

// Repository is the queryable record store. The aggregation engine never
// mutates records; this interface is deliberately read-only.
type Repository interface {
	// Materialize executes the query and returns the requested page.
	Materialize(ctx context.Context, q Query, page Page) (*PageResult, error)

	// Values returns only the numeric values matching the query, for
	// aggregation paths that do not need full records or paging.
	Values(ctx context.Context, q Query) ([]float64, error)
}
