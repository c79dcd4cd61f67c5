// Package records provides read-only access to the approved salary and
// company-review record store, through a composable side-effect-free
// query builder.
package records

import "github.com/bqworks/paygrid/internal/domain"

// SortField is a sortable record attribute.
type SortField string

const (
	SortByValue     SortField = "value"
	SortByCreatedAt SortField = "created_at"
)

// SortDirection orders a sort ascending or descending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Query is an immutable filter/sort description over the record store.
// Every builder method returns a new value, so a filtered base query can
// be branched for multiple downstream uses without shared-state hazards.
type Query struct {
	sources      []domain.RecordSource
	segmentIDs   []string
	approvedOnly bool
	window       *domain.TimeWindow
	orderBy      SortField
	direction    SortDirection
}

// NewQuery returns an unrestricted query ordered by creation time descending.
func NewQuery() Query {
	return Query{
		orderBy:   SortByCreatedAt,
		direction: SortDesc,
	}
}

// WithSource restricts the query to the given record populations.
func (q Query) WithSource(sources ...domain.RecordSource) Query {
	q.sources = append([]domain.RecordSource(nil), sources...)
	return q
}

// RestrictToSegments restricts the query to records in the given segments.
// An empty set means unrestricted.
func (q Query) RestrictToSegments(ids ...string) Query {
	q.segmentIDs = append([]string(nil), ids...)
	return q
}

// ApprovedOnly toggles the approved-for-stats gate. Aggregation always
// sets it; admin views may not.
func (q Query) ApprovedOnly(v bool) Query {
	q.approvedOnly = v
	return q
}

// Within bounds the query to records created inside the window.
func (q Query) Within(w domain.TimeWindow) Query {
	q.window = &w
	return q
}

// OrderBy sets the primary sort. Ties are always broken by creation
// timestamp descending so pagination stays deterministic across calls.
func (q Query) OrderBy(field SortField, dir SortDirection) Query {
	q.orderBy = field
	q.direction = dir
	return q
}

// Accessors used by store implementations.

func (q Query) Sources() []domain.RecordSource { return q.sources }
func (q Query) SegmentIDs() []string           { return q.segmentIDs }
func (q Query) IsApprovedOnly() bool           { return q.approvedOnly }
func (q Query) Window() *domain.TimeWindow     { return q.window }
func (q Query) Sort() (SortField, SortDirection) {
	return q.orderBy, q.direction
}

// RestrictsSegments reports whether the query carries a segment scope.
func (q Query) RestrictsSegments() bool { return len(q.segmentIDs) > 0 }
