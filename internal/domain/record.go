package domain

import "time"

// RecordSource identifies which population a stats record belongs to.
type RecordSource string

const (
	RecordSourceSalary        RecordSource = "salary"
	RecordSourceCompanyReview RecordSource = "company_review"
)

// StatsRecord is a single salary entry or company review rating.
// Records are immutable once approved and are read-only input for the
// aggregation engine: only approved, non-excluded records enter stats.
type StatsRecord struct {
	ID               string
	Source           RecordSource
	Value            float64
	Currency         string
	SegmentID        string
	ApprovedForStats bool
	Excluded         bool
	CreatedAt        time.Time
}
