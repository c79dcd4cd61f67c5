package domain

// Segment is a filterable dimension (a profession, for instance)
// restricting which records enter a subscription's aggregate.
type Segment struct {
	ID    string
	Title string
}
