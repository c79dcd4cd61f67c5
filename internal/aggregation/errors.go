package aggregation

import "errors"

// Repository errors.
var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrRunNotFound          = errors.New("run not found")
)

// Validation errors surfaced to the admin caller.
var (
	ErrInvalidSubscription  = errors.New("invalid subscription configuration")
	ErrUnknownSegments      = errors.New("subscription references unknown segments")
	ErrSubscriptionDeleted  = errors.New("subscription is deleted")
	ErrSubscriptionInactive = errors.New("subscription is paused")
)
