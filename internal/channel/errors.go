package channel

import "fmt"

// PermanentError indicates a transport failure that will not succeed on
// retry (bad chat id, revoked token).
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("channel error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("channel error: %s", e.Message)
}

// IsRetryable returns false as permanent errors should not be retried.
func (e *PermanentError) IsRetryable() bool { return false }

// RetryableError indicates a temporary transport failure.
type RetryableError struct {
	Code    int
	Message string
}

func (e *RetryableError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("channel error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("channel error: %s", e.Message)
}

// IsRetryable returns true as these errors are temporary.
func (e *RetryableError) IsRetryable() bool { return true }
