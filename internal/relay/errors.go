package relay

import "fmt"

// PermanentError indicates a delivery error that retrying will not fix
// (bad request, revoked credentials, missing endpoint).
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("delivery error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("delivery error: %s", e.Message)
}

// IsRetryable returns false: permanent errors should not be retried.
func (e *PermanentError) IsRetryable() bool { return false }

// RetryableError indicates a transient delivery error (network failure,
// rate limit, downstream 5xx).
type RetryableError struct {
	Code    int
	Message string
}

func (e *RetryableError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("delivery error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("delivery error: %s", e.Message)
}

// IsRetryable returns true: these errors are temporary.
func (e *RetryableError) IsRetryable() bool { return true }

// isRetryable classifies an error, defaulting unknown errors to retryable.
func isRetryable(err error) bool {
	type retryable interface {
		IsRetryable() bool
	}
	if r, ok := err.(retryable); ok {
		return r.IsRetryable()
	}
	return true
}
