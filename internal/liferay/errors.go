package liferay

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates an expected folder or content entry is absent.
var ErrNotFound = errors.New("liferay: resource not found")

// RemoteError represents a non-2xx response from the destination platform,
// carrying the body for operator diagnosis.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("liferay: HTTP %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the call may be retried (rate limit or 5xx).
func (e *RemoteError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

func isRetryable(err error) bool {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Retryable()
	}
	return false
}
