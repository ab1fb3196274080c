package registry

import "fmt"

// AuthError reports a failed token acquisition. Status is the HTTP
// status of the token endpoint's last response, or 0 when the transport
// produced no response at all.
type AuthError struct {
	Status int
	Body   string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("registry token request failed with no response: %v", e.Err)
	}
	return fmt.Sprintf("registry token request rejected: status %d: %s", e.Status, e.Body)
}

// Unwrap returns the underlying transport error, if any.
func (e *AuthError) Unwrap() error { return e.Err }

// ClientError reports a data-submission call that failed after the
// client's retry budget was spent, or immediately for a non-retryable
// 4xx response. Status 0 means the transport produced no response.
type ClientError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *ClientError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("registry %s failed with no response: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("registry %s failed: status %d: %s", e.Op, e.Status, e.Body)
}

// Unwrap returns the underlying transport error, if any.
func (e *ClientError) Unwrap() error { return e.Err }
