package helpscout

import "fmt"

// AuthError is a fatal credential exchange failure. It aborts a run
// before any side effects occur.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("helpscout authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// FetchError is returned when a request exhausts its retry budget or
// the response body does not match the expected shape.
type FetchError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("helpscout request to %s failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("helpscout request to %s failed with status %d", e.Endpoint, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
