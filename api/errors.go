package api

import (
	"errors"
	"fmt"
)

// ErrUserNotFound means the login does not exist on Twitch. It is surfaced
// to command callers as-is and must never be treated as "went offline".
var ErrUserNotFound = errors.New("twitch user not found")

// AuthError means credentials are missing or the token exchange was
// rejected. Fatal for the current sweep; the scheduler retries next cycle.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("twitch auth: %s: %v", e.Reason, e.Err)
	}
	return "twitch auth: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransientError covers recoverable query failures: network errors,
// timeouts, and non-2xx responses other than a user-lookup miss. The entry
// that hit it keeps its persisted state and is retried next sweep.
type TransientError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("twitch %s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("twitch %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried on the next sweep.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
