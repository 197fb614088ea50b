package hours

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("hours: not found")
	ErrUnauthorized = errors.New("hours: unauthorized")

	// ErrNotPending is the conflict outcome: the entry left the active set,
	// typically because another reviewer archived it first. Callers should
	// refresh the pending list and retry.
	ErrNotPending = errors.New("hours: entry is no longer pending")
)

// ValidationError names the failing input field. It is reported inline and
// never retried automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("hours: invalid %s: %s", e.Field, e.Reason)
}

func invalidField(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
