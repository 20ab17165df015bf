package ledger

import (
	"errors"
	"fmt"
)

// ErrInvariant is the sentinel wrapped by every InvariantError, for use
// with errors.Is(err, ErrInvariant).
var ErrInvariant = errors.New("ledger invariant violation")

// ErrNotFound is returned when a mutator is asked to act on an
// organization, ruleset, or rule entry that does not exist in the
// ledger.
var ErrNotFound = errors.New("ledger entry not found")

// InvariantError reports a forbidden ledger transition. These indicate
// programmer error in the caller and are meant to fail loudly and fail
// tests, not be recovered from.
type InvariantError struct {
	Op     string // e.g. "addRuleset", "deleteRuleset"
	Detail string
}

// Error returns a human-readable description of the violation.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("ledger: %s: %s", e.Op, e.Detail)
}

// Is reports whether this error matches target, supporting
// errors.Is(err, ErrInvariant).
func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariant
}

func invariantf(op, format string, args ...interface{}) error {
	return &InvariantError{Op: op, Detail: fmt.Sprintf(format, args...)}
}
