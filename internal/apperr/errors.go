// Package apperr defines the error taxonomy shared by the routing, dataset and
// processing packages. Errors are sentinels wrapped with fmt.Errorf("%w: ...")
// and matched with errors.Is.
package apperr

import "errors"

var (
	// ErrConfiguration marks a missing or blank required value: output folder,
	// lookup key, substitution target.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks a lookup that matched zero dataset rows.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguousMatch marks a lookup whose candidates could not be narrowed to one row.
	ErrAmbiguousMatch = errors.New("ambiguous match")
	// ErrTimeout marks a lookup that exceeded its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrMoveVerification marks a copy or delete that could not be confirmed.
	ErrMoveVerification = errors.New("move verification failed")
)

// IsBusinessRule reports whether err is one of the rule errors whose message is
// meaningful to an operator on its own, so callers can log it without the
// diagnostic detail attached to unexpected failures.
func IsBusinessRule(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAmbiguousMatch)
}
