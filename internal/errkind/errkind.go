// Package errkind tags solver errors with the taxonomy from spec.md §7 so
// the main loop and logger can route on category without string-matching
// error messages.
package errkind

import "errors"

// Kind is one of the error categories the solver distinguishes.
type Kind string

const (
	Configuration      Kind = "configuration"
	Transient          Kind = "transient"
	ProverFailure      Kind = "prover_failure"
	ChainRejection     Kind = "chain_rejection"
	InvariantViolation Kind = "invariant_violation"
	Skip               Kind = "skip"
)

// Error wraps an underlying error with its kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with kind. Wrap(nil, ...) returns nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Of returns the Kind of err if it (or something it wraps) is an *Error,
// and ok=false otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
