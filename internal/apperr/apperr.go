// Package apperr holds the sentinel errors shared between the services, the
// stores and the HTTP layer. Handlers map them to status codes with errors.Is.
package apperr

import "errors"

var (
	// ErrUnauthorized means the session token does not resolve to a user.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound covers both meals that do not exist and meals owned by a
	// different user, so callers cannot probe for foreign meal ids.
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken is returned when creating a user with an email that is
	// already registered.
	ErrEmailTaken = errors.New("email already in use")

	// ErrConsistency signals that an aggregate update would break the metrics
	// invariants (e.g. a counter going negative). It indicates a bug, not a
	// user error: the mutation is aborted and logged, never repaired.
	ErrConsistency = errors.New("metrics consistency violation")

	// ErrStorage wraps any failure coming from the store. The current
	// mutation is aborted atomically; retrying is the caller's decision.
	ErrStorage = errors.New("storage failure")
)
