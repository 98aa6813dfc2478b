package automation

import (
	"errors"
)

// ActionError - Failure raised by an action handler. Transient failures
// (downstream timeout, 5xx) are retried with backoff; permanent ones
// (bad config discovered at execution time) fail the record immediately.
type ActionError struct {
	Err       error
	Permanent bool
}

func (e *ActionError) Error() string {
	return e.Err.Error()
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

func NewTransientActionError(err error) *ActionError {
	return &ActionError{Err: err, Permanent: false}
}

func NewPermanentActionError(err error) *ActionError {
	return &ActionError{Err: err, Permanent: true}
}

// IsPermanentActionError - Anything not explicitly classified as
// permanent is retried; an unclassified error (network failure, context
// deadline) behaves like a transient one.
func IsPermanentActionError(err error) bool {
	var actionErr *ActionError
	if errors.As(err, &actionErr) {
		return actionErr.Permanent
	}
	return false
}
