package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shinyyama/rental-backend/internal/repository"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
	ErrTransient       = errors.New("temporarily unavailable")
)

// storeError converts a repository failure into the service taxonomy. what
// names the thing being looked up or written.
func storeError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, repository.ErrDuplicate), errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %s", ErrConflict, what)
	case errors.Is(err, repository.ErrDBNotReady),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %s", ErrTransient, what)
	}
	// anything else from the driver is treated as retryable; the cause stays
	// in the chain for logs but the message is generic
	return &transientError{what: what, cause: err}
}

type transientError struct {
	what  string
	cause error
}

func (e *transientError) Error() string {
	return fmt.Sprintf("%s: %s", ErrTransient, e.what)
}

func (e *transientError) Unwrap() []error {
	return []error{ErrTransient, e.cause}
}
