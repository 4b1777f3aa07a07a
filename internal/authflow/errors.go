package authflow

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input rejected before any store access.
	// Validation failures never count as failed attempts.
	ErrValidation = errors.New("validation failed")

	// ErrStageOrder rejects a registration stage invoked before its
	// predecessor committed, or after the record was already completed.
	ErrStageOrder = errors.New("registration stage out of order")

	// ErrIncompleteRegistration rejects login while the record is not
	// complete. Surfaced distinctly so the claimant is told to finish
	// registration rather than that credentials are wrong.
	ErrIncompleteRegistration = errors.New("registration not complete")

	// Authentication failures. Each increments the failure counter; none of
	// them discloses which marker or which answer was expected.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMarkerMismatch     = errors.New("fractal key mismatch")
	ErrIncorrectAnswer    = errors.New("incorrect answer")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
