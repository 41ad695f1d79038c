package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or unknown input.
	ErrValidation = errors.New("validation error")

	// ErrPermissionDenied is returned for every failed ownership or role check.
	// The message deliberately does not distinguish "not found" from "not yours".
	ErrPermissionDenied = errors.New("Invalid permissions")

	// ErrConflict marks a duplicate (userID, exchangeID) credential pair.
	ErrConflict = errors.New("Keys for that exchange already exists")

	ErrRecordNotFound = errors.New("record not found")
)

// ValidationError carries a human-readable message that is safe to surface
// verbatim to the caller. It matches ErrValidation under errors.Is.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Validationf -.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
