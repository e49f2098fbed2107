package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrConflict       = errors.New("slot already taken")
	ErrTransientFetch = errors.New("temporary fetch failure")
	ErrNotification   = errors.New("notification failed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
)

// ValidationError wraps ErrValidation with a caller-facing message.
func ValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// UserMessage maps an error to the text shown to end users.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConflict):
		return "This hour was just booked. Please pick another slot."
	case errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrTransientFetch):
		return "Temporarily unable to load data, please try again."
	case errors.Is(err, ErrNotification):
		return "Booking saved, but the confirmation could not be sent."
	case errors.Is(err, ErrUnauthorized):
		return "Wrong email or password."
	case errors.Is(err, ErrForbidden):
		return "You are not allowed to do this."
	case errors.Is(err, ErrNotFound):
		return "Not found."
	default:
		return "Booking failed."
	}
}

// Retryable reports whether the caller may simply try again.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransientFetch)
}
