package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := ValidationError("hour %d out of range", 25)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "hour 25 out of range")
}

func TestUserMessageIsDistinctPerKind(t *testing.T) {
	kinds := []error{
		ErrConflict,
		ValidationError("bad date"),
		fmt.Errorf("load windows: %w", ErrTransientFetch),
		ErrNotification,
		ErrUnauthorized,
		ErrForbidden,
		ErrNotFound,
		errors.New("boom"),
	}
	seen := make(map[string]bool)
	for _, k := range kinds {
		msg := UserMessage(k)
		assert.NotEmpty(t, msg)
		assert.False(t, seen[msg], "duplicate message %q", msg)
		seen[msg] = true
	}
	assert.Empty(t, UserMessage(nil))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(fmt.Errorf("x: %w", ErrTransientFetch)))
	assert.False(t, Retryable(ErrConflict))
}
