package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/reviewcash/backend/internal/models"
	"github.com/reviewcash/backend/internal/store"
)

var (
	// ErrValidation matches *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrRateLimited matches *RateLimitedError.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnsupportedTransition is returned for a resolution the kind does not define.
	ErrUnsupportedTransition = errors.New("unsupported transition")

	ErrNotFound       = store.ErrNotFound
	ErrAlreadyHandled = store.ErrAlreadyHandled
)

// ValidationError rejects a submission before anything is stored.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// RateLimitedError rejects a work submission inside its platform cooldown.
type RateLimitedError struct {
	Platform   models.Platform
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s cooldown active, retry in %s", e.Platform, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

func isValidation(err error) bool { return errors.Is(err, ErrValidation) }
