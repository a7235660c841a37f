package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidRecipient = errors.New("recipient id must not be empty")
	ErrInvalidConfig    = errors.New("action config must be a JSON object")
	ErrQueueFull        = errors.New("trigger queue is at capacity, try again later")
	ErrLockHeld         = errors.New("dispatch lease is held by another cycle")
	ErrBatchEmpty       = errors.New("batch must contain at least one recipient")
	ErrBatchTooLarge    = errors.New("batch exceeds maximum of 1000 recipients")
)

// ValidationError reports a malformed create-lot or message-list payload.
// The affected group is still routed through the retry policy.
type ValidationError struct {
	Stage  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s payload validation failed: %s", e.Stage, e.Reason)
}

// IsValidation reports whether err (or anything it wraps) is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
