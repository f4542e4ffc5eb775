package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrUnavailable  = errors.New("unavailable")
)

// Signup and verification failures. Each wraps one of the generic sentinels above,
// so errors.Is matches both the specific and the generic error.
var (
	ErrValidation           = fmt.Errorf("please fill in all fields: %w", ErrBadRequest)
	ErrBotCheckFailed       = fmt.Errorf("bot check failed: %w", ErrForbidden)
	ErrAccountExists        = fmt.Errorf("an account with this email already exists: %w", ErrConflict)
	ErrInvalidOrExpiredCode = fmt.Errorf("invalid or expired code: %w", ErrUnauthorized)
	ErrNoPendingSignup      = fmt.Errorf("start signup again: %w", ErrBadRequest)
	ErrDispatchFailed       = fmt.Errorf("verification email could not be sent: %w", ErrUnavailable)
)

// BotCheckError is a failed bot check. Its message is the gate's reason, which is
// safe to show; errors.Is matches both ErrBotCheckFailed and the reason.
type BotCheckError struct {
	Reason error
}

func (e *BotCheckError) Error() string {
	if e.Reason == nil {
		return ErrBotCheckFailed.Error()
	}
	return e.Reason.Error()
}

func (e *BotCheckError) Unwrap() []error {
	if e.Reason == nil {
		return []error{ErrBotCheckFailed}
	}
	return []error{ErrBotCheckFailed, e.Reason}
}
