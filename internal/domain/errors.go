package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Submission errors
	ErrValidation          = errors.New("invalid job input")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnknownKind         = errors.New("unknown job kind")
	ErrAtCapacity          = errors.New("job controller at capacity")

	// Store errors
	ErrJobNotFound     = errors.New("job not found")
	ErrJobTerminal     = errors.New("job already in a terminal state")
	ErrJobActive       = errors.New("job is still running")
	ErrAccountNotFound = errors.New("account not found")
	ErrStoreWrite      = errors.New("job store write failed")

	// Processing errors
	ErrExternalWorker = errors.New("external worker error")
	ErrJobTimeout     = errors.New("job timed out waiting for external worker")
)

// ValidationError describes a malformed submission field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidField returns a *ValidationError for field.
func InvalidField(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
