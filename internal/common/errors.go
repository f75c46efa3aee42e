// Package common defines shared constants and sentinel errors used across
// client and server layers of Scribe. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Sync flow control.
	ErrVersionConflict      = errors.New("version conflict")
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")
	ErrOffline              = errors.New("offline")

	// Validation / entry-specific errors.
	ErrValidation = errors.New("validation error")

	// Service-level errors.
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
