// Package common defines shared constants and the stable error kinds used
// across the filehost layers. Callers should use errors.Is to match these
// values; lower layers wrap them with fmt.Errorf("...: %w", err).
package common

import "errors"

var (
	// Input errors (bad or missing request data).
	ErrValidation = errors.New("validation failed")
	ErrTooLarge   = errors.New("file too large")

	// Principal errors.
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	// Storage backend errors.
	ErrStorageWrite = errors.New("storage write failed")
	ErrStorageRead  = errors.New("storage read failed")

	// Service-level errors (generic/internal flow control).
	ErrInternal = errors.New("internal error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
