// Package common defines shared constants and sentinel errors used across
// client and server layers of dropgate. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Proxy-level errors.
	ErrInvalidOperation = errors.New("invalid operation")

	// Fatal startup errors (missing credentials, bucket, endpoint).
	ErrConfiguration = errors.New("configuration error")

	// Storage-level errors.
	ErrNotFound = errors.New("not found")
	ErrStore    = errors.New("object store error")
	ErrTimeout  = errors.New("operation timed out")

	// Transport-encoding errors.
	ErrDecode = errors.New("malformed transport payload")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)
