// Package common defines shared constants and sentinel errors used across
// client and server layers of trainbook. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Transport-level errors. Every failure of the underlying stream wraps
	// ErrTransport; a frame that cannot be interpreted wraps ErrDecode.
	ErrTransport  = errors.New("transport error")
	ErrDecode     = errors.New("decode error")
	ErrConnClosed = errors.New("connection closed")

	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors.
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUnexpectedResponse = errors.New("unexpected response")
	ErrNotAcknowledged    = errors.New("not acknowledged")

	// Admin token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
