package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrValidation      = errors.New("validation failed")
	ErrAlreadyVerified = errors.New("already verified")
	ErrExpired         = errors.New("expired")
	ErrMismatch        = errors.New("mismatch")
	ErrTooShort        = errors.New("too short")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrDelivery        = errors.New("delivery failed")
)
