package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking
// infrastructure details. ErrInvalidCredentials deliberately covers both the
// unknown-account and wrong-password cases so the two stay indistinguishable
// to callers.
var (
	ErrValidation         = errors.New("validation failed")
	ErrRateLimited        = errors.New("rate limited")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrExpired            = errors.New("expired")
	ErrAttemptsExceeded   = errors.New("attempts exceeded")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotVerified        = errors.New("not verified")
	ErrDeliveryFailed     = errors.New("delivery failed")
	ErrUnauthorized       = errors.New("unauthorized")
)
