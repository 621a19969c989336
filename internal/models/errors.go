package models

import "errors"

// Error taxonomy shared across layers. Handlers translate these into HTTP
// status codes with response.StatusFor.
var (
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("already exists")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrTokenExpired    = errors.New("token expired")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyVerified = errors.New("already verified")
	ErrUpstream        = errors.New("upstream service failure")
)
