// Package jwt issues and verifies the signed, time-limited bearer tokens used
// for sessions, email verification and password reset.
package jwt

import (
	"errors"
	"time"
)

var (
	// ErrMissingSecret is returned when the maker has no signing secret.
	ErrMissingSecret = errors.New("jwt signing secret is not configured")
	// ErrExpired is returned for a well-formed token past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrInvalid is returned for a token with a bad signature or format.
	ErrInvalid = errors.New("invalid token")
)

// Maker describes token issuance and verification.
type Maker interface {
	// Issue signs claims and sets their expiry to now+ttl.
	Issue(claims Claims, ttl time.Duration) (string, error)
	// Parse verifies tokenStr and returns its claims.
	Parse(tokenStr string) (*Claims, error)
}

// MakerImpl implements Maker with an HMAC secret.
type MakerImpl struct {
	secretKey string
	now       func() time.Time
}

// NewJWTMaker creates a maker that signs with secretKey.
func NewJWTMaker(secretKey string) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		now:       time.Now,
	}
}
