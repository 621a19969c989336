package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose tells which flow a token was minted for.
type Purpose string

const (
	PurposeSession      Purpose = "session"
	PurposeVerification Purpose = "verify-email"
	PurposeReset        Purpose = "reset-password"
	PurposeProtected    Purpose = "protected"
)

// Claims is the payload carried by every token.
type Claims struct {
	UserID string `json:"id,omitempty"`
	Role   string `json:"role,omitempty"`
	NPK    string `json:"npk,omitempty"`
	// Email is the address a verification token was mailed to.
	Email   string  `json:"email,omitempty"`
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// Issue signs claims with HS256. IssuedAt, ExpiresAt and a random token ID
// are always overwritten.
func (j *MakerImpl) Issue(claims Claims, ttl time.Duration) (string, error) {
	const op = "jwt.Issue"
	if j.secretKey == "" {
		return "", fmt.Errorf("%s: %w", op, ErrMissingSecret)
	}

	now := j.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// Parse verifies the signature and expiry of tokenStr. Expired tokens yield
// ErrExpired, everything else that fails yields ErrInvalid.
func (j *MakerImpl) Parse(tokenStr string) (*Claims, error) {
	const op = "jwt.Parse"
	if j.secretKey == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingSecret)
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrExpired)
		}
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalid, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalid)
	}
	return claims, nil
}
