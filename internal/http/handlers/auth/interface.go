package auth

import (
	"context"

	authservice "github.com/hdportal/helpdesk-api/internal/services/auth"
)

// Service is the authentication flow used by Handler.
type Service interface {
	Register(ctx context.Context, npk, email, password string) (*authservice.RegisterResult, error)
	Login(ctx context.Context, npk, password string) (*authservice.LoginResult, error)
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email, npk string) error
	ForgotPassword(ctx context.Context, email string)
	ResetPassword(ctx context.Context, token, newPassword string) error
}
