// Package auth implements registration, login, email verification and the
// password recovery flows, and resolves bearer tokens for the access guard.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hdportal/helpdesk-api/internal/config"
	"github.com/hdportal/helpdesk-api/internal/lib/jwt"
	"github.com/hdportal/helpdesk-api/internal/lib/password"
	"github.com/hdportal/helpdesk-api/internal/lib/sl"
	"github.com/hdportal/helpdesk-api/internal/models"
)

// UserRepository is the part of the credential store used by Service.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByNPK(ctx context.Context, npk string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error)
}

// Mailer delivers the verification and reset links.
type Mailer interface {
	SendVerification(ctx context.Context, to, npk, link string) error
	SendPasswordReset(ctx context.Context, to, npk, link string) error
}

// Denylist makes reset tokens single-use.
type Denylist interface {
	IsUsed(ctx context.Context, jti string) (bool, error)
	Consume(ctx context.Context, jti string, expiresAt time.Time) (bool, error)
	Release(ctx context.Context, jti string) error
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token    string       `json:"token"`
	Verified bool         `json:"verified"`
	User     *models.User `json:"user"`
}

// RegisterResult is returned by a successful Register. Token is a
// short-lived "protected" token.
type RegisterResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Service implements the authentication flows.
type Service struct {
	users       UserRepository
	tokens      jwt.Maker
	mailer      Mailer
	denylist    Denylist
	ttl         config.JWTToken
	frontendURL string
	log         *slog.Logger
}

// New creates a Service. frontendURL is the base of the links put in mail.
func New(users UserRepository, tokens jwt.Maker, mailer Mailer, denylist Denylist,
	ttl config.JWTToken, frontendURL string, log *slog.Logger) *Service {
	return &Service{
		users:       users,
		tokens:      tokens,
		mailer:      mailer,
		denylist:    denylist,
		ttl:         ttl,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         log,
	}
}

// Register creates an unverified account. The account id and its protected
// token are minted and the verification mail is sent before the insert; when
// any of them fails no account is created.
func (s *Service) Register(ctx context.Context, npk, email, rawPassword string) (*RegisterResult, error) {
	const op = "auth.Register"

	if err := s.ensureFree(ctx, npk, email); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	id := uuid.NewString()
	token, err := s.tokens.Issue(jwt.Claims{
		UserID:  id,
		Role:    string(models.RoleUser),
		NPK:     npk,
		Purpose: jwt.PurposeProtected,
	}, s.ttl.ProtectedTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = s.sendVerification(ctx, npk, email); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.users.CreateUser(ctx, models.User{
		ID:           id,
		NPK:          npk,
		Email:        email,
		PasswordHash: hashed,
		Role:         models.RoleUser,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &RegisterResult{Token: token, User: user}, nil
}

// ensureFree returns models.ErrConflict when npk or email is taken.
func (s *Service) ensureFree(ctx context.Context, npk, email string) error {
	if _, err := s.users.GetUserByNPK(ctx, npk); err == nil {
		return fmt.Errorf("npk %w", models.ErrConflict)
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return fmt.Errorf("email %w", models.ErrConflict)
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}
	return nil
}

// Login checks the credentials and issues a session token. An unknown npk and
// a wrong password produce the same error.
func (s *Service) Login(ctx context.Context, npk, rawPassword string) (*LoginResult, error) {
	const op = "auth.Login"

	user, err := s.users.GetUserByNPK(ctx, npk)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUnauthorized)
	}

	token, err := s.tokens.Issue(jwt.Claims{
		UserID:  user.ID,
		Role:    string(user.Role),
		NPK:     user.NPK,
		Purpose: jwt.PurposeSession,
	}, s.ttl.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &LoginResult{Token: token, Verified: user.Verified, User: user}, nil
}

// VerifyEmail marks the account named by a verification token as verified.
// The token must have been mailed to the account's current address. Any
// token problem is reported as models.ErrValidation.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	const op = "auth.VerifyEmail"

	claims, err := s.tokens.Parse(token)
	if err != nil || claims.Purpose != jwt.PurposeVerification || claims.NPK == "" || claims.Email == "" {
		return fmt.Errorf("%s: %w: invalid or expired token", op, models.ErrValidation)
	}

	user, err := s.users.GetUserByNPK(ctx, claims.NPK)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !strings.EqualFold(claims.Email, user.Email) {
		return fmt.Errorf("%s: %w: invalid or expired token", op, models.ErrValidation)
	}
	if user.Verified {
		return fmt.Errorf("%s: %w", op, models.ErrAlreadyVerified)
	}

	verified := true
	if _, err = s.users.UpdateUser(ctx, user.ID, models.UserUpdate{Verified: &verified}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ResendVerification mails a fresh verification link to an unverified account
// identified by both its email and npk.
func (s *Service) ResendVerification(ctx context.Context, email, npk string) error {
	const op = "auth.ResendVerification"

	if email == "" || npk == "" {
		return fmt.Errorf("%s: %w: email and npk are required", op, models.ErrValidation)
	}
	user, err := s.users.GetUserByNPK(ctx, npk)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !strings.EqualFold(user.Email, email) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if user.Verified {
		return fmt.Errorf("%s: %w", op, models.ErrAlreadyVerified)
	}
	if err = s.sendVerification(ctx, user.NPK, user.Email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SendVerification mails a verification link for user. It is used after an
// email change.
func (s *Service) SendVerification(ctx context.Context, user *models.User) error {
	const op = "auth.SendVerification"
	if err := s.sendVerification(ctx, user.NPK, user.Email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) sendVerification(ctx context.Context, npk, email string) error {
	token, err := s.tokens.Issue(jwt.Claims{NPK: npk, Email: email, Purpose: jwt.PurposeVerification}, s.ttl.VerificationTTL)
	if err != nil {
		return err
	}
	link := s.frontendURL + "/verify-email?token=" + url.QueryEscape(token)
	if err = s.mailer.SendVerification(ctx, email, npk, link); err != nil {
		if errors.Is(err, models.ErrUpstream) {
			return err
		}
		return fmt.Errorf("%w: %v", models.ErrUpstream, err)
	}
	return nil
}

// ForgotPassword mails a reset link when email belongs to an account. It
// never reports whether the account exists; failures are only logged.
func (s *Service) ForgotPassword(ctx context.Context, email string) {
	const op = "auth.ForgotPassword"
	log := s.log.With(slog.String("op", op))

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			log.Error("failed to look up user", sl.Err(err))
		}
		return
	}

	token, err := s.tokens.Issue(jwt.Claims{UserID: user.ID, Purpose: jwt.PurposeReset}, s.ttl.ResetTTL)
	if err != nil {
		log.Error("failed to issue reset token", sl.Err(err))
		return
	}
	link := s.frontendURL + "/reset-password?token=" + url.QueryEscape(token)
	if err = s.mailer.SendPasswordReset(ctx, user.Email, user.NPK, link); err != nil {
		log.Error("failed to send reset mail", slog.String("user_id", user.ID), sl.Err(err))
	}
}

// ResetPassword replaces the password of the account named by a reset token.
// Each token can be redeemed once.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	const op = "auth.ResetPassword"

	claims, err := s.tokens.Parse(token)
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return fmt.Errorf("%s: %w", op, models.ErrTokenExpired)
	case err != nil, claims.Purpose != jwt.PurposeReset, claims.UserID == "":
		return fmt.Errorf("%s: %w: invalid reset token", op, models.ErrUnauthorized)
	}

	used, err := s.denylist.IsUsed(ctx, claims.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if used {
		return fmt.Errorf("%s: %w: reset token already used", op, models.ErrUnauthorized)
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	hashed, err := password.GetHash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	fresh, err := s.denylist.Consume(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !fresh {
		return fmt.Errorf("%s: %w: reset token already used", op, models.ErrUnauthorized)
	}

	if _, err = s.users.UpdateUser(ctx, user.ID, models.UserUpdate{PasswordHash: &hashed}); err != nil {
		if relErr := s.denylist.Release(ctx, claims.ID); relErr != nil {
			s.log.Error("failed to release reset token", slog.String("op", op), sl.Err(relErr))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ChangePassword replaces the password of userID after checking the current
// one. A wrong current password is a models.ErrValidation.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	const op = "auth.ChangePassword"

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = password.CompareHash(user.PasswordHash, currentPassword); err != nil {
		return fmt.Errorf("%s: %w: current password is incorrect", op, models.ErrValidation)
	}

	hashed, err := password.GetHash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err = s.users.UpdateUser(ctx, user.ID, models.UserUpdate{PasswordHash: &hashed}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Authenticate resolves a session or protected bearer token to its user.
// Expired tokens yield models.ErrTokenExpired, anything else that prevents
// resolution yields models.ErrUnauthorized.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	const op = "auth.Authenticate"

	claims, err := s.tokens.Parse(token)
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return nil, fmt.Errorf("%s: %w", op, models.ErrTokenExpired)
	case err != nil:
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrUnauthorized, err)
	}
	if claims.Purpose != jwt.PurposeSession && claims.Purpose != jwt.PurposeProtected {
		return nil, fmt.Errorf("%s: %w: token purpose %q", op, models.ErrUnauthorized, claims.Purpose)
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w: user not found", op, models.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}
