// Package user implements profile management and the administrative user
// CRUD.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hdportal/helpdesk-api/internal/lib/password"
	"github.com/hdportal/helpdesk-api/internal/lib/sl"
	"github.com/hdportal/helpdesk-api/internal/models"
)

// Repository is the credential store.
type Repository interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByNPK(ctx context.Context, npk string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error)
	UpdateUserRole(ctx context.Context, id string, role models.Role) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// Verifier sends a verification link to an account.
type Verifier interface {
	SendVerification(ctx context.Context, user *models.User) error
}

// NewUser is an account created by an administrator.
type NewUser struct {
	NPK      string
	Email    string
	Password string
	Role     models.Role
	Verified bool
}

// Changes is an administrative update. Nil fields are left untouched.
type Changes struct {
	Email    *string
	NPK      *string
	Password *string
	Verified *bool
}

// Service implements user management.
type Service struct {
	users    Repository
	verifier Verifier
	log      *slog.Logger
}

// New creates a Service.
func New(users Repository, verifier Verifier, log *slog.Logger) *Service {
	return &Service{users: users, verifier: verifier, log: log}
}

// Profile returns the account with the given id.
func (s *Service) Profile(ctx context.Context, id string) (*models.User, error) {
	const op = "user.Profile"
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UpdateProfile changes the email of the caller. A new address is
// unverified until the link mailed to it is followed; a failed mail is only
// logged since the caller can ask for it again.
func (s *Service) UpdateProfile(ctx context.Context, id, email string) (*models.User, error) {
	const op = "user.UpdateProfile"

	current, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if current.Email == email {
		return current, nil
	}
	if err = s.ensureEmailFree(ctx, id, email); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	verified := false
	updated, err := s.users.UpdateUser(ctx, id, models.UserUpdate{Email: &email, Verified: &verified})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = s.verifier.SendVerification(ctx, updated); err != nil {
		s.log.Warn("failed to send verification after email change",
			slog.String("op", op), slog.String("user_id", id), sl.Err(err))
	}
	return updated, nil
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]*models.User, error) {
	const op = "user.List"
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// Create adds an account on behalf of an administrator.
func (s *Service) Create(ctx context.Context, in NewUser) (*models.User, error) {
	const op = "user.Create"

	if in.Role == "" {
		in.Role = models.RoleUser
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%s: %w: unknown role %q", op, models.ErrValidation, in.Role)
	}
	if err := s.ensureNPKFree(ctx, "", in.NPK); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.ensureEmailFree(ctx, "", in.Email); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hashed, err := password.GetHash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	created, err := s.users.CreateUser(ctx, models.User{
		NPK:          in.NPK,
		Email:        in.Email,
		PasswordHash: hashed,
		Verified:     in.Verified,
		Role:         in.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// Update applies an administrative change to the account with the given id.
// A new email or npk must not belong to another account.
func (s *Service) Update(ctx context.Context, id string, ch Changes) (*models.User, error) {
	const op = "user.Update"

	current, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	upd := models.UserUpdate{Verified: ch.Verified}
	if ch.Email != nil && *ch.Email != current.Email {
		if err = s.ensureEmailFree(ctx, id, *ch.Email); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		upd.Email = ch.Email
	}
	if ch.NPK != nil && *ch.NPK != current.NPK {
		if err = s.ensureNPKFree(ctx, id, *ch.NPK); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		upd.NPK = ch.NPK
	}
	if ch.Password != nil {
		hashed, err := password.GetHash(*ch.Password)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		upd.PasswordHash = &hashed
	}

	updated, err := s.users.UpdateUser(ctx, id, upd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

// Delete removes the account with the given id.
func (s *Service) Delete(ctx context.Context, id string) error {
	const op = "user.Delete"
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetRole changes the role of the account with the given id.
func (s *Service) SetRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	const op = "user.SetRole"
	if !role.Valid() {
		return nil, fmt.Errorf("%s: %w: unknown role %q", op, models.ErrValidation, role)
	}
	updated, err := s.users.UpdateUserRole(ctx, id, role)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

// ensureEmailFree fails with models.ErrConflict when email belongs to an
// account other than selfID.
func (s *Service) ensureEmailFree(ctx context.Context, selfID, email string) error {
	existing, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return fmt.Errorf("email %w", models.ErrConflict)
	}
	return nil
}

func (s *Service) ensureNPKFree(ctx context.Context, selfID, npk string) error {
	existing, err := s.users.GetUserByNPK(ctx, npk)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return fmt.Errorf("npk %w", models.ErrConflict)
	}
	return nil
}
