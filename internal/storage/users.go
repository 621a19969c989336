package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hdportal/helpdesk-api/internal/models"
)

const userColumns = `id, npk, email, password_hash, verified, role, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.NPK, &u.Email, &u.PasswordHash, &u.Verified,
		&u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts user and returns the stored row. An empty ID is filled
// with a fresh uuid. A taken npk or email yields ErrConflict.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const op = "storage.CreateUser"

	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	query := `INSERT INTO users (id, npk, email, password_hash, verified, role)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query,
		user.ID, user.NPK, user.Email, user.PasswordHash, user.Verified, user.Role))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return u, nil
}

// GetUserByID returns the user with the given id.
func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.GetUserByID"
	return s.getUserBy(ctx, op, "id", id)
}

// GetUserByNPK returns the user with the given npk.
func (s *Storage) GetUserByNPK(ctx context.Context, npk string) (*models.User, error) {
	const op = "storage.GetUserByNPK"
	return s.getUserBy(ctx, op, "npk", npk)
}

// GetUserByEmail returns the user with the given email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	return s.getUserBy(ctx, op, "email", email)
}

// getUserBy is only called with column names that are constants of this file.
func (s *Storage) getUserBy(ctx context.Context, op, column, value string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, value))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return u, nil
}

// ListUsers returns every user, oldest first.
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	const op = "storage.ListUsers"

	rows, err := s.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateUser applies the non-nil fields of upd to the user with the given id.
func (s *Storage) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	const op = "storage.UpdateUser"

	query := `UPDATE users
			  SET email = COALESCE($2, email),
			      npk = COALESCE($3, npk),
			      password_hash = COALESCE($4, password_hash),
			      verified = COALESCE($5, verified),
			      updated_at = NOW()
			  WHERE id = $1
			  RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query,
		id, upd.Email, upd.NPK, upd.PasswordHash, upd.Verified))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return u, nil
}

// UpdateUserRole sets the role of the user with the given id.
func (s *Storage) UpdateUserRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	const op = "storage.UpdateUserRole"

	query := `UPDATE users SET role = $2, updated_at = NOW()
			  WHERE id = $1
			  RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, id, role))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return u, nil
}

// DeleteUser removes the user with the given id.
func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	const op = "storage.DeleteUser"

	res, err := s.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	if err = expectAffected(res); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
