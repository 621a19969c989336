package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hdportal/helpdesk-api/internal/models"
)

const actionColumns = `id, npk, user_id, request, reason, action, root_cause, status,
			      done_date, created_at, updated_at`

func scanAction(row rowScanner, extra ...any) (*models.HDAction, error) {
	var a models.HDAction
	var doneDate sql.NullTime
	dest := append([]any{&a.ID, &a.NPK, &a.UserID, &a.Request, &a.Reason, &a.Action,
		&a.RootCause, &a.Status, &doneDate, &a.CreatedAt, &a.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if doneDate.Valid {
		a.DoneDate = &doneDate.Time
	}
	return &a, nil
}

// CreateAction inserts a. The id is chosen by the caller; a duplicate id
// yields ErrConflict.
func (s *Storage) CreateAction(ctx context.Context, a models.HDAction) (*models.HDAction, error) {
	const op = "storage.CreateAction"

	query := `INSERT INTO hd_actions (id, npk, user_id, request, reason, action, root_cause, status, done_date)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING ` + actionColumns
	created, err := scanAction(s.DB.QueryRowContext(ctx, query,
		a.ID, a.NPK, a.UserID, a.Request, a.Reason, a.Action, a.RootCause, a.Status, a.DoneDate))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return created, nil
}

// GetAction returns the action with the given id.
func (s *Storage) GetAction(ctx context.Context, id string) (*models.HDAction, error) {
	const op = "storage.GetAction"

	a, err := scanAction(s.DB.QueryRowContext(ctx,
		`SELECT `+actionColumns+` FROM hd_actions WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return a, nil
}

// ListActionsByNPK returns the actions owned by npk, newest first.
func (s *Storage) ListActionsByNPK(ctx context.Context, npk string) ([]*models.HDAction, error) {
	const op = "storage.ListActionsByNPK"

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+actionColumns+` FROM hd_actions WHERE npk = $1 ORDER BY created_at DESC`, npk)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.HDAction, 0)
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListActions returns every action, newest first, each annotated with the
// current role of the user owning its npk. Actions whose owner no longer
// exists carry an empty role.
func (s *Storage) ListActions(ctx context.Context) ([]*models.HDAction, error) {
	const op = "storage.ListActions"

	query := `SELECT a.id, a.npk, a.user_id, a.request, a.reason, a.action, a.root_cause, a.status,
			      a.done_date, a.created_at, a.updated_at, COALESCE(u.role, '')
			  FROM hd_actions a
			  LEFT JOIN users u ON u.npk = a.npk
			  ORDER BY a.created_at DESC`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.HDAction, 0)
	for rows.Next() {
		var role string
		a, err := scanAction(rows, &role)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.OwnerRole = models.Role(role)
		result = append(result, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateAction overwrites the mutable fields of the action with a.ID.
func (s *Storage) UpdateAction(ctx context.Context, a models.HDAction) (*models.HDAction, error) {
	const op = "storage.UpdateAction"

	query := `UPDATE hd_actions
			  SET npk = $2, request = $3, reason = $4, action = $5, root_cause = $6,
			      status = $7, done_date = $8, updated_at = NOW()
			  WHERE id = $1
			  RETURNING ` + actionColumns
	updated, err := scanAction(s.DB.QueryRowContext(ctx, query,
		a.ID, a.NPK, a.Request, a.Reason, a.Action, a.RootCause, a.Status, a.DoneDate))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return updated, nil
}

// DeleteAction removes the action with the given id.
func (s *Storage) DeleteAction(ctx context.Context, id string) error {
	const op = "storage.DeleteAction"

	res, err := s.DB.ExecContext(ctx, `DELETE FROM hd_actions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = expectAffected(res); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CountActionsCreatedBetween counts the actions of npk created in [from, to).
func (s *Storage) CountActionsCreatedBetween(ctx context.Context, npk string, from, to time.Time) (int, error) {
	const op = "storage.CountActionsCreatedBetween"

	var count int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM hd_actions WHERE npk = $1 AND created_at >= $2 AND created_at < $3`,
		npk, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}
