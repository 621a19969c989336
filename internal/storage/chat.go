package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hdportal/helpdesk-api/internal/models"
)

const sessionColumns = `sender_id, chat_id, name, messages, created_at, updated_at`

func scanSession(row rowScanner) (*models.ChatSession, error) {
	var cs models.ChatSession
	var raw []byte
	if err := row.Scan(&cs.SenderID, &cs.ChatID, &cs.Name, &raw, &cs.CreatedAt, &cs.UpdatedAt); err != nil {
		return nil, err
	}
	cs.Messages = make([]models.ChatMessage, 0)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cs.Messages); err != nil {
			return nil, fmt.Errorf("decode messages: %w", err)
		}
	}
	return &cs, nil
}

// CreateSession inserts an empty session.
func (s *Storage) CreateSession(ctx context.Context, cs models.ChatSession) (*models.ChatSession, error) {
	const op = "storage.CreateSession"

	query := `INSERT INTO chat_sessions (sender_id, chat_id, name)
			  VALUES ($1, $2, $3)
			  RETURNING ` + sessionColumns
	created, err := scanSession(s.DB.QueryRowContext(ctx, query, cs.SenderID, cs.ChatID, cs.Name))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return created, nil
}

// GetSession returns the session identified by the (senderID, chatID) pair.
func (s *Storage) GetSession(ctx context.Context, senderID, chatID string) (*models.ChatSession, error) {
	const op = "storage.GetSession"

	cs, err := scanSession(s.DB.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions WHERE sender_id = $1 AND chat_id = $2`,
		senderID, chatID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return cs, nil
}

// ListSessions returns the sessions of senderID, oldest first.
func (s *Storage) ListSessions(ctx context.Context, senderID string) ([]*models.ChatSession, error) {
	const op = "storage.ListSessions"

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM chat_sessions WHERE sender_id = $1 ORDER BY created_at`, senderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.ChatSession, 0)
	for rows.Next() {
		cs, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, cs)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// AppendMessage pushes msg onto the end of the session transcript in a
// single statement.
func (s *Storage) AppendMessage(ctx context.Context, senderID, chatID string, msg models.ChatMessage) error {
	const op = "storage.AppendMessage"

	payload, err := json.Marshal([]models.ChatMessage{msg})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	res, err := s.DB.ExecContext(ctx,
		`UPDATE chat_sessions SET messages = messages || $3::jsonb, updated_at = NOW()
		 WHERE sender_id = $1 AND chat_id = $2`,
		senderID, chatID, string(payload))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = expectAffected(res); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RenameSession changes the display name of a session.
func (s *Storage) RenameSession(ctx context.Context, senderID, chatID, name string) (*models.ChatSession, error) {
	const op = "storage.RenameSession"

	cs, err := scanSession(s.DB.QueryRowContext(ctx,
		`UPDATE chat_sessions SET name = $3, updated_at = NOW()
		 WHERE sender_id = $1 AND chat_id = $2
		 RETURNING `+sessionColumns,
		senderID, chatID, name))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return cs, nil
}
