// Package chat relays user messages to the chatbot and keeps per-user
// session transcripts.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hdportal/helpdesk-api/internal/models"
)

// Bot is the external inference service.
type Bot interface {
	Send(ctx context.Context, senderID, message string) (json.RawMessage, error)
}

// SessionStore persists chat sessions keyed by (sender, chat id).
type SessionStore interface {
	CreateSession(ctx context.Context, cs models.ChatSession) (*models.ChatSession, error)
	GetSession(ctx context.Context, senderID, chatID string) (*models.ChatSession, error)
	ListSessions(ctx context.Context, senderID string) ([]*models.ChatSession, error)
	AppendMessage(ctx context.Context, senderID, chatID string, msg models.ChatMessage) error
	RenameSession(ctx context.Context, senderID, chatID, name string) (*models.ChatSession, error)
}

type Service struct {
	bot      Bot
	sessions SessionStore
	log      *slog.Logger
	now      func() time.Time
}

func New(bot Bot, sessions SessionStore, log *slog.Logger) *Service {
	return &Service{bot: bot, sessions: sessions, log: log, now: time.Now}
}

// SendMessage forwards text to the chatbot on behalf of caller and returns
// the chatbot's reply untouched.
func (s *Service) SendMessage(ctx context.Context, caller *models.User, text string) (json.RawMessage, error) {
	const op = "chat.SendMessage"

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: %w: message is required", op, models.ErrValidation)
	}
	reply, err := s.bot.Send(ctx, caller.NPK, text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return reply, nil
}

// CreateSession opens an empty session named DefaultSessionName.
func (s *Service) CreateSession(ctx context.Context, caller *models.User) (*models.ChatSession, error) {
	const op = "chat.CreateSession"

	cs, err := s.sessions.CreateSession(ctx, models.ChatSession{
		SenderID: caller.NPK,
		ChatID:   caller.NPK + "-" + strconv.FormatInt(s.now().UnixMilli(), 10),
		Name:     models.DefaultSessionName,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cs, nil
}

// Sessions lists the caller's sessions, oldest first.
func (s *Service) Sessions(ctx context.Context, caller *models.User) ([]*models.ChatSession, error) {
	return s.SessionsOf(ctx, caller.NPK)
}

// Messages returns the transcript of one of the caller's sessions.
func (s *Service) Messages(ctx context.Context, caller *models.User, chatID string) ([]models.ChatMessage, error) {
	return s.MessagesOf(ctx, caller.NPK, chatID)
}

// AppendMessage adds msg to the end of one of the caller's sessions.
func (s *Service) AppendMessage(ctx context.Context, caller *models.User, chatID string, msg models.ChatMessage) error {
	const op = "chat.AppendMessage"

	if msg.Text == "" {
		return fmt.Errorf("%s: %w: text is required", op, models.ErrValidation)
	}
	if err := s.sessions.AppendMessage(ctx, caller.NPK, chatID, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) Rename(ctx context.Context, caller *models.User, chatID, name string) (*models.ChatSession, error) {
	const op = "chat.Rename"

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%s: %w: name is required", op, models.ErrValidation)
	}
	cs, err := s.sessions.RenameSession(ctx, caller.NPK, chatID, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cs, nil
}

// SessionsOf lists the sessions of any sender. Used by the admin history.
func (s *Service) SessionsOf(ctx context.Context, senderID string) ([]*models.ChatSession, error) {
	const op = "chat.SessionsOf"

	list, err := s.sessions.ListSessions(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

// MessagesOf returns the transcript of any sender's session.
func (s *Service) MessagesOf(ctx context.Context, senderID, chatID string) ([]models.ChatMessage, error) {
	const op = "chat.MessagesOf"

	cs, err := s.sessions.GetSession(ctx, senderID, chatID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cs.Messages, nil
}
