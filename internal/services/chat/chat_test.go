package chat

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hdportal/helpdesk-api/internal/models"
)

type BotMock struct {
	mock.Mock
}

func (m *BotMock) Send(ctx context.Context, senderID, message string) (json.RawMessage, error) {
	args := m.Called(ctx, senderID, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

type StoreMock struct {
	mock.Mock
}

func (m *StoreMock) CreateSession(ctx context.Context, cs models.ChatSession) (*models.ChatSession, error) {
	args := m.Called(ctx, cs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatSession), args.Error(1)
}

func (m *StoreMock) GetSession(ctx context.Context, senderID, chatID string) (*models.ChatSession, error) {
	args := m.Called(ctx, senderID, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatSession), args.Error(1)
}

func (m *StoreMock) ListSessions(ctx context.Context, senderID string) ([]*models.ChatSession, error) {
	args := m.Called(ctx, senderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ChatSession), args.Error(1)
}

func (m *StoreMock) AppendMessage(ctx context.Context, senderID, chatID string, msg models.ChatMessage) error {
	return m.Called(ctx, senderID, chatID, msg).Error(0)
}

func (m *StoreMock) RenameSession(ctx context.Context, senderID, chatID, name string) (*models.ChatSession, error) {
	args := m.Called(ctx, senderID, chatID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatSession), args.Error(1)
}

var caller = &models.User{ID: "u1", NPK: "A12345-01", Role: models.RoleUser, Verified: true}

func newTestService() (*Service, *BotMock, *StoreMock) {
	bot := new(BotMock)
	store := new(StoreMock)
	return New(bot, store, slog.New(slog.NewTextHandler(io.Discard, nil))), bot, store
}

func TestService_SendMessage(t *testing.T) {
	svc, bot, _ := newTestService()
	ctx := context.Background()

	reply := json.RawMessage(`{"replies":["hello"]}`)
	bot.On("Send", ctx, caller.NPK, "hi").Return(reply, nil).Once()

	got, err := svc.SendMessage(ctx, caller, "hi")
	require.NoError(t, err)
	assert.JSONEq(t, `{"replies":["hello"]}`, string(got))

	bot.On("Send", ctx, caller.NPK, "down?").Return(nil, models.ErrUpstream).Once()
	_, err = svc.SendMessage(ctx, caller, "down?")
	assert.ErrorIs(t, err, models.ErrUpstream)

	_, err = svc.SendMessage(ctx, caller, "   ")
	assert.ErrorIs(t, err, models.ErrValidation)

	bot.AssertExpectations(t)
}

func TestService_CreateSession(t *testing.T) {
	svc, _, store := newTestService()
	ctx := context.Background()
	svc.now = func() time.Time { return time.UnixMilli(1710000000123) }

	want := models.ChatSession{
		SenderID: caller.NPK,
		ChatID:   "A12345-01-1710000000123",
		Name:     "New Session",
	}
	store.On("CreateSession", ctx, want).Return(&want, nil).Once()

	cs, err := svc.CreateSession(ctx, caller)
	require.NoError(t, err)
	assert.Equal(t, "A12345-01-1710000000123", cs.ChatID)
	store.AssertExpectations(t)
}

func TestService_ScopedToCaller(t *testing.T) {
	svc, _, store := newTestService()
	ctx := context.Background()

	store.On("GetSession", ctx, caller.NPK, "other-1").Return(nil, models.ErrNotFound).Once()
	_, err := svc.Messages(ctx, caller, "other-1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	msg := models.ChatMessage{Text: "hi", IsUser: true}
	store.On("AppendMessage", ctx, caller.NPK, "A12345-01-1", msg).Return(nil).Once()
	require.NoError(t, svc.AppendMessage(ctx, caller, "A12345-01-1", msg))

	store.On("AppendMessage", ctx, caller.NPK, "missing", msg).Return(models.ErrNotFound).Once()
	assert.ErrorIs(t, svc.AppendMessage(ctx, caller, "missing", msg), models.ErrNotFound)

	assert.ErrorIs(t, svc.AppendMessage(ctx, caller, "A12345-01-1", models.ChatMessage{}), models.ErrValidation)

	store.AssertExpectations(t)
}

func TestService_Rename(t *testing.T) {
	svc, _, store := newTestService()
	ctx := context.Background()

	renamed := &models.ChatSession{SenderID: caller.NPK, ChatID: "A12345-01-1", Name: "Printer"}
	store.On("RenameSession", ctx, caller.NPK, "A12345-01-1", "Printer").Return(renamed, nil).Once()

	cs, err := svc.Rename(ctx, caller, "A12345-01-1", "  Printer ")
	require.NoError(t, err)
	assert.Equal(t, "Printer", cs.Name)

	_, err = svc.Rename(ctx, caller, "A12345-01-1", "")
	assert.ErrorIs(t, err, models.ErrValidation)
	store.AssertExpectations(t)
}

func TestService_AdminHistory(t *testing.T) {
	svc, _, store := newTestService()
	ctx := context.Background()

	sessions := []*models.ChatSession{{SenderID: "B1", ChatID: "B1-1", Messages: []models.ChatMessage{{Text: "q", IsUser: true}, {Text: "a"}}}}
	store.On("ListSessions", ctx, "B1").Return(sessions, nil).Once()
	store.On("GetSession", ctx, "B1", "B1-1").Return(sessions[0], nil).Once()

	list, err := svc.SessionsOf(ctx, "B1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	msgs, err := svc.MessagesOf(ctx, "B1", "B1-1")
	require.NoError(t, err)
	assert.Equal(t, sessions[0].Messages, msgs)
	store.AssertExpectations(t)
}
