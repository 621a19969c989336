package chat

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/hdportal/helpdesk-api/internal/http/response"
	"github.com/hdportal/helpdesk-api/internal/lib/sl"
	"github.com/hdportal/helpdesk-api/internal/models"
)

type HistoryService interface {
	SessionsOf(ctx context.Context, senderID string) ([]*models.ChatSession, error)
	MessagesOf(ctx context.Context, senderID, chatID string) ([]models.ChatMessage, error)
}

// HistoryHandler lets administrators read any user's transcripts.
type HistoryHandler struct {
	log     *slog.Logger
	service HistoryService
}

func NewHistory(log *slog.Logger, service HistoryService) *HistoryHandler {
	return &HistoryHandler{log: log, service: service}
}

// Sessions handles GET /admin/chat/users/{sender}/sessions.
func (h *HistoryHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.chat.history.Sessions"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	list, err := h.service.SessionsOf(r.Context(), chi.URLParam(r, "sender"))
	if err != nil {
		log.Error("failed to list sessions", sl.Err(err))
		response.FailWith(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"sessions": list}))
}

// Messages handles GET /admin/chat/users/{sender}/sessions/{chatID}/messages.
func (h *HistoryHandler) Messages(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.chat.history.Messages"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	msgs, err := h.service.MessagesOf(r.Context(), chi.URLParam(r, "sender"), chi.URLParam(r, "chatID"))
	if err != nil {
		failSession(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"messages": msgs}))
}
