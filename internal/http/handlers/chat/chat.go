// Package chat serves the chatbot proxy and the session transcript routes.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/hdportal/helpdesk-api/internal/http/middlewarectx"
	"github.com/hdportal/helpdesk-api/internal/http/request"
	"github.com/hdportal/helpdesk-api/internal/http/response"
	"github.com/hdportal/helpdesk-api/internal/lib/sl"
	"github.com/hdportal/helpdesk-api/internal/lib/validate"
	"github.com/hdportal/helpdesk-api/internal/models"
)

type Service interface {
	SendMessage(ctx context.Context, caller *models.User, text string) (json.RawMessage, error)
	CreateSession(ctx context.Context, caller *models.User) (*models.ChatSession, error)
	Sessions(ctx context.Context, caller *models.User) ([]*models.ChatSession, error)
	Messages(ctx context.Context, caller *models.User, chatID string) ([]models.ChatMessage, error)
	AppendMessage(ctx context.Context, caller *models.User, chatID string, msg models.ChatMessage) error
	Rename(ctx context.Context, caller *models.User, chatID, name string) (*models.ChatSession, error)
}

// SendRequest is the body of POST /chat. A sender_id in the body is ignored,
// the caller's npk is used instead.
type SendRequest struct {
	Message string `json:"message" validate:"required"`
}

type MessageRequest struct {
	Text   string `json:"text" validate:"required"`
	IsUser bool   `json:"isUser"`
}

type RenameRequest struct {
	Name string `json:"name" validate:"required"`
}

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validate.New(),
	}
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request, op string) (*slog.Logger, *models.User, bool) {
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	caller, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		log.Error("user not found in context")
		response.Fail(w, r, http.StatusUnauthorized, "unauthorized")
		return log, nil, false
	}
	return log, caller, true
}

// Send handles POST /chat. The chatbot answer is passed through as data.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	log, caller, ok := h.start(w, r, "handlers.chat.Send")
	if !ok {
		return
	}

	var req SendRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	reply, err := h.service.SendMessage(r.Context(), caller, req.Message)
	if err != nil {
		if errors.Is(err, models.ErrUpstream) {
			log.Error("chatbot call failed", sl.Err(err))
			response.Fail(w, r, http.StatusInternalServerError, "failed to reach the chatbot")
			return
		}
		response.FailWith(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(reply))
}

// CreateSession handles POST /chat/session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	log, caller, ok := h.start(w, r, "handlers.chat.CreateSession")
	if !ok {
		return
	}

	cs, err := h.service.CreateSession(r.Context(), caller)
	if err != nil {
		log.Error("failed to create session", sl.Err(err))
		response.FailWith(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]string{
		"chat_id": cs.ChatID,
		"name":    cs.Name,
	}))
}

// Sessions handles GET /chat/sessions.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	log, caller, ok := h.start(w, r, "handlers.chat.Sessions")
	if !ok {
		return
	}

	list, err := h.service.Sessions(r.Context(), caller)
	if err != nil {
		log.Error("failed to list sessions", sl.Err(err))
		response.FailWith(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"sessions": list}))
}

// Messages handles GET /chat/session/{id}/messages.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	log, caller, ok := h.start(w, r, "handlers.chat.Messages")
	if !ok {
		return
	}

	msgs, err := h.service.Messages(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		failSession(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"messages": msgs}))
}

// AppendMessage handles POST /chat/session/{id}/message.
func (h *Handler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	log, caller, ok := h.start(w, r, "handlers.chat.AppendMessage")
	if !ok {
		return
	}

	var req MessageRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	msg := models.ChatMessage{Text: req.Text, IsUser: req.IsUser}
	if err := h.service.AppendMessage(r.Context(), caller, chi.URLParam(r, "id"), msg); err != nil {
		failSession(w, r, log, err)
		return
	}
	render.JSON(w, r, response.Message("saved"))
}

// Rename handles PATCH /chat/session/{id}.
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	log, caller, ok := h.start(w, r, "handlers.chat.Rename")
	if !ok {
		return
	}

	var req RenameRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	cs, err := h.service.Rename(r.Context(), caller, chi.URLParam(r, "id"), req.Name)
	if err != nil {
		failSession(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "session renamed",
		"session": cs,
	}))
}

func failSession(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	if errors.Is(err, models.ErrNotFound) {
		response.Fail(w, r, http.StatusNotFound, "session not found")
		return
	}
	log.Error("session operation failed", sl.Err(err))
	response.FailWith(w, r, err)
}
