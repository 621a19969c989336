// Package users serves account administration: /admin/users for
// administrators and /master/users for the role management of masters.
package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/hdportal/helpdesk-api/internal/http/request"
	"github.com/hdportal/helpdesk-api/internal/http/response"
	"github.com/hdportal/helpdesk-api/internal/lib/sl"
	"github.com/hdportal/helpdesk-api/internal/lib/validate"
	"github.com/hdportal/helpdesk-api/internal/models"
	userservice "github.com/hdportal/helpdesk-api/internal/services/user"
)

type Service interface {
	List(ctx context.Context) ([]*models.User, error)
	Create(ctx context.Context, in userservice.NewUser) (*models.User, error)
	Update(ctx context.Context, id string, ch userservice.Changes) (*models.User, error)
	Delete(ctx context.Context, id string) error
	SetRole(ctx context.Context, id string, role models.Role) (*models.User, error)
}

type CreateRequest struct {
	NPK      string `json:"npk" validate:"required,npk"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
	Role     string `json:"role" validate:"omitempty,oneof=master admin user"`
	Verified bool   `json:"verified"`
}

type UpdateRequest struct {
	NPK      *string `json:"npk" validate:"omitempty,npk"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,password"`
	Verified *bool   `json:"verified"`
}

type RoleRequest struct {
	Role string `json:"role" validate:"required,oneof=master admin user"`
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

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// List handles GET /admin/users and GET /master/users.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.List")

	list, err := h.service.List(r.Context())
	if err != nil {
		log.Error("failed to list users", sl.Err(err))
		response.FailWith(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(list))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.Create")

	var req CreateRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	user, err := h.service.Create(r.Context(), userservice.NewUser{
		NPK:      req.NPK,
		Email:    req.Email,
		Password: req.Password,
		Role:     models.Role(req.Role),
		Verified: req.Verified,
	})
	if err != nil {
		failUser(w, r, log, err)
		return
	}

	log.Info("user created", slog.String("npk", user.NPK), slog.String("role", string(user.Role)))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(user))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.Update")

	var req UpdateRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	user, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), userservice.Changes{
		Email:    req.Email,
		NPK:      req.NPK,
		Password: req.Password,
		Verified: req.Verified,
	})
	if err != nil {
		failUser(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(user))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.Delete")

	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		failUser(w, r, log, err)
		return
	}

	log.Info("user deleted", slog.String("user_id", id))
	render.JSON(w, r, response.Message("user deleted"))
}

// SetRole handles PATCH /master/users/{id}/role.
func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.SetRole")

	var req RoleRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	user, err := h.service.SetRole(r.Context(), chi.URLParam(r, "id"), models.Role(req.Role))
	if err != nil {
		failUser(w, r, log, err)
		return
	}

	log.Info("role changed", slog.String("user_id", user.ID), slog.String("role", req.Role))
	render.JSON(w, r, response.StatusOKWithData(user))
}

func failUser(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrConflict):
		response.Fail(w, r, http.StatusBadRequest, "npk or email already registered")
	case errors.Is(err, models.ErrNotFound):
		response.Fail(w, r, http.StatusNotFound, "user not found")
	default:
		log.Error("user operation failed", sl.Err(err))
		response.FailWith(w, r, err)
	}
}
