// Package profile serves the /user routes of the authenticated caller.
package profile

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

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

type Users interface {
	Profile(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id, email string) (*models.User, error)
}

type Passwords interface {
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
}

type UpdateRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,password"`
}

type Handler struct {
	log       *slog.Logger
	users     Users
	passwords Passwords
	validate  *validator.Validate
}

func New(log *slog.Logger, users Users, passwords Passwords) *Handler {
	return &Handler{
		log:       log,
		users:     users,
		passwords: passwords,
		validate:  validate.New(),
	}
}

// Get handles GET /user/profile.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.Get"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	caller, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		response.Fail(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.users.Profile(r.Context(), caller.ID)
	if err != nil {
		log.Error("failed to load profile", sl.Err(err))
		response.FailWith(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(user))
}

// Update handles PUT /user/profile. Changing the email clears the verified
// flag until the new address is confirmed.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.Update"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	caller, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		response.Fail(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), caller.ID, req.Email)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			response.Fail(w, r, http.StatusBadRequest, "email already registered")
			return
		}
		log.Error("failed to update profile", sl.Err(err))
		response.FailWith(w, r, err)
		return
	}

	log.Info("profile updated", slog.String("user_id", caller.ID))
	render.JSON(w, r, response.StatusOKWithData(user))
}

// ChangePassword handles POST /user/change-password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.ChangePassword"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	caller, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		response.Fail(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChangePasswordRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	if err := h.passwords.ChangePassword(r.Context(), caller.ID, req.CurrentPassword, req.NewPassword); err != nil {
		log.Info("password change refused", sl.Err(err))
		response.FailWith(w, r, err)
		return
	}

	render.JSON(w, r, response.Message("password changed"))
}
