// Package auth serves the /auth routes.
package auth

import (
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

// ForgotPasswordMessage is returned by forgot-password whether or not the
// email is registered.
const ForgotPasswordMessage = "if the email is registered, a password reset link has been sent"

type RegisterRequest struct {
	NPK      string `json:"npk" validate:"required,npk"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
}

type LoginRequest struct {
	NPK      string `json:"npk" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
	NPK   string `json:"npk" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,password"`
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

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Register"
	log := h.logger(r, op)

	var req RegisterRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	res, err := h.service.Register(r.Context(), req.NPK, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			log.Info("npk or email taken", slog.String("npk", req.NPK))
			response.Fail(w, r, http.StatusBadRequest, "npk or email already registered")
		case errors.Is(err, models.ErrUpstream):
			log.Error("failed to send verification email", sl.Err(err))
			response.Fail(w, r, http.StatusInternalServerError, "failed to send verification email")
		default:
			log.Error("registration failed", sl.Err(err))
			response.FailWith(w, r, err)
		}
		return
	}

	log.Info("user registered", slog.String("npk", req.NPK))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "registration successful, check your email to verify the account",
		"token":   res.Token,
		"user":    res.User,
	}))
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Login"
	log := h.logger(r, op)

	var req LoginRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	res, err := h.service.Login(r.Context(), req.NPK, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			log.Info("invalid credentials", slog.String("npk", req.NPK))
			response.Fail(w, r, http.StatusUnauthorized, "invalid npk or password")
			return
		}
		log.Error("login failed", sl.Err(err))
		response.FailWith(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(res))
}

// VerifyEmail handles POST /auth/verify-email.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.VerifyEmail"
	log := h.logger(r, op)

	var req VerifyEmailRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	if err := h.service.VerifyEmail(r.Context(), req.Token); err != nil {
		log.Info("verification failed", sl.Err(err))
		if errors.Is(err, models.ErrNotFound) {
			response.Fail(w, r, http.StatusNotFound, "user not found")
			return
		}
		response.FailWith(w, r, err)
		return
	}

	render.JSON(w, r, response.Message("email verified"))
}

// ResendVerification handles POST /auth/resend-verification.
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.ResendVerification"
	log := h.logger(r, op)

	var req ResendVerificationRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	if err := h.service.ResendVerification(r.Context(), req.Email, req.NPK); err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			response.Fail(w, r, http.StatusNotFound, "user not found")
		case errors.Is(err, models.ErrUpstream):
			log.Error("failed to send verification email", sl.Err(err))
			response.Fail(w, r, http.StatusInternalServerError, "failed to send verification email")
		default:
			log.Info("resend refused", sl.Err(err))
			response.FailWith(w, r, err)
		}
		return
	}

	render.JSON(w, r, response.Message("verification email sent"))
}

// ForgotPassword handles POST /auth/forgot-password. The answer never
// depends on whether the email exists.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.ForgotPassword"
	log := h.logger(r, op)

	var req ForgotPasswordRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	h.service.ForgotPassword(r.Context(), req.Email)
	render.JSON(w, r, response.Message(ForgotPasswordMessage))
}

// ResetPassword handles POST /auth/reset-password.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.ResetPassword"
	log := h.logger(r, op)

	var req ResetPasswordRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		log.Info("password reset failed", sl.Err(err))
		switch {
		case errors.Is(err, models.ErrTokenExpired):
			response.Fail(w, r, http.StatusUnauthorized, "reset link expired")
		case errors.Is(err, models.ErrUnauthorized):
			response.Fail(w, r, http.StatusUnauthorized, "invalid reset link")
		case errors.Is(err, models.ErrNotFound):
			response.Fail(w, r, http.StatusNotFound, "user not found")
		default:
			response.FailWith(w, r, err)
		}
		return
	}

	render.JSON(w, r, response.Message("password has been reset"))
}

// Protected handles GET /auth/protected, which reports whether a token works.
func (h *Handler) Protected(w http.ResponseWriter, r *http.Request) {
	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		response.Fail(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "access granted",
		"user":    user,
	}))
}
