// Package hdaction serves the helpdesk action routes: /hd-actions for the
// requester and /admin/hd-actions for administrators.
package hdaction

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/hdportal/helpdesk-api/internal/http/middlewarectx"
	"github.com/hdportal/helpdesk-api/internal/http/response"
	"github.com/hdportal/helpdesk-api/internal/lib/sl"
	"github.com/hdportal/helpdesk-api/internal/models"
)

// OwnerHandler serves /hd-actions. Every operation is scoped to the caller.
type OwnerHandler struct {
	log     *slog.Logger
	service OwnerService
}

func NewOwner(log *slog.Logger, service OwnerService) *OwnerHandler {
	return &OwnerHandler{log: log, service: service}
}

func (h *OwnerHandler) start(w http.ResponseWriter, r *http.Request, op string) (*slog.Logger, *models.User, bool) {
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

func (h *OwnerHandler) List(w http.ResponseWriter, r *http.Request) {
	log, caller, ok := h.start(w, r, "handlers.hdaction.List")
	if !ok {
		return
	}

	list, err := h.service.ListOwn(r.Context(), caller)
	if err != nil {
		log.Error("failed to list actions", sl.Err(err))
		response.FailWith(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(list))
}

func (h *OwnerHandler) Get(w http.ResponseWriter, r *http.Request) {
	log, caller, ok := h.start(w, r, "handlers.hdaction.Get")
	if !ok {
		return
	}

	a, err := h.service.GetOwn(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		log.Info("failed to get action", sl.Err(err))
		response.FailWith(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(a))
}

func (h *OwnerHandler) Create(w http.ResponseWriter, r *http.Request) {
	log, caller, ok := h.start(w, r, "handlers.hdaction.Create")
	if !ok {
		return
	}

	var in models.HDActionInput
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.service.CreateOwn(r.Context(), caller, in)
	if err != nil {
		log.Info("failed to create action", sl.Err(err))
		response.FailWith(w, r, err)
		return
	}

	log.Info("action created", slog.String("id", a.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(a))
}

func (h *OwnerHandler) Update(w http.ResponseWriter, r *http.Request) {
	log, caller, ok := h.start(w, r, "handlers.hdaction.Update")
	if !ok {
		return
	}

	var in models.HDActionInput
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.service.UpdateOwn(r.Context(), caller, chi.URLParam(r, "id"), in)
	if err != nil {
		log.Info("failed to update action", sl.Err(err))
		response.FailWith(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(a))
}

func (h *OwnerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	log, caller, ok := h.start(w, r, "handlers.hdaction.Delete")
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.DeleteOwn(r.Context(), caller, id); err != nil {
		log.Info("failed to delete action", sl.Err(err))
		response.FailWith(w, r, err)
		return
	}

	log.Info("action deleted", slog.String("id", id))
	render.JSON(w, r, response.Message("action deleted"))
}
