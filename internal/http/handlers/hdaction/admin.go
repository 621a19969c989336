package hdaction

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/hdportal/helpdesk-api/internal/http/response"
	"github.com/hdportal/helpdesk-api/internal/lib/sl"
	"github.com/hdportal/helpdesk-api/internal/models"
)

// AdminHandler serves /admin/hd-actions.
type AdminHandler struct {
	log     *slog.Logger
	service AdminService
}

func NewAdmin(log *slog.Logger, service AdminService) *AdminHandler {
	return &AdminHandler{log: log, service: service}
}

func (h *AdminHandler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// List returns every action annotated with the owner's role.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.hdaction.admin.List")

	list, err := h.service.ListAll(r.Context())
	if err != nil {
		log.Error("failed to list actions", sl.Err(err))
		response.FailWith(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(list))
}

func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.hdaction.admin.Get")

	a, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		log.Info("failed to get action", sl.Err(err))
		response.FailWith(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(a))
}

// Create files an action for the registered user named by npk.
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.hdaction.admin.Create")

	var in models.HDActionInput
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.service.CreateFor(r.Context(), in)
	if err != nil {
		log.Info("failed to create action", sl.Err(err))
		response.FailWith(w, r, err)
		return
	}

	log.Info("action created", slog.String("id", a.ID), slog.String("npk", a.NPK))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(a))
}

func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.hdaction.admin.Update")

	var in models.HDActionInput
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		log.Info("failed to update action", sl.Err(err))
		response.FailWith(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(a))
}

func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.hdaction.admin.Delete")

	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		log.Info("failed to delete action", sl.Err(err))
		response.FailWith(w, r, err)
		return
	}

	log.Info("action deleted", slog.String("id", id))
	render.JSON(w, r, response.Message("action deleted"))
}
