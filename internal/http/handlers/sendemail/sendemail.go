// Package sendemail serves POST /admin/send-email: a plain text mail with one
// uploaded attachment.
package sendemail

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/mail"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/hdportal/helpdesk-api/internal/http/response"
	"github.com/hdportal/helpdesk-api/internal/lib/sl"
	"github.com/hdportal/helpdesk-api/internal/services/mailer"
)

// MaxUploadSize bounds the whole multipart body.
const MaxUploadSize = 10 << 20

type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type Handler struct {
	log    *slog.Logger
	mailer Mailer
}

func New(log *slog.Logger, mailer Mailer) *Handler {
	return &Handler{log: log, mailer: mailer}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.sendemail"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Fail(w, r, http.StatusBadRequest, "attachment too large")
			return
		}
		log.Info("failed to parse multipart form", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, "invalid multipart form")
		return
	}

	to := r.FormValue("email")
	subject := r.FormValue("subject")
	body := r.FormValue("message")
	file, header, err := r.FormFile("file")
	if err != nil || to == "" || subject == "" || body == "" {
		response.Fail(w, r, http.StatusBadRequest, "email, subject, message and file are required")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	if _, err = mail.ParseAddress(to); err != nil {
		response.Fail(w, r, http.StatusBadRequest, "invalid email address")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		log.Error("failed to read attachment", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, "failed to read attachment")
		return
	}

	err = h.mailer.Send(r.Context(), mailer.Message{
		To:      to,
		Subject: subject,
		Body:    body,
		Attachments: []mailer.Attachment{{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}},
	})
	if err != nil {
		log.Error("failed to send email", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "failed to send email")
		return
	}

	log.Info("email sent", slog.String("to", to), slog.String("file", header.Filename))
	render.JSON(w, r, response.Message("email sent"))
}
