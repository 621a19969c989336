// Package response builds the JSON envelopes returned by every HTTP handler
// and maps service errors onto HTTP status codes.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/hdportal/helpdesk-api/internal/models"
)

// Response is the envelope of every JSON body: Status is "OK" or "Error",
// Data is set on success and Message on failure.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

// StatusOKWithData returns a successful Response carrying data.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Message returns a successful Response whose data is {"message": msg}.
func Message(msg string) Response {
	return StatusOKWithData(map[string]string{"message": msg})
}

// Error returns a failed Response with msg.
func Error(msg string) Response {
	return Response{
		Status:  StatusError,
		Message: msg,
	}
}

// ValidationError joins every violation into one human readable message.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		field := err.Field()
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", field))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", field))
		case "npk":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must look like A12345-01", field))
		case "password":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be 8-16 characters with a lowercase, an uppercase, a digit and a symbol", field))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of: %s", field, err.Param()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not valid", field))
		}
	}
	return Response{
		Status:  StatusError,
		Message: strings.Join(errsMsgs, ", "),
	}
}

// StatusFor maps err onto an HTTP status code and a message safe to show to
// the client. Wrapped internal error text is never exposed, except the
// detail following a models.ErrValidation.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, detail(err, models.ErrValidation)
	case errors.Is(err, models.ErrConflict):
		return http.StatusBadRequest, "already exists"
	case errors.Is(err, models.ErrAlreadyVerified):
		return http.StatusBadRequest, "email already verified"
	case errors.Is(err, models.ErrTokenExpired):
		return http.StatusUnauthorized, "token expired"
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, models.ErrUpstream):
		return http.StatusInternalServerError, "upstream service unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// Fail renders an error envelope with the given status.
func Fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, Error(msg))
}

// FailWith renders err using StatusFor.
func FailWith(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := StatusFor(err)
	Fail(w, r, status, msg)
}

// detail returns the text following sentinel in err, or the sentinel's own
// text when nothing follows it.
func detail(err, sentinel error) string {
	s := err.Error()
	marker := sentinel.Error() + ": "
	if i := strings.Index(s, marker); i >= 0 {
		return s[i+len(marker):]
	}
	return sentinel.Error()
}
