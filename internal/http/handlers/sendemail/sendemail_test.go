package sendemail_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hdportal/helpdesk-api/internal/http/handlers/sendemail"
	"github.com/hdportal/helpdesk-api/internal/models"
	"github.com/hdportal/helpdesk-api/internal/services/mailer"
)

type MailerMock struct {
	mock.Mock
}

func (m *MailerMock) Send(ctx context.Context, msg mailer.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func multipartBody(t *testing.T, fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func serve(h http.Handler, body *bytes.Buffer, contentType string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodPost, "/admin/send-email", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var got map[string]any
	_ = json.NewDecoder(rec.Body).Decode(&got)
	return rec, got
}

func TestHandler(t *testing.T) {
	fields := map[string]string{"email": "user@example.com", "subject": "Report", "message": "see attached"}

	tests := []struct {
		name        string
		fields      map[string]string
		filename    string
		mockErr     error
		callMailer  bool
		wantCode    int
		wantMessage string
	}{
		{name: "sent", fields: fields, filename: "report.pdf", callMailer: true, wantCode: http.StatusOK},
		{
			name:        "missing file",
			fields:      fields,
			wantCode:    http.StatusBadRequest,
			wantMessage: "email, subject, message and file are required",
		},
		{
			name:        "missing subject",
			fields:      map[string]string{"email": "user@example.com", "message": "see attached"},
			filename:    "report.pdf",
			wantCode:    http.StatusBadRequest,
			wantMessage: "email, subject, message and file are required",
		},
		{
			name:        "bad address",
			fields:      map[string]string{"email": "nope", "subject": "Report", "message": "see attached"},
			filename:    "report.pdf",
			wantCode:    http.StatusBadRequest,
			wantMessage: "invalid email address",
		},
		{
			name:        "relay failure",
			fields:      fields,
			filename:    "report.pdf",
			callMailer:  true,
			mockErr:     models.ErrUpstream,
			wantCode:    http.StatusInternalServerError,
			wantMessage: "failed to send email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MailerMock)
			if tt.callMailer {
				m.On("Send", mock.Anything, mock.MatchedBy(func(msg mailer.Message) bool {
					return msg.To == "user@example.com" &&
						msg.Subject == "Report" &&
						msg.Body == "see attached" &&
						!msg.HTML &&
						len(msg.Attachments) == 1 &&
						msg.Attachments[0].Filename == "report.pdf" &&
						string(msg.Attachments[0].Data) == "%PDF-1.4"
				})).Return(tt.mockErr).Once()
			}
			h := sendemail.New(slog.New(slog.NewTextHandler(io.Discard, nil)), m)

			body, ct := multipartBody(t, tt.fields, tt.filename, []byte("%PDF-1.4"))
			rec, got := serve(h, body, ct)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, got["message"])
			}
			m.AssertExpectations(t)
		})
	}
}

func TestHandler_NotMultipart(t *testing.T) {
	h := sendemail.New(slog.New(slog.NewTextHandler(io.Discard, nil)), new(MailerMock))
	rec, got := serve(h, bytes.NewBufferString(`{"email":"x"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid multipart form", got["message"])
}
