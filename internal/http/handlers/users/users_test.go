package users_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hdportal/helpdesk-api/internal/http/handlers/users"
	"github.com/hdportal/helpdesk-api/internal/models"
	userservice "github.com/hdportal/helpdesk-api/internal/services/user"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) user(args mock.Arguments) (*models.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *ServiceMock) List(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *ServiceMock) Create(ctx context.Context, in userservice.NewUser) (*models.User, error) {
	return m.user(m.Called(ctx, in))
}

func (m *ServiceMock) Update(ctx context.Context, id string, ch userservice.Changes) (*models.User, error) {
	return m.user(m.Called(ctx, id, ch))
}

func (m *ServiceMock) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *ServiceMock) SetRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	return m.user(m.Called(ctx, id, role))
}

func serve(t *testing.T, h http.HandlerFunc, method, id string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, "/admin/users/"+id, bytes.NewReader(raw))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	h(rec, req)

	var got map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	return rec, got
}

func newHandler() (*users.Handler, *ServiceMock) {
	svc := new(ServiceMock)
	return users.New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc), svc
}

func TestHandler_Create(t *testing.T) {
	h, svc := newHandler()

	in := userservice.NewUser{NPK: "A12345-01", Email: "a@example.com", Password: "Abcdef1!", Role: models.RoleAdmin, Verified: true}
	svc.On("Create", mock.Anything, in).Return(&models.User{ID: "u1", NPK: "A12345-01", Role: models.RoleAdmin}, nil).Once()

	rec, got := serve(t, h.Create, http.MethodPost, "", users.CreateRequest{
		NPK: "A12345-01", Email: "a@example.com", Password: "Abcdef1!", Role: "admin", Verified: true,
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "admin", got["data"].(map[string]any)["role"])

	dup := userservice.NewUser{NPK: "A12345-02", Email: "b@example.com", Password: "Abcdef1!"}
	svc.On("Create", mock.Anything, dup).Return(nil, fmt.Errorf("user.Create: npk %w", models.ErrConflict)).Once()
	rec, got = serve(t, h.Create, http.MethodPost, "", users.CreateRequest{NPK: "A12345-02", Email: "b@example.com", Password: "Abcdef1!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "npk or email already registered", got["message"])

	rec, _ = serve(t, h.Create, http.MethodPost, "", users.CreateRequest{NPK: "A12345-03", Email: "c@example.com", Password: "Abcdef1!", Role: "root"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.AssertExpectations(t)
}

func TestHandler_UpdateDelete(t *testing.T) {
	h, svc := newHandler()

	email := "new@example.com"
	svc.On("Update", mock.Anything, "u1", userservice.Changes{Email: &email}).
		Return(&models.User{ID: "u1", Email: email}, nil).Once()
	rec, _ := serve(t, h.Update, http.MethodPut, "u1", map[string]string{"email": email})
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.On("Update", mock.Anything, "gone", userservice.Changes{Email: &email}).Return(nil, models.ErrNotFound).Once()
	rec, got := serve(t, h.Update, http.MethodPut, "gone", map[string]string{"email": email})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "user not found", got["message"])

	svc.On("Delete", mock.Anything, "gone").Return(models.ErrNotFound).Once()
	rec, _ = serve(t, h.Delete, http.MethodDelete, "gone", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	svc.AssertExpectations(t)
}

func TestHandler_SetRole(t *testing.T) {
	h, svc := newHandler()

	svc.On("SetRole", mock.Anything, "u1", models.RoleAdmin).Return(&models.User{ID: "u1", Role: models.RoleAdmin}, nil).Once()
	rec, _ := serve(t, h.SetRole, http.MethodPatch, "u1", users.RoleRequest{Role: "admin"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = serve(t, h.SetRole, http.MethodPatch, "u1", users.RoleRequest{Role: "superuser"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.AssertExpectations(t)
}

func TestHandler_ListHidesHashes(t *testing.T) {
	h, svc := newHandler()
	svc.On("List", mock.Anything).Return([]*models.User{{ID: "u1", PasswordHash: "$2a$10$secret"}}, nil).Once()

	rec, got := serve(t, h.List, http.MethodGet, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	first := got["data"].([]any)[0].(map[string]any)
	assert.Equal(t, "u1", first["id"])
	for _, v := range first {
		assert.NotEqual(t, "$2a$10$secret", v)
	}
}
