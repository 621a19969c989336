package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hdportal/helpdesk-api/internal/config"
	"github.com/hdportal/helpdesk-api/internal/lib/jwt"
	"github.com/hdportal/helpdesk-api/internal/lib/password"
	"github.com/hdportal/helpdesk-api/internal/models"
	"github.com/hdportal/helpdesk-api/internal/services/auth"
)

type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) GetUserByNPK(ctx context.Context, npk string) (*models.User, error) {
	args := m.Called(ctx, npk)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepoMock) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	args := m.Called(ctx, id, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MailerMock struct {
	mock.Mock
}

func (m *MailerMock) SendVerification(ctx context.Context, to, npk, link string) error {
	args := m.Called(ctx, to, npk, link)
	return args.Error(0)
}

func (m *MailerMock) SendPasswordReset(ctx context.Context, to, npk, link string) error {
	args := m.Called(ctx, to, npk, link)
	return args.Error(0)
}

type DenylistMock struct {
	mock.Mock
}

func (m *DenylistMock) IsUsed(ctx context.Context, jti string) (bool, error) {
	args := m.Called(ctx, jti)
	return args.Bool(0), args.Error(1)
}

func (m *DenylistMock) Consume(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	args := m.Called(ctx, jti, expiresAt)
	return args.Bool(0), args.Error(1)
}

func (m *DenylistMock) Release(ctx context.Context, jti string) error {
	args := m.Called(ctx, jti)
	return args.Error(0)
}

const (
	testSecret   = "test_secret_key_1234567890"
	testPassword = "Abcdef1!"
	testNPK      = "A12345-01"
	testEmail    = "a@b.com"
)

var testTTL = config.JWTToken{
	SessionTTL:      24 * time.Hour,
	VerificationTTL: 24 * time.Hour,
	ResetTTL:        15 * time.Minute,
	ProtectedTTL:    time.Hour,
}

type fixture struct {
	users    *UserRepoMock
	mailer   *MailerMock
	denylist *DenylistMock
	maker    *jwt.MakerImpl
	svc      *auth.Service
}

func newFixture() *fixture {
	f := &fixture{
		users:    new(UserRepoMock),
		mailer:   new(MailerMock),
		denylist: new(DenylistMock),
		maker:    jwt.NewJWTMaker(testSecret),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = auth.New(f.users, f.maker, f.mailer, f.denylist, testTTL, "http://portal.local/", log)
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.users.AssertExpectations(t)
	f.mailer.AssertExpectations(t)
	f.denylist.AssertExpectations(t)
}

func hashedUser(t *testing.T, verified bool) *models.User {
	t.Helper()
	hash, err := password.GetHash(testPassword)
	require.NoError(t, err)
	return &models.User{
		ID:           "8d1f6a7e-0000-4000-8000-000000000001",
		NPK:          testNPK,
		Email:        testEmail,
		PasswordHash: hash,
		Verified:     verified,
		Role:         models.RoleUser,
	}
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

func TestService_Register(t *testing.T) {
	f := newFixture()
	var order []string

	f.users.On("GetUserByNPK", mock.Anything, testNPK).Return(nil, models.ErrNotFound).Once()
	f.users.On("GetUserByEmail", mock.Anything, testEmail).Return(nil, models.ErrNotFound).Once()
	f.mailer.On("SendVerification", mock.Anything, testEmail, testNPK,
		mock.MatchedBy(func(link string) bool {
			return strings.HasPrefix(link, "http://portal.local/verify-email?token=")
		})).
		Run(func(mock.Arguments) { order = append(order, "mail") }).
		Return(nil).Once()
	var insertedID string
	f.users.On("CreateUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
		return u.ID != "" && u.NPK == testNPK && u.Email == testEmail && !u.Verified &&
			u.Role == models.RoleUser && u.PasswordHash != "" && u.PasswordHash != testPassword
	})).
		Run(func(args mock.Arguments) {
			order = append(order, "insert")
			insertedID = args.Get(1).(models.User).ID
		}).
		Return(&models.User{ID: "new-id", NPK: testNPK, Email: testEmail, Role: models.RoleUser}, nil).Once()

	res, err := f.svc.Register(context.Background(), testNPK, testEmail, testPassword)
	require.NoError(t, err)
	assert.Equal(t, "new-id", res.User.ID)
	assert.False(t, res.User.Verified)
	assert.Equal(t, []string{"mail", "insert"}, order)

	claims, err := f.maker.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, jwt.PurposeProtected, claims.Purpose)
	assert.Equal(t, insertedID, claims.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)

	link := f.mailer.Calls[0].Arguments.String(3)
	verifyClaims, err := f.maker.Parse(tokenFromLink(t, link))
	require.NoError(t, err)
	assert.Equal(t, jwt.PurposeVerification, verifyClaims.Purpose)
	assert.Equal(t, testNPK, verifyClaims.NPK)
	assert.Equal(t, testEmail, verifyClaims.Email)

	f.assertExpectations(t)
}

func TestService_Register_Failures(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(f *fixture)
		wantErr    error
	}{
		{
			name: "npk taken",
			setupMocks: func(f *fixture) {
				f.users.On("GetUserByNPK", mock.Anything, testNPK).Return(&models.User{}, nil).Once()
			},
			wantErr: models.ErrConflict,
		},
		{
			name: "email taken",
			setupMocks: func(f *fixture) {
				f.users.On("GetUserByNPK", mock.Anything, testNPK).Return(nil, models.ErrNotFound).Once()
				f.users.On("GetUserByEmail", mock.Anything, testEmail).Return(&models.User{}, nil).Once()
			},
			wantErr: models.ErrConflict,
		},
		{
			name: "mail relay down creates no user",
			setupMocks: func(f *fixture) {
				f.users.On("GetUserByNPK", mock.Anything, testNPK).Return(nil, models.ErrNotFound).Once()
				f.users.On("GetUserByEmail", mock.Anything, testEmail).Return(nil, models.ErrNotFound).Once()
				f.mailer.On("SendVerification", mock.Anything, testEmail, testNPK, mock.Anything).
					Return(errors.New("dial tcp: refused")).Once()
			},
			wantErr: models.ErrUpstream,
		},
		{
			name: "insert race surfaces conflict",
			setupMocks: func(f *fixture) {
				f.users.On("GetUserByNPK", mock.Anything, testNPK).Return(nil, models.ErrNotFound).Once()
				f.users.On("GetUserByEmail", mock.Anything, testEmail).Return(nil, models.ErrNotFound).Once()
				f.mailer.On("SendVerification", mock.Anything, testEmail, testNPK, mock.Anything).Return(nil).Once()
				f.users.On("CreateUser", mock.Anything, mock.Anything).Return(nil, models.ErrConflict).Once()
			},
			wantErr: models.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setupMocks(f)

			res, err := f.svc.Register(context.Background(), testNPK, testEmail, testPassword)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, res)
			f.assertExpectations(t)
		})
	}
}

func TestService_Register_TokenFailureCreatesNoUser(t *testing.T) {
	f := newFixture()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := auth.New(f.users, jwt.NewJWTMaker(""), f.mailer, f.denylist, testTTL, "http://portal.local", log)

	f.users.On("GetUserByNPK", mock.Anything, testNPK).Return(nil, models.ErrNotFound).Once()
	f.users.On("GetUserByEmail", mock.Anything, testEmail).Return(nil, models.ErrNotFound).Once()

	res, err := svc.Register(context.Background(), testNPK, testEmail, testPassword)
	assert.ErrorIs(t, err, jwt.ErrMissingSecret)
	assert.Nil(t, res)
	f.mailer.AssertNotCalled(t, "SendVerification", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestService_Login(t *testing.T) {
	user := hashedUser(t, true)

	t.Run("token decodes to the same user", func(t *testing.T) {
		f := newFixture()
		f.users.On("GetUserByNPK", mock.Anything, testNPK).Return(user, nil).Once()

		res, err := f.svc.Login(context.Background(), testNPK, testPassword)
		require.NoError(t, err)
		assert.True(t, res.Verified)

		claims, err := f.maker.Parse(res.Token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, string(models.RoleUser), claims.Role)
		assert.Equal(t, testNPK, claims.NPK)
		assert.Equal(t, jwt.PurposeSession, claims.Purpose)
		assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, 5*time.Second)
	})

	t.Run("wrong password and unknown npk look the same", func(t *testing.T) {
		f := newFixture()
		f.users.On("GetUserByNPK", mock.Anything, testNPK).Return(user, nil).Once()
		f.users.On("GetUserByNPK", mock.Anything, "Z99999-99").Return(nil, models.ErrNotFound).Once()

		_, errWrongPass := f.svc.Login(context.Background(), testNPK, "Wrong123!")
		_, errUnknown := f.svc.Login(context.Background(), "Z99999-99", testPassword)

		assert.ErrorIs(t, errWrongPass, models.ErrUnauthorized)
		assert.ErrorIs(t, errUnknown, models.ErrUnauthorized)
		f.assertExpectations(t)
	})
}

func TestService_VerifyEmail(t *testing.T) {
	f := newFixture()
	token, err := f.maker.Issue(jwt.Claims{NPK: testNPK, Email: testEmail, Purpose: jwt.PurposeVerification}, time.Hour)
	require.NoError(t, err)

	unverified := hashedUser(t, false)
	verified := hashedUser(t, true)

	f.users.On("GetUserByNPK", mock.Anything, testNPK).Return(unverified, nil).Once()
	f.users.On("UpdateUser", mock.Anything, unverified.ID, mock.MatchedBy(func(u models.UserUpdate) bool {
		return u.Verified != nil && *u.Verified && u.PasswordHash == nil && u.Email == nil
	})).Return(verified, nil).Once()

	require.NoError(t, f.svc.VerifyEmail(context.Background(), token))

	f.users.On("GetUserByNPK", mock.Anything, testNPK).Return(verified, nil).Once()
	err = f.svc.VerifyEmail(context.Background(), token)
	assert.ErrorIs(t, err, models.ErrAlreadyVerified)

	f.assertExpectations(t)
}

func TestService_VerifyEmail_BadTokens(t *testing.T) {
	f := newFixture()

	sessionToken, err := f.maker.Issue(jwt.Claims{UserID: "u1", NPK: testNPK, Purpose: jwt.PurposeSession}, time.Hour)
	require.NoError(t, err)
	expired, err := f.maker.Issue(jwt.Claims{NPK: testNPK, Email: testEmail, Purpose: jwt.PurposeVerification}, -time.Minute)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":       "not-a-token",
		"wrong purpose": sessionToken,
		"expired":       expired,
	} {
		t.Run(name, func(t *testing.T) {
			err := f.svc.VerifyEmail(context.Background(), token)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
	f.users.AssertNotCalled(t, "GetUserByNPK", mock.Anything, mock.Anything)
}

func TestService_VerifyEmail_RejectsLinkForPreviousAddress(t *testing.T) {
	f := newFixture()
	token, err := f.maker.Issue(jwt.Claims{NPK: testNPK, Email: "old@b.com", Purpose: jwt.PurposeVerification}, time.Hour)
	require.NoError(t, err)

	changed := hashedUser(t, false)
	changed.Email = "new@else.com"
	f.users.On("GetUserByNPK", mock.Anything, testNPK).Return(changed, nil).Once()

	err = f.svc.VerifyEmail(context.Background(), token)
	assert.ErrorIs(t, err, models.ErrValidation)
	f.users.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestService_VerifyEmail_WithoutAddressClaim(t *testing.T) {
	f := newFixture()
	token, err := f.maker.Issue(jwt.Claims{NPK: testNPK, Purpose: jwt.PurposeVerification}, time.Hour)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.VerifyEmail(context.Background(), token), models.ErrValidation)
	f.users.AssertNotCalled(t, "GetUserByNPK", mock.Anything, mock.Anything)
}

func TestService_VerifyEmail_UserMissing(t *testing.T) {
	f := newFixture()
	token, err := f.maker.Issue(jwt.Claims{NPK: testNPK, Email: testEmail, Purpose: jwt.PurposeVerification}, time.Hour)
	require.NoError(t, err)

	f.users.On("GetUserByNPK", mock.Anything, testNPK).Return(nil, models.ErrNotFound).Once()
	assert.ErrorIs(t, f.svc.VerifyEmail(context.Background(), token), models.ErrNotFound)
}

func TestService_ResendVerification(t *testing.T) {
	tests := []struct {
		name       string
		email      string
		npk        string
		setupMocks func(t *testing.T, f *fixture)
		wantErr    error
	}{
		{
			name:    "both fields required",
			email:   testEmail,
			wantErr: models.ErrValidation,
		},
		{
			name:  "email does not match npk",
			email: "other@b.com",
			npk:   testNPK,
			setupMocks: func(t *testing.T, f *fixture) {
				f.users.On("GetUserByNPK", mock.Anything, testNPK).Return(hashedUser(t, false), nil).Once()
			},
			wantErr: models.ErrNotFound,
		},
		{
			name:  "already verified",
			email: testEmail,
			npk:   testNPK,
			setupMocks: func(t *testing.T, f *fixture) {
				f.users.On("GetUserByNPK", mock.Anything, testNPK).Return(hashedUser(t, true), nil).Once()
			},
			wantErr: models.ErrAlreadyVerified,
		},
		{
			name:  "mail sent",
			email: testEmail,
			npk:   testNPK,
			setupMocks: func(t *testing.T, f *fixture) {
				f.users.On("GetUserByNPK", mock.Anything, testNPK).Return(hashedUser(t, false), nil).Once()
				f.mailer.On("SendVerification", mock.Anything, testEmail, testNPK, mock.Anything).Return(nil).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.setupMocks != nil {
				tt.setupMocks(t, f)
			}

			err := f.svc.ResendVerification(context.Background(), tt.email, tt.npk)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			f.assertExpectations(t)
		})
	}
}

func TestService_ForgotPassword(t *testing.T) {
	t.Run("unknown email sends nothing", func(t *testing.T) {
		f := newFixture()
		f.users.On("GetUserByEmail", mock.Anything, "nobody@b.com").Return(nil, models.ErrNotFound).Once()

		f.svc.ForgotPassword(context.Background(), "nobody@b.com")

		f.mailer.AssertNotCalled(t, "SendPasswordReset", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("known email gets a reset link", func(t *testing.T) {
		f := newFixture()
		user := hashedUser(t, true)
		f.users.On("GetUserByEmail", mock.Anything, testEmail).Return(user, nil).Once()
		f.mailer.On("SendPasswordReset", mock.Anything, testEmail, testNPK,
			mock.MatchedBy(func(link string) bool {
				return strings.HasPrefix(link, "http://portal.local/reset-password?token=")
			})).Return(nil).Once()

		f.svc.ForgotPassword(context.Background(), testEmail)

		claims, err := f.maker.Parse(tokenFromLink(t, f.mailer.Calls[0].Arguments.String(3)))
		require.NoError(t, err)
		assert.Equal(t, jwt.PurposeReset, claims.Purpose)
		assert.Equal(t, user.ID, claims.UserID)
		assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
		f.assertExpectations(t)
	})

	t.Run("mail failure is swallowed", func(t *testing.T) {
		f := newFixture()
		f.users.On("GetUserByEmail", mock.Anything, testEmail).Return(hashedUser(t, true), nil).Once()
		f.mailer.On("SendPasswordReset", mock.Anything, testEmail, testNPK, mock.Anything).
			Return(models.ErrUpstream).Once()

		assert.NotPanics(t, func() { f.svc.ForgotPassword(context.Background(), testEmail) })
		f.assertExpectations(t)
	})
}

func TestService_ResetPassword(t *testing.T) {
	user := hashedUser(t, true)
	const newPassword = "Newpass1!"

	issueReset := func(t *testing.T, f *fixture, ttl time.Duration) (string, *jwt.Claims) {
		token, err := f.maker.Issue(jwt.Claims{UserID: user.ID, Purpose: jwt.PurposeReset}, ttl)
		require.NoError(t, err)
		if ttl < 0 {
			return token, nil
		}
		claims, err := f.maker.Parse(token)
		require.NoError(t, err)
		return token, claims
	}

	t.Run("success", func(t *testing.T) {
		f := newFixture()
		token, claims := issueReset(t, f, 15*time.Minute)

		f.denylist.On("IsUsed", mock.Anything, claims.ID).Return(false, nil).Once()
		f.users.On("GetUserByID", mock.Anything, user.ID).Return(user, nil).Once()
		f.denylist.On("Consume", mock.Anything, claims.ID, claims.ExpiresAt.Time).Return(true, nil).Once()
		f.users.On("UpdateUser", mock.Anything, user.ID, mock.MatchedBy(func(u models.UserUpdate) bool {
			return u.PasswordHash != nil && password.CompareHash(*u.PasswordHash, newPassword) == nil
		})).Return(user, nil).Once()

		require.NoError(t, f.svc.ResetPassword(context.Background(), token, newPassword))
		f.assertExpectations(t)
	})

	t.Run("token already used", func(t *testing.T) {
		f := newFixture()
		token, claims := issueReset(t, f, 15*time.Minute)

		f.denylist.On("IsUsed", mock.Anything, claims.ID).Return(true, nil).Once()

		err := f.svc.ResetPassword(context.Background(), token, newPassword)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
		f.users.AssertNotCalled(t, "GetUserByID", mock.Anything, mock.Anything)
		f.denylist.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("concurrent redemption loses", func(t *testing.T) {
		f := newFixture()
		token, claims := issueReset(t, f, 15*time.Minute)

		f.denylist.On("IsUsed", mock.Anything, claims.ID).Return(false, nil).Once()
		f.users.On("GetUserByID", mock.Anything, user.ID).Return(user, nil).Once()
		f.denylist.On("Consume", mock.Anything, claims.ID, mock.Anything).Return(false, nil).Once()

		err := f.svc.ResetPassword(context.Background(), token, newPassword)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
		f.users.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("expired token is distinct", func(t *testing.T) {
		f := newFixture()
		token, _ := issueReset(t, f, -time.Minute)

		err := f.svc.ResetPassword(context.Background(), token, newPassword)
		assert.ErrorIs(t, err, models.ErrTokenExpired)
		assert.NotErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("session token rejected", func(t *testing.T) {
		f := newFixture()
		token, err := f.maker.Issue(jwt.Claims{UserID: user.ID, Purpose: jwt.PurposeSession}, time.Hour)
		require.NoError(t, err)

		err = f.svc.ResetPassword(context.Background(), token, newPassword)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("user missing", func(t *testing.T) {
		f := newFixture()
		token, claims := issueReset(t, f, 15*time.Minute)
		f.denylist.On("IsUsed", mock.Anything, claims.ID).Return(false, nil).Once()
		f.users.On("GetUserByID", mock.Anything, user.ID).Return(nil, models.ErrNotFound).Once()

		err := f.svc.ResetPassword(context.Background(), token, newPassword)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("failed update releases the token", func(t *testing.T) {
		f := newFixture()
		token, claims := issueReset(t, f, 15*time.Minute)

		f.denylist.On("IsUsed", mock.Anything, claims.ID).Return(false, nil).Once()
		f.users.On("GetUserByID", mock.Anything, user.ID).Return(user, nil).Once()
		f.denylist.On("Consume", mock.Anything, claims.ID, mock.Anything).Return(true, nil).Once()
		f.users.On("UpdateUser", mock.Anything, user.ID, mock.Anything).Return(nil, errors.New("db down")).Once()
		f.denylist.On("Release", mock.Anything, claims.ID).Return(nil).Once()

		assert.Error(t, f.svc.ResetPassword(context.Background(), token, newPassword))
		f.assertExpectations(t)
	})
}

func TestService_ChangePassword(t *testing.T) {
	user := hashedUser(t, true)

	t.Run("wrong current password", func(t *testing.T) {
		f := newFixture()
		f.users.On("GetUserByID", mock.Anything, user.ID).Return(user, nil).Once()

		err := f.svc.ChangePassword(context.Background(), user.ID, "Wrong123!", "Newpass1!")
		assert.ErrorIs(t, err, models.ErrValidation)
		f.users.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("success", func(t *testing.T) {
		f := newFixture()
		f.users.On("GetUserByID", mock.Anything, user.ID).Return(user, nil).Once()
		f.users.On("UpdateUser", mock.Anything, user.ID, mock.MatchedBy(func(u models.UserUpdate) bool {
			return u.PasswordHash != nil && password.CompareHash(*u.PasswordHash, "Newpass1!") == nil
		})).Return(user, nil).Once()

		require.NoError(t, f.svc.ChangePassword(context.Background(), user.ID, testPassword, "Newpass1!"))
		f.assertExpectations(t)
	})
}

func TestService_Authenticate(t *testing.T) {
	user := hashedUser(t, true)

	tests := []struct {
		name       string
		claims     jwt.Claims
		ttl        time.Duration
		setupMocks func(f *fixture)
		wantErr    error
	}{
		{
			name:   "session token",
			claims: jwt.Claims{UserID: user.ID, Purpose: jwt.PurposeSession},
			ttl:    time.Hour,
			setupMocks: func(f *fixture) {
				f.users.On("GetUserByID", mock.Anything, user.ID).Return(user, nil).Once()
			},
		},
		{
			name:   "protected token",
			claims: jwt.Claims{UserID: user.ID, Purpose: jwt.PurposeProtected},
			ttl:    time.Hour,
			setupMocks: func(f *fixture) {
				f.users.On("GetUserByID", mock.Anything, user.ID).Return(user, nil).Once()
			},
		},
		{
			name:    "expired",
			claims:  jwt.Claims{UserID: user.ID, Purpose: jwt.PurposeSession},
			ttl:     -time.Minute,
			wantErr: models.ErrTokenExpired,
		},
		{
			name:    "reset token cannot open a session",
			claims:  jwt.Claims{UserID: user.ID, Purpose: jwt.PurposeReset},
			ttl:     time.Hour,
			wantErr: models.ErrUnauthorized,
		},
		{
			name:   "user deleted",
			claims: jwt.Claims{UserID: user.ID, Purpose: jwt.PurposeSession},
			ttl:    time.Hour,
			setupMocks: func(f *fixture) {
				f.users.On("GetUserByID", mock.Anything, user.ID).Return(nil, models.ErrNotFound).Once()
			},
			wantErr: models.ErrUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.setupMocks != nil {
				tt.setupMocks(f)
			}
			token, err := f.maker.Issue(tt.claims, tt.ttl)
			require.NoError(t, err)

			got, err := f.svc.Authenticate(context.Background(), token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, user.ID, got.ID)
			}
			f.assertExpectations(t)
		})
	}
}
