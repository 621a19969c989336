// Package middlewarectx holds the HTTP middleware of the portal: the access
// guard that resolves bearer tokens into users, the rate limiter and the
// request metrics.
package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/hdportal/helpdesk-api/internal/http/response"
	"github.com/hdportal/helpdesk-api/internal/lib/sl"
	"github.com/hdportal/helpdesk-api/internal/models"
)

// Key is the type of request context keys set by this package.
type Key string

// UserKey holds the authenticated *models.User.
const UserKey Key = "user"

// Authenticator resolves a bearer token into the user it was issued for.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// Policy is what a route demands of the authenticated user. An empty Roles
// admits every role.
type Policy struct {
	RequireVerified bool
	Roles           []models.Role
}

var (
	PolicyAuth  = Policy{RequireVerified: true}
	PolicyAdmin = Policy{RequireVerified: true, Roles: []models.Role{models.RoleAdmin}}
	// PolicyMaster does not check the verified flag. Master accounts are
	// provisioned by hand and this keeps the existing behaviour until it is
	// decided whether they must verify too.
	PolicyMaster = Policy{Roles: []models.Role{models.RoleMaster}}
)

// Guard returns a middleware that authenticates the bearer token and
// enforces policy. Missing or bad tokens get 401, policy failures 403.
func Guard(auth Authenticator, policy Policy, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.Guard"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found || token == "" {
				log.Info("missing or invalid authorization header")
				response.Fail(w, r, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}

			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, models.ErrTokenExpired):
					log.Info("expired token")
					response.Fail(w, r, http.StatusUnauthorized, "token expired")
				case errors.Is(err, models.ErrUnauthorized):
					log.Info("invalid token", sl.Err(err))
					response.Fail(w, r, http.StatusUnauthorized, "invalid token")
				default:
					log.Error("failed to authenticate", sl.Err(err))
					response.FailWith(w, r, err)
				}
				return
			}

			if policy.RequireVerified && !user.Verified {
				log.Info("account not verified", slog.String("npk", user.NPK))
				response.Fail(w, r, http.StatusForbidden, "account not verified")
				return
			}
			if len(policy.Roles) > 0 && !slices.Contains(policy.Roles, user.Role) {
				log.Info("role not allowed", slog.String("npk", user.NPK), slog.String("role", string(user.Role)))
				response.Fail(w, r, http.StatusForbidden, "access denied for role "+string(user.Role))
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the user attached by Guard.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserKey).(*models.User)
	return user, ok && user != nil
}

// WithUser attaches user to ctx the way Guard does.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}
