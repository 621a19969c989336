package hdportal

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authhandler "github.com/hdportal/helpdesk-api/internal/http/handlers/auth"
	chathandler "github.com/hdportal/helpdesk-api/internal/http/handlers/chat"
	hdactionhandler "github.com/hdportal/helpdesk-api/internal/http/handlers/hdaction"
	"github.com/hdportal/helpdesk-api/internal/http/handlers/health"
	"github.com/hdportal/helpdesk-api/internal/http/handlers/profile"
	"github.com/hdportal/helpdesk-api/internal/http/handlers/sendemail"
	"github.com/hdportal/helpdesk-api/internal/http/handlers/users"
	"github.com/hdportal/helpdesk-api/internal/http/middlewarectx"
	authservice "github.com/hdportal/helpdesk-api/internal/services/auth"
	chatservice "github.com/hdportal/helpdesk-api/internal/services/chat"
	hdactionservice "github.com/hdportal/helpdesk-api/internal/services/hdaction"
	"github.com/hdportal/helpdesk-api/internal/services/mailer"
	userservice "github.com/hdportal/helpdesk-api/internal/services/user"
	"github.com/hdportal/helpdesk-api/internal/storage"
)

// Services bundles everything the router hands to handlers.
type Services struct {
	Auth     *authservice.Service
	Users    *userservice.Service
	HDAction *hdactionservice.Service
	Chat     *chatservice.Service
	Mailer   *mailer.Service
	DB       *storage.Storage
	Limiter  *middlewarectx.RateLimiter
	Registry *prometheus.Registry
}

// RegisterRoutes mounts every portal route on r.
func RegisterRoutes(r chi.Router, log *slog.Logger, s Services) {
	metrics := middlewarectx.NewMetrics(s.Registry)

	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		metrics.Middleware,
	)

	guard := func(p middlewarectx.Policy) func(http.Handler) http.Handler {
		return middlewarectx.Guard(s.Auth, p, log)
	}

	r.Handle("/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))
	r.Method(http.MethodGet, "/health", health.New(log, s.DB))

	auth := authhandler.New(log, s.Auth)
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimit(s.Limiter, log))
			r.Post("/register", auth.Register)
			r.Post("/login", auth.Login)
			r.Post("/resend-verification", auth.ResendVerification)
			r.Post("/forgot-password", auth.ForgotPassword)
		})
		r.Post("/verify-email", auth.VerifyEmail)
		r.Post("/reset-password", auth.ResetPassword)
		// the token handed out at registration belongs to an unverified account
		r.With(guard(middlewarectx.Policy{})).Get("/protected", auth.Protected)
	})

	prof := profile.New(log, s.Users, s.Auth)
	r.Route("/user", func(r chi.Router) {
		r.Use(guard(middlewarectx.PolicyAuth))
		r.Get("/profile", prof.Get)
		r.Put("/profile", prof.Update)
		r.Post("/change-password", prof.ChangePassword)
	})

	own := hdactionhandler.NewOwner(log, s.HDAction)
	r.Route("/hd-actions", func(r chi.Router) {
		r.Use(guard(middlewarectx.PolicyAuth))
		r.Get("/", own.List)
		r.Post("/", own.Create)
		r.Get("/{id}", own.Get)
		r.Put("/{id}", own.Update)
		r.Delete("/{id}", own.Delete)
	})

	chat := chathandler.New(log, s.Chat)
	r.Route("/chat", func(r chi.Router) {
		r.Use(guard(middlewarectx.PolicyAuth))
		r.Post("/", chat.Send)
		r.Post("/session", chat.CreateSession)
		r.Patch("/session/{id}", chat.Rename)
		r.Post("/session/{id}/message", chat.AppendMessage)
		r.Get("/session/{id}/messages", chat.Messages)
		r.Get("/sessions", chat.Sessions)
	})

	adminActions := hdactionhandler.NewAdmin(log, s.HDAction)
	adminUsers := users.New(log, s.Users)
	history := chathandler.NewHistory(log, s.Chat)
	r.Route("/admin", func(r chi.Router) {
		r.Use(guard(middlewarectx.PolicyAdmin))

		r.Get("/hd-actions", adminActions.List)
		r.Post("/hd-actions", adminActions.Create)
		r.Get("/hd-actions/{id}", adminActions.Get)
		r.Put("/hd-actions/{id}", adminActions.Update)
		r.Delete("/hd-actions/{id}", adminActions.Delete)

		r.Get("/users", adminUsers.List)
		r.Post("/users", adminUsers.Create)
		r.Put("/users/{id}", adminUsers.Update)
		r.Delete("/users/{id}", adminUsers.Delete)

		r.Get("/chat/users/{sender}/sessions", history.Sessions)
		r.Get("/chat/users/{sender}/sessions/{chatID}/messages", history.Messages)

		r.Method(http.MethodPost, "/send-email", sendemail.New(log, s.Mailer))
	})

	r.Route("/master", func(r chi.Router) {
		r.Use(guard(middlewarectx.PolicyMaster))
		r.Get("/users", adminUsers.List)
		r.Patch("/users/{id}/role", adminUsers.SetRole)
	})
}
