// Package hdportal assembles the portal API: storage, Redis, the optional
// RabbitMQ publisher, services and the HTTP server.
package hdportal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"

	"github.com/hdportal/helpdesk-api/internal/chatbot"
	"github.com/hdportal/helpdesk-api/internal/config"
	"github.com/hdportal/helpdesk-api/internal/denylist"
	"github.com/hdportal/helpdesk-api/internal/http/middlewarectx"
	"github.com/hdportal/helpdesk-api/internal/lib/jwt"
	"github.com/hdportal/helpdesk-api/internal/lib/rabbitmq"
	"github.com/hdportal/helpdesk-api/internal/lib/sl"
	"github.com/hdportal/helpdesk-api/internal/lib/smtp"
	"github.com/hdportal/helpdesk-api/internal/migrations"
	authservice "github.com/hdportal/helpdesk-api/internal/services/auth"
	chatservice "github.com/hdportal/helpdesk-api/internal/services/chat"
	hdactionservice "github.com/hdportal/helpdesk-api/internal/services/hdaction"
	"github.com/hdportal/helpdesk-api/internal/services/mailer"
	userservice "github.com/hdportal/helpdesk-api/internal/services/user"
	"github.com/hdportal/helpdesk-api/internal/storage"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	server   *http.Server
	logger   *slog.Logger
	db       *storage.Storage
	denylist *denylist.Denylist
	conn     *amqp.Connection
	ch       *amqp.Channel
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "hdportal.New"

	limiter, err := middlewarectx.NewRateLimiter(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	dl, err := denylist.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	app := &App{logger: logger, db: db, denylist: dl}

	// hdaction.New treats a nil interface as "publishing disabled"; a typed
	// nil *rabbitmq.Publisher would not be.
	var events hdactionservice.EventPublisher
	if cfg.RabbitMQURL != "" {
		app.conn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		app.ch, err = rabbitmq.SetupChannel(app.conn, rabbitmq.PortalQueues())
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		events = rabbitmq.NewPublisher(app.ch, rabbitmq.Exchange)
	} else {
		logger.Warn("RABBITMQ_URL is empty, status change events are disabled")
	}

	mail := mailer.New(smtp.NewTransport(cfg.SMTP, logger), cfg.SMTPFromName, logger)
	authService := authservice.New(db, jwt.NewJWTMaker(cfg.JWTSecretKey), mail, dl, cfg.JWTToken, cfg.FrontendURL, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Services{
		Auth:     authService,
		Users:    userservice.New(db, authService, logger),
		HDAction: hdactionservice.New(db, db, events, logger),
		Chat:     chatservice.New(chatbot.NewClient(cfg.Chatbot), db, logger),
		Mailer:   mail,
		DB:       db,
		Limiter:  limiter,
		Registry: registry,
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close RabbitMQ channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close RabbitMQ connection", sl.Err(err))
		}
	}
	if err := a.denylist.Close(); err != nil {
		a.logger.Error("failed to close redis client", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
