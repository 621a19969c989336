// Package notifier assembles the worker that mails owners of helpdesk
// actions when their status changes.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/hdportal/helpdesk-api/internal/config"
	"github.com/hdportal/helpdesk-api/internal/lib/rabbitmq"
	"github.com/hdportal/helpdesk-api/internal/lib/sl"
	"github.com/hdportal/helpdesk-api/internal/lib/smtp"
	"github.com/hdportal/helpdesk-api/internal/services/mailer"
	notifierservice "github.com/hdportal/helpdesk-api/internal/services/notifier"
	"github.com/hdportal/helpdesk-api/internal/storage"
)

// ErrBrokerDisabled is returned by New when no RabbitMQ URL is configured.
var ErrBrokerDisabled = errors.New("rabbitmq url is not set")

type App struct {
	db       *storage.Storage
	conn     *amqp.Connection
	ch       *amqp.Channel
	notifier *notifierservice.Service
	logger   *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "notifier.New"

	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrBrokerDisabled)
	}

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.PortalQueues())
	if err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	mail := mailer.New(smtp.NewTransport(cfg.SMTP, logger), cfg.SMTPFromName, logger)

	return &App{
		db:       db,
		conn:     conn,
		ch:       ch,
		notifier: notifierservice.New(db, mail, logger),
		logger:   logger,
	}, nil
}

// Run consumes status change events until ctx is cancelled or the broker
// closes the channel. The latter is returned as an error.
func (a *App) Run(ctx context.Context) error {
	const op = "notifier.Run"

	queue := rabbitmq.ActionStatusQueue.QueueName
	stopped, err := rabbitmq.ConsumerMessage(ctx, a.ch, queue, a.logger, func(body []byte) error {
		return a.notifier.HandleStatusChange(ctx, body)
	})
	if err != nil {
		a.close()
		return fmt.Errorf("%s: %w", op, err)
	}
	a.logger.Info("consuming status change events", slog.String("queue", queue))

	err = <-stopped
	defer a.close()
	if err != nil {
		a.logger.Error("consumer stopped", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	a.logger.Info("notifier shutting down gracefully")
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
