// Command notifier mails requesters when their helpdesk action changes
// status.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hdportal/helpdesk-api/internal/app/notifier"
	"github.com/hdportal/helpdesk-api/internal/config"
	"github.com/hdportal/helpdesk-api/internal/lib/logger"
	"github.com/hdportal/helpdesk-api/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env, os.Stdout)
	log.Info("starting notifier", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := notifier.New(cfg, log)
	if err != nil {
		log.Error("failed to initialize notifier", sl.Err(err))
		os.Exit(1)
	}
	if err := app.Run(ctx); err != nil {
		log.Error("notifier stopped with error", sl.Err(err))
		os.Exit(1)
	}
}
