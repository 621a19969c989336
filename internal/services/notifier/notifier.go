// Package notifier mails requesters when the status of their helpdesk
// action changes.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hdportal/helpdesk-api/internal/lib/sl"
	"github.com/hdportal/helpdesk-api/internal/models"
)

type UserLookup interface {
	GetUserByNPK(ctx context.Context, npk string) (*models.User, error)
}

type Mailer interface {
	SendStatusUpdate(ctx context.Context, to string, event models.ActionEvent) error
}

// Service handles models.ActionEvent deliveries.
type Service struct {
	users  UserLookup
	mailer Mailer
	log    *slog.Logger
}

func New(users UserLookup, mailer Mailer, log *slog.Logger) *Service {
	return &Service{users: users, mailer: mailer, log: log}
}

// HandleStatusChange decodes one event and mails the owner of its npk.
// Undecodable events and events for unknown npks are dropped; any other
// failure is returned so the delivery is requeued.
func (s *Service) HandleStatusChange(ctx context.Context, body []byte) error {
	const op = "notifier.HandleStatusChange"
	log := s.log.With(slog.String("op", op))

	var event models.ActionEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Error("dropping malformed event", sl.Err(err))
		return nil
	}
	log = log.With(slog.String("action_id", event.ActionID))

	owner, err := s.users.GetUserByNPK(ctx, event.NPK)
	if errors.Is(err, models.ErrNotFound) {
		log.Warn("dropping event for unknown npk", slog.String("npk", event.NPK))
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = s.mailer.SendStatusUpdate(ctx, owner.Email, event); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("status update sent", slog.String("new_status", string(event.NewStatus)))
	return nil
}
