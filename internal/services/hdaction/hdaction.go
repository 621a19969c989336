// Package hdaction implements helpdesk action records: id generation,
// owner and administrator CRUD, and status change events.
package hdaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hdportal/helpdesk-api/internal/lib/rabbitmq"
	"github.com/hdportal/helpdesk-api/internal/lib/sl"
	"github.com/hdportal/helpdesk-api/internal/models"
)

// Repository is the action record store.
type Repository interface {
	Counter
	CreateAction(ctx context.Context, a models.HDAction) (*models.HDAction, error)
	GetAction(ctx context.Context, id string) (*models.HDAction, error)
	ListActionsByNPK(ctx context.Context, npk string) ([]*models.HDAction, error)
	ListActions(ctx context.Context) ([]*models.HDAction, error)
	UpdateAction(ctx context.Context, a models.HDAction) (*models.HDAction, error)
	DeleteAction(ctx context.Context, id string) error
}

// UserLookup resolves the owner of an npk.
type UserLookup interface {
	GetUserByNPK(ctx context.Context, npk string) (*models.User, error)
}

// EventPublisher ships status change events to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Service implements helpdesk action management.
type Service struct {
	repo      Repository
	users     UserLookup
	generator *Generator
	events    EventPublisher
	log       *slog.Logger
	now       func() time.Time
}

// New creates a Service. events may be nil, in which case status changes are
// not published.
func New(repo Repository, users UserLookup, events EventPublisher, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		users:     users,
		generator: NewGenerator(repo),
		events:    events,
		log:       log,
		now:       time.Now,
	}
}

// ListOwn returns the actions of the caller's npk, newest first.
func (s *Service) ListOwn(ctx context.Context, caller *models.User) ([]*models.HDAction, error) {
	const op = "hdaction.ListOwn"
	list, err := s.repo.ListActionsByNPK(ctx, caller.NPK)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

// GetOwn returns an action created by or filed for the caller.
func (s *Service) GetOwn(ctx context.Context, caller *models.User, id string) (*models.HDAction, error) {
	const op = "hdaction.GetOwn"
	a, err := s.repo.GetAction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if a.UserID != caller.ID && a.NPK != caller.NPK {
		return nil, fmt.Errorf("%s: %w", op, models.ErrForbidden)
	}
	return a, nil
}

// CreateOwn files a new action for the caller. A given npk must be the
// caller's own.
func (s *Service) CreateOwn(ctx context.Context, caller *models.User, in models.HDActionInput) (*models.HDAction, error) {
	const op = "hdaction.CreateOwn"
	if in.NPK != "" && in.NPK != caller.NPK {
		return nil, fmt.Errorf("%s: %w: npk does not belong to the caller", op, models.ErrForbidden)
	}
	a, err := s.create(ctx, caller.NPK, caller.ID, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// UpdateOwn changes an action the caller created.
func (s *Service) UpdateOwn(ctx context.Context, caller *models.User, id string, in models.HDActionInput) (*models.HDAction, error) {
	const op = "hdaction.UpdateOwn"

	current, err := s.repo.GetAction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if current.UserID != caller.ID {
		return nil, fmt.Errorf("%s: %w", op, models.ErrForbidden)
	}
	if in.NPK != "" && in.NPK != current.NPK {
		return nil, fmt.Errorf("%s: %w: npk cannot be changed", op, models.ErrForbidden)
	}
	updated, err := s.update(ctx, current, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

// DeleteOwn removes an action the caller created.
func (s *Service) DeleteOwn(ctx context.Context, caller *models.User, id string) error {
	const op = "hdaction.DeleteOwn"

	current, err := s.repo.GetAction(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if current.UserID != caller.ID {
		return fmt.Errorf("%s: %w", op, models.ErrForbidden)
	}
	if err = s.repo.DeleteAction(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListAll returns every action, newest first, annotated with the owner's
// current role.
func (s *Service) ListAll(ctx context.Context) ([]*models.HDAction, error) {
	const op = "hdaction.ListAll"
	list, err := s.repo.ListActions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

// Get returns any action.
func (s *Service) Get(ctx context.Context, id string) (*models.HDAction, error) {
	const op = "hdaction.Get"
	a, err := s.repo.GetAction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// CreateFor files an action for the registered user owning in.NPK. The
// record belongs to that user.
func (s *Service) CreateFor(ctx context.Context, in models.HDActionInput) (*models.HDAction, error) {
	const op = "hdaction.CreateFor"

	if in.NPK == "" {
		return nil, fmt.Errorf("%s: %w: npk is required", op, models.ErrValidation)
	}
	owner, err := s.users.GetUserByNPK(ctx, in.NPK)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w: npk %s is not registered", op, models.ErrValidation, in.NPK)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a, err := s.create(ctx, owner.NPK, owner.ID, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// Update changes any action. Moving it to another npk requires that npk to
// be registered.
func (s *Service) Update(ctx context.Context, id string, in models.HDActionInput) (*models.HDAction, error) {
	const op = "hdaction.Update"

	current, err := s.repo.GetAction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if in.NPK != "" && in.NPK != current.NPK {
		if _, err = s.users.GetUserByNPK(ctx, in.NPK); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, fmt.Errorf("%s: %w: npk %s is not registered", op, models.ErrValidation, in.NPK)
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	updated, err := s.update(ctx, current, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

// Delete removes any action.
func (s *Service) Delete(ctx context.Context, id string) error {
	const op = "hdaction.Delete"
	if err := s.repo.DeleteAction(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// create inserts a new record, regenerating the id once when a concurrent
// insert took it.
func (s *Service) create(ctx context.Context, npk, userID string, in models.HDActionInput) (*models.HDAction, error) {
	if in.Request == "" {
		return nil, fmt.Errorf("%w: request is required", models.ErrValidation)
	}
	status := in.Status
	if status == "" {
		status = models.StatusNotYet
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, status)
	}

	a := models.HDAction{
		NPK:       npk,
		UserID:    userID,
		Request:   in.Request,
		Reason:    orDefault(in.Reason),
		Action:    orDefault(in.Action),
		RootCause: orDefault(in.RootCause),
		Status:    status,
		DoneDate:  in.DoneDate,
	}
	s.settleDoneDate(&a)

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if a.ID, err = s.generator.Generate(ctx, npk); err != nil {
			return nil, err
		}
		var created *models.HDAction
		created, err = s.repo.CreateAction(ctx, a)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, models.ErrConflict) {
			return nil, err
		}
		s.log.Warn("action id taken, regenerating", slog.String("id", a.ID), slog.Int("attempt", attempt+1))
	}
	return nil, err
}

// update merges in into current, stores it and publishes a status change.
func (s *Service) update(ctx context.Context, current *models.HDAction, in models.HDActionInput) (*models.HDAction, error) {
	next := *current
	if in.NPK != "" {
		next.NPK = in.NPK
	}
	if in.Request != "" {
		next.Request = in.Request
	}
	if in.Reason != "" {
		next.Reason = in.Reason
	}
	if in.Action != "" {
		next.Action = in.Action
	}
	if in.RootCause != "" {
		next.RootCause = in.RootCause
	}
	if in.Status != "" {
		if !in.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, in.Status)
		}
		next.Status = in.Status
	}
	if in.DoneDate != nil {
		next.DoneDate = in.DoneDate
	}
	s.settleDoneDate(&next)

	updated, err := s.repo.UpdateAction(ctx, next)
	if err != nil {
		return nil, err
	}
	if updated.Status != current.Status {
		s.publishStatusChange(ctx, current.Status, updated)
	}
	return updated, nil
}

// settleDoneDate stamps Done records lacking a date and clears the date of
// any other status.
func (s *Service) settleDoneDate(a *models.HDAction) {
	if a.Status != models.StatusDone {
		a.DoneDate = nil
		return
	}
	if a.DoneDate == nil {
		now := s.now()
		a.DoneDate = &now
	}
}

func (s *Service) publishStatusChange(ctx context.Context, old models.ActionStatus, a *models.HDAction) {
	if s.events == nil {
		return
	}
	event := models.ActionEvent{
		ActionID:  a.ID,
		NPK:       a.NPK,
		Request:   a.Request,
		OldStatus: old,
		NewStatus: a.Status,
		ChangedAt: s.now(),
	}
	if err := s.events.Publish(ctx, rabbitmq.ActionStatusQueue.RoutingKey, event); err != nil {
		s.log.Error("failed to publish status change",
			slog.String("action_id", a.ID), sl.Err(err))
	}
}

func orDefault(s string) string {
	if s == "" {
		return models.DefaultActionText
	}
	return s
}
