package hdaction

import (
	"context"

	"github.com/hdportal/helpdesk-api/internal/models"
)

// OwnerService is the caller-scoped part of the action store.
type OwnerService interface {
	ListOwn(ctx context.Context, caller *models.User) ([]*models.HDAction, error)
	GetOwn(ctx context.Context, caller *models.User, id string) (*models.HDAction, error)
	CreateOwn(ctx context.Context, caller *models.User, in models.HDActionInput) (*models.HDAction, error)
	UpdateOwn(ctx context.Context, caller *models.User, id string, in models.HDActionInput) (*models.HDAction, error)
	DeleteOwn(ctx context.Context, caller *models.User, id string) error
}

// AdminService manages every action regardless of owner.
type AdminService interface {
	ListAll(ctx context.Context) ([]*models.HDAction, error)
	Get(ctx context.Context, id string) (*models.HDAction, error)
	CreateFor(ctx context.Context, in models.HDActionInput) (*models.HDAction, error)
	Update(ctx context.Context, id string, in models.HDActionInput) (*models.HDAction, error)
	Delete(ctx context.Context, id string) error
}
