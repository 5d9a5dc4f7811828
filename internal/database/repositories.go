package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskflow-ai/taskflow-api/internal/models"
)

// TodoRepositoryInterface defines the owner-scoped todo operations.
// This interface enables better testability by allowing in-memory implementations
type TodoRepositoryInterface interface {
	Create(ctx context.Context, todo *models.Todo) error
	GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Todo, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Todo, error)
	UpdateFields(ctx context.Context, id, userID uuid.UUID, patch models.TodoPatch, now time.Time) (*models.Todo, error)
	DeleteForUser(ctx context.Context, id, userID uuid.UUID) error
	Count(ctx context.Context, userID uuid.UUID, filter CountFilter) (int, error)
}

// UserRepositoryInterface defines the user lookups needed by authentication
type UserRepositoryInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByProviderID(ctx context.Context, providerID string) (*models.User, error)
	UpsertByProviderID(ctx context.Context, user *models.User) error
}

// OIDCConfigRepositoryInterface defines read access to provider configuration
type OIDCConfigRepositoryInterface interface {
	GetByProvider(ctx context.Context, provider string) (*models.OIDCConfig, error)
}

// Ensure concrete types implement the interfaces
var (
	_ TodoRepositoryInterface       = (*TodoRepository)(nil)
	_ UserRepositoryInterface       = (*UserRepository)(nil)
	_ OIDCConfigRepositoryInterface = (*OIDCConfigRepository)(nil)
)
