package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskflow-ai/taskflow-api/internal/models"
)

const userColumns = `id, email, provider_id, name, email_verified, created_at, updated_at`

// UserRepository handles user database operations
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.ProviderID,
		&user.Name,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) getOne(ctx context.Context, what, query string, arg any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(err, "user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by %s: %w", what, err)
	}
	return user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, "id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves the most recently created user with the given email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email",
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1) ORDER BY created_at DESC LIMIT 1`, email)
}

// GetByProviderID retrieves a user by the identity provider's subject
func (r *UserRepository) GetByProviderID(ctx context.Context, providerID string) (*models.User, error) {
	return r.getOne(ctx, "provider id", `SELECT `+userColumns+` FROM users WHERE provider_id = $1`, providerID)
}

// UpsertByProviderID creates the user for a provider subject on first sight and
// refreshes email, name and verification state afterwards. user.ID is only used
// for the insert; the stored row is written back into user.
func (r *UserRepository) UpsertByProviderID(ctx context.Context, user *models.User) error {
	if user.ProviderID == nil || *user.ProviderID == "" {
		return fmt.Errorf("provider id is required")
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	query := `
		INSERT INTO users (id, email, provider_id, name, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (provider_id) DO UPDATE SET
			email = EXCLUDED.email,
			name = COALESCE(EXCLUDED.name, users.name),
			email_verified = EXCLUDED.email_verified,
			updated_at = CASE
				WHEN users.email IS DISTINCT FROM EXCLUDED.email
				  OR users.name IS DISTINCT FROM COALESCE(EXCLUDED.name, users.name)
				  OR users.email_verified IS DISTINCT FROM EXCLUDED.email_verified
				THEN EXCLUDED.updated_at
				ELSE users.updated_at
			END
		RETURNING ` + userColumns

	stored, err := scanUser(r.db.QueryRowContext(ctx, query,
		user.ID,
		user.Email,
		user.ProviderID,
		user.Name,
		user.EmailVerified,
		time.Now(),
	))
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	*user = *stored
	return nil
}
