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

const oidcConfigColumns = `id, provider, issuer, domain, client_id, client_secret, redirect_uri, jwks_url, created_at, updated_at`

// OIDCConfigRepository stores identity provider configuration
type OIDCConfigRepository struct {
	db *DB
}

// NewOIDCConfigRepository creates a new OIDC config repository
func NewOIDCConfigRepository(db *DB) *OIDCConfigRepository {
	return &OIDCConfigRepository{db: db}
}

func scanOIDCConfig(row rowScanner) (*models.OIDCConfig, error) {
	c := &models.OIDCConfig{}
	err := row.Scan(
		&c.ID,
		&c.Provider,
		&c.Issuer,
		&c.Domain,
		&c.ClientID,
		&c.ClientSecret,
		&c.RedirectURI,
		&c.JWKSUrl,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Upsert creates or replaces the configuration of config.Provider
func (r *OIDCConfigRepository) Upsert(ctx context.Context, config *models.OIDCConfig) error {
	if config.Provider == "" || config.Issuer == "" || config.ClientID == "" || config.RedirectURI == "" {
		return fmt.Errorf("provider, issuer, client_id and redirect_uri are required")
	}
	if config.ID == uuid.Nil {
		config.ID = uuid.New()
	}

	query := `
		INSERT INTO oidc_config (` + oidcConfigColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (provider) DO UPDATE SET
			issuer = EXCLUDED.issuer,
			domain = EXCLUDED.domain,
			client_id = EXCLUDED.client_id,
			client_secret = EXCLUDED.client_secret,
			redirect_uri = EXCLUDED.redirect_uri,
			jwks_url = EXCLUDED.jwks_url,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + oidcConfigColumns

	stored, err := scanOIDCConfig(r.db.QueryRowContext(ctx, query,
		config.ID,
		config.Provider,
		config.Issuer,
		config.Domain,
		config.ClientID,
		config.ClientSecret,
		config.RedirectURI,
		config.JWKSUrl,
		time.Now(),
	))
	if err != nil {
		return fmt.Errorf("failed to save OIDC config: %w", err)
	}
	*config = *stored
	return nil
}

// GetByProvider retrieves an OIDC configuration by provider name
func (r *OIDCConfigRepository) GetByProvider(ctx context.Context, provider string) (*models.OIDCConfig, error) {
	config, err := scanOIDCConfig(r.db.QueryRowContext(ctx,
		`SELECT `+oidcConfigColumns+` FROM oidc_config WHERE provider = $1`, provider))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(err, "OIDC config for provider "+provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get OIDC config: %w", err)
	}
	return config, nil
}

// GetAll retrieves all OIDC configurations ordered by provider
func (r *OIDCConfigRepository) GetAll(ctx context.Context) ([]*models.OIDCConfig, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+oidcConfigColumns+` FROM oidc_config ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("failed to query OIDC configs: %w", err)
	}
	defer closeRows(rows)

	var configs []*models.OIDCConfig
	for rows.Next() {
		config, err := scanOIDCConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan OIDC config: %w", err)
		}
		configs = append(configs, config)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating OIDC configs: %w", err)
	}
	return configs, nil
}

// Delete removes the configuration of a provider
func (r *OIDCConfigRepository) Delete(ctx context.Context, provider string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM oidc_config WHERE provider = $1`, provider)
	if err != nil {
		return fmt.Errorf("failed to delete OIDC config: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("OIDC config %w", ErrNotFound)
	}
	return nil
}
