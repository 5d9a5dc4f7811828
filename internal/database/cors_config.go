package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/taskflow-ai/taskflow-api/internal/models"
)

const defaultCorsConfigKey = "default"

// CorsConfigRepository handles CORS configuration in the database.
type CorsConfigRepository struct {
	db *DB
}

// NewCorsConfigRepository creates a new CORS config repository.
func NewCorsConfigRepository(db *DB) *CorsConfigRepository {
	return &CorsConfigRepository{db: db}
}

// Get retrieves the default CORS config. A missing row yields (nil, nil).
func (r *CorsConfigRepository) Get(ctx context.Context) (*models.CorsConfig, error) {
	c := &models.CorsConfig{}
	err := r.db.QueryRowContext(ctx, `
		SELECT config_key, allowed_origins, allow_credentials, max_age, created_at, updated_at
		FROM cors_config WHERE config_key = $1
	`, defaultCorsConfigKey).Scan(
		&c.ConfigKey,
		&c.AllowedOrigins,
		&c.AllowCredentials,
		&c.MaxAge,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cors config: %w", err)
	}
	return c, nil
}

// Set upserts the default CORS config after normalizing the origin list.
func (r *CorsConfigRepository) Set(ctx context.Context, c *models.CorsConfig) error {
	origins, err := NormalizeOrigins(c.AllowedOrigins)
	if err != nil {
		return err
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("max_age cannot be negative")
	}
	c.ConfigKey = defaultCorsConfigKey
	c.AllowedOrigins = origins
	now := time.Now()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO cors_config (config_key, allowed_origins, allow_credentials, max_age, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (config_key) DO UPDATE SET
			allowed_origins = EXCLUDED.allowed_origins,
			allow_credentials = EXCLUDED.allow_credentials,
			max_age = EXCLUDED.max_age,
			updated_at = EXCLUDED.updated_at
	`, c.ConfigKey, c.AllowedOrigins, c.AllowCredentials, c.MaxAge, now)
	if err != nil {
		return fmt.Errorf("set cors config: %w", err)
	}
	return nil
}

// NormalizeOrigins validates a comma-separated origin list and returns it
// deduplicated, without trailing slashes. "*" is accepted as-is.
func NormalizeOrigins(raw string) (string, error) {
	origins := models.SplitOrigins(raw)
	if len(origins) == 0 {
		return "", fmt.Errorf("allowed_origins cannot be empty")
	}
	out := make([]string, 0, len(origins))
	seen := make(map[string]bool)
	for _, o := range origins {
		o = strings.TrimRight(o, "/")
		if o != "*" {
			u, err := url.Parse(o)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || u.Path != "" {
				return "", fmt.Errorf("invalid origin %q: expected scheme://host[:port]", o)
			}
		}
		if !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	return strings.Join(out, ","), nil
}
