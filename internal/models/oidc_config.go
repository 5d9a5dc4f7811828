package models

import (
	"time"

	"github.com/google/uuid"
)

// OIDCConfig represents the stored configuration of one identity provider
type OIDCConfig struct {
	ID           uuid.UUID `json:"id"`
	Provider     string    `json:"provider"`
	Issuer       string    `json:"issuer"`
	Domain       *string   `json:"domain,omitempty"` // Optional hosted login domain
	ClientID     string    `json:"client_id"`
	ClientSecret *string   `json:"client_secret,omitempty"` // Required for the server-side code exchange
	RedirectURI  string    `json:"redirect_uri"`
	JWKSUrl      *string   `json:"jwks_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasClientSecret reports whether a confidential client secret is configured
func (c *OIDCConfig) HasClientSecret() bool {
	return c.ClientSecret != nil && *c.ClientSecret != ""
}
