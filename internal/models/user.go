package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an authenticated account. Identity is delegated to the
// OIDC provider; ProviderID holds the provider's subject claim.
type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	ProviderID    *string   `json:"providerId,omitempty"`
	Name          *string   `json:"name,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
