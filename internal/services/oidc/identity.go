package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskflow-ai/taskflow-api/internal/database"
	"github.com/taskflow-ai/taskflow-api/internal/models"
)

// TokenVerifier verifies bearer tokens against the configured provider
type TokenVerifier struct {
	provider     *Provider
	jwksManager  *JWKSManager
	providerName string
}

// NewTokenVerifier creates a verifier for tokens issued by providerName
func NewTokenVerifier(provider *Provider, jwksManager *JWKSManager, providerName string) *TokenVerifier {
	return &TokenVerifier{provider: provider, jwksManager: jwksManager, providerName: providerName}
}

// VerifyToken verifies a bearer token. Its audience must be the configured
// client id, so tokens minted for other applications are rejected.
func (t *TokenVerifier) VerifyToken(ctx context.Context, raw string) (*models.JWTClaims, error) {
	return t.verify(ctx, raw)
}

// VerifyIDToken verifies an ID token returned by the code exchange
func (t *TokenVerifier) VerifyIDToken(ctx context.Context, raw string) (*models.JWTClaims, error) {
	return t.verify(ctx, raw)
}

func (t *TokenVerifier) verify(ctx context.Context, raw string) (*models.JWTClaims, error) {
	config, err := t.provider.GetConfig(ctx, t.providerName)
	if err != nil {
		return nil, err
	}
	endpoints := t.provider.Endpoints(ctx, config)
	return NewVerifier(t.jwksManager, config.Issuer, config.ClientID).Verify(ctx, raw, endpoints.JWKSURI)
}

// EnsureUser returns the user for the verified claims, creating it on first
// sight and refreshing email, name and verification state when they change.
func EnsureUser(ctx context.Context, users database.UserRepositoryInterface, claims *models.JWTClaims) (*models.User, error) {
	if claims.Sub == "" {
		return nil, ErrMissingSubject
	}

	existing, err := users.GetByProviderID(ctx, claims.Sub)
	switch {
	case err == nil && !userChanged(existing, claims):
		return existing, nil
	case err != nil && !errors.Is(err, database.ErrNotFound):
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	sub := claims.Sub
	user := &models.User{
		Email:         claims.Email,
		ProviderID:    &sub,
		Name:          models.StringPtr(claims.Name),
		EmailVerified: claims.EmailVerified,
	}
	if existing != nil {
		user.ID = existing.ID
	}
	if err := users.UpsertByProviderID(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}
	return user, nil
}

func userChanged(user *models.User, claims *models.JWTClaims) bool {
	if user.Email != claims.Email || user.EmailVerified != claims.EmailVerified {
		return true
	}
	if claims.Name == "" {
		return false
	}
	return user.Name == nil || *user.Name != claims.Name
}
