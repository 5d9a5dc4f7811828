package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/taskflow-ai/taskflow-api/internal/models"
)

// ErrMissingSubject is returned for tokens without a sub claim
var ErrMissingSubject = errors.New("token missing subject claim")

// Verifier verifies provider-issued JWTs
type Verifier struct {
	jwksManager *JWKSManager
	issuer      string
	audience    string
}

// NewVerifier creates a new JWT verifier. An empty audience disables the aud check.
func NewVerifier(jwksManager *JWKSManager, issuer, audience string) *Verifier {
	return &Verifier{
		jwksManager: jwksManager,
		issuer:      issuer,
		audience:    audience,
	}
}

// Verify verifies a JWT against the key set at jwksURL and extracts its claims.
// On a signature failure the key set is refetched once to pick up rotated keys.
func (v *Verifier) Verify(ctx context.Context, tokenString, jwksURL string) (*models.JWTClaims, error) {
	token, err := v.parse(ctx, tokenString, jwksURL)
	if err != nil && !jwt.IsValidationError(err) {
		v.jwksManager.Invalidate(jwksURL)
		token, err = v.parse(ctx, tokenString, jwksURL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}

	if token.Subject() == "" {
		return nil, ErrMissingSubject
	}

	claims := &models.JWTClaims{
		Sub: token.Subject(),
		Iss: token.Issuer(),
		Exp: token.Expiration().Unix(),
		Iat: token.IssuedAt().Unix(),
	}
	if aud := token.Audience(); len(aud) > 0 {
		claims.Aud = aud[0]
	}

	private := token.PrivateClaims()
	if email, ok := private["email"].(string); ok {
		claims.Email = email
	}
	if name, ok := private["name"].(string); ok {
		claims.Name = name
	}
	switch verified := private["email_verified"].(type) {
	case bool:
		claims.EmailVerified = verified
	case string:
		claims.EmailVerified = verified == "true"
	}

	return claims, nil
}

func (v *Verifier) parse(ctx context.Context, tokenString, jwksURL string) (jwt.Token, error) {
	keys, err := v.jwksManager.GetJWKS(ctx, jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	opts := []jwt.ParseOption{
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	return jwt.Parse([]byte(tokenString), opts...)
}
