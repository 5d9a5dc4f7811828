package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/taskflow-ai/taskflow-api/internal/database"
	logpkg "github.com/taskflow-ai/taskflow-api/internal/logger"
	"github.com/taskflow-ai/taskflow-api/internal/models"
	"github.com/taskflow-ai/taskflow-api/internal/request"
	"github.com/taskflow-ai/taskflow-api/internal/services/oidc"
	"github.com/taskflow-ai/taskflow-api/internal/services/session"
	"go.uber.org/zap"
)

var (
	// ErrNoSession means the request carries no credentials at all
	ErrNoSession = errors.New("no session")
	// ErrInvalidCredentials means the request carries credentials that failed verification
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// SessionResolver maps a request to the authenticated user
type SessionResolver interface {
	ResolveSession(r *http.Request) (*models.User, error)
}

// TokenVerifier verifies an identity provider bearer token
type TokenVerifier interface {
	VerifyToken(ctx context.Context, raw string) (*models.JWTClaims, error)
}

// Authenticator resolves a session from an Authorization bearer token or,
// failing that, from the first-party session cookie
type Authenticator struct {
	users    database.UserRepositoryInterface
	tokens   TokenVerifier
	sessions *session.Manager
	logger   *zap.Logger
}

// NewAuthenticator creates an Authenticator. tokens or sessions may be nil to
// disable that source.
func NewAuthenticator(users database.UserRepositoryInterface, tokens TokenVerifier, sessions *session.Manager, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{users: users, tokens: tokens, sessions: sessions, logger: logger}
}

// ResolveSession implements SessionResolver
func (a *Authenticator) ResolveSession(r *http.Request) (*models.User, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		return a.fromBearer(r.Context(), header)
	}
	if a.sessions != nil {
		return a.fromCookie(r)
	}
	return nil, ErrNoSession
}

func (a *Authenticator) fromBearer(ctx context.Context, header string) (*models.User, error) {
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return nil, fmt.Errorf("%w: malformed Authorization header", ErrInvalidCredentials)
	}
	if a.tokens == nil {
		return nil, fmt.Errorf("%w: bearer tokens are not accepted", ErrInvalidCredentials)
	}

	claims, err := a.tokens.VerifyToken(ctx, token)
	if err != nil {
		a.logger.Debug("token_verification_failed", zap.String("error", logpkg.SanitizeError(err)))
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	user, err := oidc.EnsureUser(ctx, a.users, claims)
	if err != nil {
		if errors.Is(err, oidc.ErrMissingSubject) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return nil, err
	}
	return user, nil
}

func (a *Authenticator) fromCookie(r *http.Request) (*models.User, error) {
	userID, err := a.sessions.FromRequest(r)
	if errors.Is(err, session.ErrNoSession) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	user, err := a.users.GetByID(r.Context(), userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: session user no longer exists", ErrInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}
	return user, nil
}

// Auth rejects requests without a resolvable session and attaches the user to the context
func Auth(resolver SessionResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolver.ResolveSession(r)
			switch {
			case errors.Is(err, ErrNoSession):
				WriteError(w, r, http.StatusUnauthorized, "Unauthorized", "Authentication required")
				return
			case errors.Is(err, ErrInvalidCredentials):
				WriteError(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or expired credentials")
				return
			case err != nil:
				logger.Error("session_resolution_failed",
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("error", logpkg.SanitizeError(err)),
				)
				WriteError(w, r, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred")
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithUser(r.Context(), user)))
		})
	}
}

// UserFromContext extracts the user from the request context
func UserFromContext(r *http.Request) *models.User {
	return request.UserFromContext(r)
}
