package handlers

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/taskflow-ai/taskflow-api/internal/database"
	"github.com/taskflow-ai/taskflow-api/internal/logger"
	"github.com/taskflow-ai/taskflow-api/internal/models"
	"github.com/taskflow-ai/taskflow-api/internal/services/oidc"
	"github.com/taskflow-ai/taskflow-api/internal/services/session"
	"go.uber.org/zap"
)

const (
	// StateCookieName holds the login state until the callback
	StateCookieName = "taskflow_oauth_state"
	stateCookieTTL  = 10 * time.Minute
)

// IdentityProvider starts logins and exchanges authorization codes
type IdentityProvider interface {
	GetLoginConfig(ctx context.Context, providerName, state string) (*oidc.LoginConfig, error)
	ExchangeCode(ctx context.Context, providerName, code string) (string, error)
}

// IDTokenVerifier verifies the ID token returned by the code exchange
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, raw string) (*models.JWTClaims, error)
}

var (
	_ IdentityProvider = (*oidc.Provider)(nil)
	_ IDTokenVerifier  = (*oidc.TokenVerifier)(nil)
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	provider     IdentityProvider
	verifier     IDTokenVerifier
	users        database.UserRepositoryInterface
	sessions     *session.Manager
	providerName string
	secureCookie bool
	logger       *zap.Logger
}

// NewAuthHandler creates a new auth handler. A nil sessions manager disables
// the code exchange callback.
func NewAuthHandler(provider IdentityProvider, verifier IDTokenVerifier, users database.UserRepositoryInterface, sessions *session.Manager, providerName string, secureCookie bool, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		provider:     provider,
		verifier:     verifier,
		users:        users,
		sessions:     sessions,
		providerName: providerName,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// RegisterRoutes registers the public auth routes
// The router should already have the /api/v1/auth prefix
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/oidc/login", h.GetOIDCLogin).Methods("GET")
	r.HandleFunc("/oidc/callback", h.OIDCCallback).Methods("POST")
	r.HandleFunc("/logout", h.Logout).Methods("POST")
}

// RegisterProtectedRoutes registers auth routes that need an authenticated user
func (h *AuthHandler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/me", h.GetMe).Methods("GET")
}

// CallbackRequest carries the authorization code returned by the provider
type CallbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// GetOIDCLogin returns OIDC configuration for frontend
func (h *AuthHandler) GetOIDCLogin(w http.ResponseWriter, r *http.Request) {
	state, err := newState()
	if err != nil {
		respondInternalError(w, r, h.logger, "oidc_state_generation_failed", err)
		return
	}

	loginConfig, err := h.provider.GetLoginConfig(r.Context(), h.providerName, state)
	if err != nil {
		respondInternalError(w, r, h.logger, "oidc_login_config_failed", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/api/v1/auth",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, loginConfig)
}

// OIDCCallback exchanges the authorization code, signs the user in and sets the session cookie
func (h *AuthHandler) OIDCCallback(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Session login is not configured")
		return
	}

	var req CallbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "code is required")
		return
	}
	if !stateMatches(r, req.State) {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Login state mismatch")
		return
	}

	ctx := r.Context()
	idToken, err := h.provider.ExchangeCode(ctx, h.providerName, code)
	if err != nil {
		h.logger.Warn("oidc_code_exchange_failed", zap.String("error", logger.SanitizeError(err)))
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Authorization code could not be exchanged")
		return
	}

	claims, err := h.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		h.logger.Warn("oidc_id_token_rejected", zap.String("error", logger.SanitizeError(err)))
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Invalid ID token")
		return
	}

	user, err := oidc.EnsureUser(ctx, h.users, claims)
	if errors.Is(err, oidc.ErrMissingSubject) {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Invalid ID token")
		return
	}
	if err != nil {
		respondInternalError(w, r, h.logger, "oidc_user_upsert_failed", err)
		return
	}

	token, expires, err := h.sessions.Issue(user.ID, user.Email)
	if err != nil {
		respondInternalError(w, r, h.logger, "session_issue_failed", err)
		return
	}

	h.logger.Info("user_signed_in",
		zap.String("user_id", logger.SanitizeUserID(user.ID.String())),
		zap.String("email", logger.MaskEmail(user.Email)),
	)
	http.SetCookie(w, h.sessions.Cookie(token, expires))
	http.SetCookie(w, expiredStateCookie(h.secureCookie))
	respondJSON(w, http.StatusOK, user)
}

// Logout clears the session cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.sessions != nil {
		http.SetCookie(w, h.sessions.ClearCookie())
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

// GetMe returns current user information
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// stateMatches checks the submitted state against the login cookie.
// Without a state cookie there is nothing to compare and the check passes.
func stateMatches(r *http.Request, state string) bool {
	cookie, err := r.Cookie(StateCookieName)
	if err != nil || cookie.Value == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) == 1
}

func expiredStateCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/api/v1/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func newState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
