package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/taskflow-ai/taskflow-api/internal/database"
	"github.com/taskflow-ai/taskflow-api/internal/models"
	"golang.org/x/oauth2"
)

const discoveryTTL = time.Hour

// Endpoints are the provider URLs used for login, code exchange and token verification
type Endpoints struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

type discoveryEntry struct {
	endpoints *Endpoints
	expires   time.Time
}

// Provider manages OIDC provider configuration and discovery
type Provider struct {
	repo       database.OIDCConfigRepositoryInterface
	httpClient *http.Client

	mu        sync.RWMutex
	discovery map[string]discoveryEntry
}

// NewProvider creates a new OIDC provider manager. A nil httpClient uses a 5s timeout client.
func NewProvider(repo database.OIDCConfigRepositoryInterface, httpClient *http.Client) *Provider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Provider{
		repo:       repo,
		httpClient: httpClient,
		discovery:  make(map[string]discoveryEntry),
	}
}

// GetConfig retrieves OIDC configuration for a provider
func (p *Provider) GetConfig(ctx context.Context, providerName string) (*models.OIDCConfig, error) {
	config, err := p.repo.GetByProvider(ctx, providerName)
	if err != nil {
		return nil, fmt.Errorf("failed to get OIDC config: %w", err)
	}
	return config, nil
}

// Endpoints resolves the provider endpoints from the discovery document, falling
// back to issuer-derived URLs when discovery is unavailable. A configured JWKS URL
// and a hosted login domain take precedence.
func (p *Provider) Endpoints(ctx context.Context, config *models.OIDCConfig) *Endpoints {
	fallback := fallbackEndpoints(config)

	discovered, err := p.discover(ctx, config.Issuer)
	if err != nil {
		return fallback
	}

	endpoints := *discovered
	if endpoints.AuthorizationEndpoint == "" || hasHostedDomain(config) {
		endpoints.AuthorizationEndpoint = fallback.AuthorizationEndpoint
	}
	if endpoints.TokenEndpoint == "" || hasHostedDomain(config) {
		endpoints.TokenEndpoint = fallback.TokenEndpoint
	}
	if config.JWKSUrl != nil && *config.JWKSUrl != "" {
		endpoints.JWKSURI = *config.JWKSUrl
	} else if endpoints.JWKSURI == "" {
		endpoints.JWKSURI = fallback.JWKSURI
	}
	endpoints.Issuer = config.Issuer
	return &endpoints
}

func (p *Provider) discover(ctx context.Context, issuer string) (*Endpoints, error) {
	p.mu.RLock()
	entry, ok := p.discovery[issuer]
	p.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.endpoints, nil
	}

	discoveryURL := strings.TrimSuffix(issuer, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discovery document: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode)
	}

	var endpoints Endpoints
	if err := json.NewDecoder(resp.Body).Decode(&endpoints); err != nil {
		return nil, fmt.Errorf("failed to decode discovery document: %w", err)
	}

	p.mu.Lock()
	p.discovery[issuer] = discoveryEntry{endpoints: &endpoints, expires: time.Now().Add(discoveryTTL)}
	p.mu.Unlock()
	return &endpoints, nil
}

// hasHostedDomain reports whether login must go through a hosted domain (Cognito)
func hasHostedDomain(config *models.OIDCConfig) bool {
	return config.Domain != nil && *config.Domain != "" && strings.Contains(config.Issuer, "cognito-idp.")
}

func fallbackEndpoints(config *models.OIDCConfig) *Endpoints {
	base := strings.TrimSuffix(config.Issuer, "/")
	if hasHostedDomain(config) {
		domain := *config.Domain
		if !strings.HasPrefix(domain, "https://") {
			domain = "https://" + domain
		}
		base = strings.TrimSuffix(domain, "/")
	}

	jwksURI := strings.TrimSuffix(config.Issuer, "/") + "/.well-known/jwks.json"
	if config.JWKSUrl != nil && *config.JWKSUrl != "" {
		jwksURI = *config.JWKSUrl
	}

	return &Endpoints{
		Issuer:                config.Issuer,
		AuthorizationEndpoint: base + "/oauth2/authorize",
		TokenEndpoint:         base + "/oauth2/token",
		JWKSURI:               jwksURI,
	}
}

// LoginConfig contains OIDC login configuration for the frontend
type LoginConfig struct {
	AuthorizationEndpoint string `json:"authorizationEndpoint"`
	TokenEndpoint         string `json:"tokenEndpoint"`
	ClientID              string `json:"clientId"`
	RedirectURI           string `json:"redirectUri"`
	Scope                 string `json:"scope"`
	AuthorizationURL      string `json:"authorizationUrl"`
	State                 string `json:"state"`
}

// GetLoginConfig returns the configuration needed to start a login, including a
// ready-made authorization URL carrying state
func (p *Provider) GetLoginConfig(ctx context.Context, providerName, state string) (*LoginConfig, error) {
	config, err := p.GetConfig(ctx, providerName)
	if err != nil {
		return nil, err
	}

	endpoints := p.Endpoints(ctx, config)
	client := NewClient(config, endpoints)

	return &LoginConfig{
		AuthorizationEndpoint: endpoints.AuthorizationEndpoint,
		TokenEndpoint:         endpoints.TokenEndpoint,
		ClientID:              config.ClientID,
		RedirectURI:           config.RedirectURI,
		Scope:                 strings.Join(Scopes, " "),
		AuthorizationURL:      client.AuthCodeURL(state),
		State:                 state,
	}, nil
}

// ExchangeCode trades an authorization code for the provider's raw ID token
func (p *Provider) ExchangeCode(ctx context.Context, providerName, code string) (string, error) {
	config, err := p.GetConfig(ctx, providerName)
	if err != nil {
		return "", err
	}
	endpoints := p.Endpoints(ctx, config)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	return NewClient(config, endpoints).ExchangeCode(ctx, code)
}
