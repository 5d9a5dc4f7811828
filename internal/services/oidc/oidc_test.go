package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/taskflow-ai/taskflow-api/internal/database"
	"github.com/taskflow-ai/taskflow-api/internal/models"
	"github.com/taskflow-ai/taskflow-api/internal/testutil"
)

// fakeIdP serves a discovery document and a JWKS endpoint
type fakeIdP struct {
	server     *httptest.Server
	key        jwk.Key
	jwksHits   atomic.Int32
	noDiscover atomic.Bool
	idToken    string
}

func newSigningKey(t *testing.T, kid string) (jwk.Key, jwk.Key) {
	t.Helper()
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	key, err := jwk.FromRaw(raw)
	if err != nil {
		t.Fatalf("failed to wrap key: %v", err)
	}
	pub, err := key.PublicKey()
	if err != nil {
		t.Fatalf("failed to derive public key: %v", err)
	}
	for _, k := range []jwk.Key{key, pub} {
		if err := k.Set(jwk.KeyIDKey, kid); err != nil {
			t.Fatal(err)
		}
		if err := k.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
			t.Fatal(err)
		}
	}
	return key, pub
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()
	idp := &fakeIdP{}
	key, pub := newSigningKey(t, "test-key")
	idp.key = key

	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		t.Fatal(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		if idp.noDiscover.Load() {
			http.NotFound(w, r)
			return
		}
		base := "http://" + r.Host
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":                 base,
			"authorization_endpoint": base + "/authorize",
			"token_endpoint":         base + "/token",
			"jwks_uri":               base + "/keys",
		})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, _ *http.Request) {
		idp.jwksHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		resp := map[string]any{"access_token": "at", "token_type": "Bearer", "expires_in": 3600}
		if idp.idToken != "" {
			resp["id_token"] = idp.idToken
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	idp.server = httptest.NewServer(mux)
	t.Cleanup(idp.server.Close)
	return idp
}

func (idp *fakeIdP) sign(t *testing.T, key jwk.Key, mutate func(jwt.Token)) string {
	t.Helper()
	tok := jwt.New()
	now := time.Now()
	claims := map[string]any{
		jwt.IssuerKey:     idp.server.URL,
		jwt.SubjectKey:    "user-123",
		jwt.AudienceKey:   "client-abc",
		jwt.IssuedAtKey:   now,
		jwt.ExpirationKey: now.Add(time.Hour),
		"email":           "ada@example.com",
		"name":            "Ada Lovelace",
		"email_verified":  true,
	}
	for k, v := range claims {
		if err := tok.Set(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if mutate != nil {
		mutate(tok)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, key))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return string(signed)
}

type configRepo struct {
	configs map[string]*models.OIDCConfig
}

func (r *configRepo) GetByProvider(_ context.Context, provider string) (*models.OIDCConfig, error) {
	c, ok := r.configs[provider]
	if !ok {
		return nil, database.ErrNotFound
	}
	return c, nil
}

func newProviderFor(idp *fakeIdP) (*Provider, *models.OIDCConfig) {
	config := &models.OIDCConfig{
		Provider:    "test",
		Issuer:      idp.server.URL,
		ClientID:    "client-abc",
		RedirectURI: "http://localhost:3000/auth/callback",
	}
	repo := &configRepo{configs: map[string]*models.OIDCConfig{"test": config}}
	return NewProvider(repo, idp.server.Client()), config
}

func TestTokenVerifier(t *testing.T) {
	t.Parallel()

	idp := newFakeIdP(t)
	provider, _ := newProviderFor(idp)
	otherKey, _ := newSigningKey(t, "other-key")

	tests := []struct {
		name      string
		token     func() string
		idToken   bool
		wantErr   bool
		wantEmail string
	}{
		{
			name:      "valid token",
			token:     func() string { return idp.sign(t, idp.key, nil) },
			wantEmail: "ada@example.com",
		},
		{
			name:      "valid id token",
			token:     func() string { return idp.sign(t, idp.key, nil) },
			idToken:   true,
			wantEmail: "ada@example.com",
		},
		{
			name: "wrong issuer",
			token: func() string {
				return idp.sign(t, idp.key, func(tok jwt.Token) { _ = tok.Set(jwt.IssuerKey, "https://evil.example.com") })
			},
			wantErr: true,
		},
		{
			name: "expired",
			token: func() string {
				return idp.sign(t, idp.key, func(tok jwt.Token) {
					_ = tok.Set(jwt.IssuedAtKey, time.Now().Add(-2*time.Hour))
					_ = tok.Set(jwt.ExpirationKey, time.Now().Add(-time.Hour))
				})
			},
			wantErr: true,
		},
		{
			name: "id token for another client",
			token: func() string {
				return idp.sign(t, idp.key, func(tok jwt.Token) { _ = tok.Set(jwt.AudienceKey, "someone-else") })
			},
			idToken: true,
			wantErr: true,
		},
		{
			name: "bearer token for another client",
			token: func() string {
				return idp.sign(t, idp.key, func(tok jwt.Token) { _ = tok.Set(jwt.AudienceKey, "some-other-app") })
			},
			wantErr: true,
		},
		{
			name: "bearer token without audience",
			token: func() string {
				return idp.sign(t, idp.key, func(tok jwt.Token) { _ = tok.Remove(jwt.AudienceKey) })
			},
			wantErr: true,
		},
		{
			name:    "unknown signing key",
			token:   func() string { return idp.sign(t, otherKey, nil) },
			wantErr: true,
		},
		{
			name:    "garbage",
			token:   func() string { return "not-a-jwt" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := NewTokenVerifier(provider, NewJWKSManager(idp.server.Client()), "test")
			verify := verifier.VerifyToken
			if tt.idToken {
				verify = verifier.VerifyIDToken
			}

			claims, err := verify(context.Background(), tt.token())
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got claims %+v", claims)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if claims.Sub != "user-123" || claims.Email != tt.wantEmail || claims.Name != "Ada Lovelace" {
				t.Errorf("claims = %+v", claims)
			}
			if !claims.EmailVerified {
				t.Error("EmailVerified = false, want true")
			}
			if claims.Iss != idp.server.URL {
				t.Errorf("Iss = %q, want %q", claims.Iss, idp.server.URL)
			}
		})
	}
}

func TestJWKSManager_CachesAndRefetchesOnUnknownKey(t *testing.T) {
	t.Parallel()

	idp := newFakeIdP(t)
	jwks := NewJWKSManager(idp.server.Client())
	verifier := NewVerifier(jwks, idp.server.URL, "")
	jwksURL := idp.server.URL + "/keys"

	for i := 0; i < 3; i++ {
		if _, err := verifier.Verify(context.Background(), idp.sign(t, idp.key, nil), jwksURL); err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
	}
	if got := idp.jwksHits.Load(); got != 1 {
		t.Errorf("JWKS fetched %d times for a cached key, want 1", got)
	}

	otherKey, _ := newSigningKey(t, "rotated")
	if _, err := verifier.Verify(context.Background(), idp.sign(t, otherKey, nil), jwksURL); err == nil {
		t.Fatal("expected error for unknown key")
	}
	if got := idp.jwksHits.Load(); got != 2 {
		t.Errorf("JWKS fetched %d times after unknown key, want 2", got)
	}
}

func TestProvider_Endpoints(t *testing.T) {
	t.Parallel()

	t.Run("from discovery", func(t *testing.T) {
		t.Parallel()
		idp := newFakeIdP(t)
		provider, config := newProviderFor(idp)

		got := provider.Endpoints(context.Background(), config)
		if got.AuthorizationEndpoint != idp.server.URL+"/authorize" {
			t.Errorf("AuthorizationEndpoint = %q", got.AuthorizationEndpoint)
		}
		if got.JWKSURI != idp.server.URL+"/keys" {
			t.Errorf("JWKSURI = %q", got.JWKSURI)
		}
	})

	t.Run("fallback without discovery", func(t *testing.T) {
		t.Parallel()
		idp := newFakeIdP(t)
		idp.noDiscover.Store(true)
		provider, config := newProviderFor(idp)

		got := provider.Endpoints(context.Background(), config)
		if got.AuthorizationEndpoint != idp.server.URL+"/oauth2/authorize" {
			t.Errorf("AuthorizationEndpoint = %q", got.AuthorizationEndpoint)
		}
		if got.TokenEndpoint != idp.server.URL+"/oauth2/token" {
			t.Errorf("TokenEndpoint = %q", got.TokenEndpoint)
		}
		if got.JWKSURI != idp.server.URL+"/.well-known/jwks.json" {
			t.Errorf("JWKSURI = %q", got.JWKSURI)
		}
	})

	t.Run("configured jwks url and hosted domain win", func(t *testing.T) {
		t.Parallel()
		config := &models.OIDCConfig{
			Issuer:  "https://cognito-idp.us-east-1.amazonaws.com/pool",
			Domain:  stringPtr("login.example.com"),
			JWKSUrl: stringPtr("https://keys.example.com/jwks"),
		}
		got := fallbackEndpoints(config)
		if got.AuthorizationEndpoint != "https://login.example.com/oauth2/authorize" {
			t.Errorf("AuthorizationEndpoint = %q", got.AuthorizationEndpoint)
		}
		if got.JWKSURI != "https://keys.example.com/jwks" {
			t.Errorf("JWKSURI = %q", got.JWKSURI)
		}
	})
}

func TestProvider_GetLoginConfig(t *testing.T) {
	t.Parallel()

	idp := newFakeIdP(t)
	provider, _ := newProviderFor(idp)

	login, err := provider.GetLoginConfig(context.Background(), "test", "state-xyz")
	if err != nil {
		t.Fatalf("GetLoginConfig() error = %v", err)
	}
	if login.ClientID != "client-abc" || login.State != "state-xyz" || login.Scope != "openid email profile" {
		t.Errorf("login config = %+v", login)
	}
	if !strings.HasPrefix(login.AuthorizationURL, idp.server.URL+"/authorize?") {
		t.Errorf("AuthorizationURL = %q", login.AuthorizationURL)
	}
	if !strings.Contains(login.AuthorizationURL, "state=state-xyz") {
		t.Errorf("AuthorizationURL %q lacks state", login.AuthorizationURL)
	}

	if _, err := provider.GetLoginConfig(context.Background(), "missing", "s"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("GetLoginConfig(missing) error = %v, want ErrNotFound", err)
	}
}

func TestEnsureUser(t *testing.T) {
	t.Parallel()

	users := testutil.NewUserStore()
	ctx := context.Background()
	claims := &models.JWTClaims{Sub: "sub-1", Email: "ada@example.com", Name: "Ada", EmailVerified: true}

	first, err := EnsureUser(ctx, users, claims)
	if err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	if first.Email != "ada@example.com" || first.Name == nil || *first.Name != "Ada" {
		t.Errorf("created user = %+v", first)
	}

	again, err := EnsureUser(ctx, users, claims)
	if err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("second lookup returned %v, want %v", again.ID, first.ID)
	}

	changed := *claims
	changed.Email = "ada@newmail.example"
	updated, err := EnsureUser(ctx, users, &changed)
	if err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	if updated.ID != first.ID || updated.Email != "ada@newmail.example" {
		t.Errorf("updated user = %+v", updated)
	}

	if _, err := EnsureUser(ctx, users, &models.JWTClaims{}); !errors.Is(err, ErrMissingSubject) {
		t.Errorf("EnsureUser(no sub) error = %v, want ErrMissingSubject", err)
	}
}

func TestProvider_ExchangeCode(t *testing.T) {
	t.Parallel()

	idp := newFakeIdP(t)
	idp.idToken = idp.sign(t, idp.key, nil)
	provider, _ := newProviderFor(idp)
	ctx := context.Background()

	raw, err := provider.ExchangeCode(ctx, "test", "good-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if raw != idp.idToken {
		t.Errorf("ExchangeCode() returned a different token")
	}

	if _, err := provider.ExchangeCode(ctx, "test", "bad-code"); err == nil {
		t.Error("ExchangeCode(bad-code) error = nil, want error")
	}
	if _, err := provider.ExchangeCode(ctx, "missing", "good-code"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("ExchangeCode(unknown provider) error = %v, want ErrNotFound", err)
	}
}

func TestProvider_ExchangeCodeWithoutIDToken(t *testing.T) {
	t.Parallel()

	idp := newFakeIdP(t)
	provider, _ := newProviderFor(idp)

	if _, err := provider.ExchangeCode(context.Background(), "test", "good-code"); !errors.Is(err, ErrMissingIDToken) {
		t.Errorf("ExchangeCode() error = %v, want ErrMissingIDToken", err)
	}
}
