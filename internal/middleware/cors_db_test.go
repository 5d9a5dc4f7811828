package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/taskflow-ai/taskflow-api/internal/models"
)

type fakeCorsSource struct {
	mu  sync.Mutex
	cfg *models.CorsConfig
	err error
}

func (s *fakeCorsSource) Get(context.Context) (*models.CorsConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.err
}

func (s *fakeCorsSource) set(cfg *models.CorsConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

func preflight(h http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/todos", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCORSReloader(t *testing.T) {
	t.Parallel()

	source := &fakeCorsSource{}
	reloader := NewCORSReloader(source, "https://app.example.com", nil, 0)
	h := reloader.Middleware()(okHandler)

	if got := preflight(h, "https://app.example.com").Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("fallback origin not allowed, got %q", got)
	}
	if got := preflight(h, "https://evil.example.com").Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}

	source.set(&models.CorsConfig{AllowedOrigins: "https://new.example.com", AllowCredentials: true, MaxAge: 600})
	reloader.load(context.Background())

	w := preflight(h, "https://new.example.com")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://new.example.com" {
		t.Errorf("reloaded origin not allowed, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Max-Age"); got != "600" {
		t.Errorf("Access-Control-Max-Age = %q, want 600", got)
	}
	if got := preflight(h, "https://app.example.com").Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("old origin still allowed after reload: %q", got)
	}
	if origins := reloader.Origins(); len(origins) != 1 || origins[0] != "https://new.example.com" {
		t.Errorf("Origins() = %v", origins)
	}
}

func TestCORSReloader_SourceErrorUsesFallback(t *testing.T) {
	t.Parallel()

	source := &fakeCorsSource{err: errors.New("db down")}
	reloader := NewCORSReloader(source, "", nil, 0)
	h := reloader.Middleware()(okHandler)

	if got := preflight(h, "http://localhost:3000").Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("default origin not allowed, got %q", got)
	}
}

func TestCORSReloader_SimpleRequestPassesThrough(t *testing.T) {
	t.Parallel()

	reloader := NewCORSReloader(&fakeCorsSource{}, "https://app.example.com", nil, 0)
	h := reloader.Middleware()(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/todos", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want true", got)
	}
}
