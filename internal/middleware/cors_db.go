package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/cors"
	logpkg "github.com/taskflow-ai/taskflow-api/internal/logger"
	"github.com/taskflow-ai/taskflow-api/internal/models"
	"github.com/taskflow-ai/taskflow-api/internal/request"
	"go.uber.org/zap"
)

const defaultCORSMaxAge = 86400

// CorsConfigSource provides the stored CORS configuration; (nil, nil) means none stored
type CorsConfigSource interface {
	Get(ctx context.Context) (*models.CorsConfig, error)
}

// CORSReloader wraps rs/cors and periodically reloads CORS config from the database.
// Until a config is stored, the frontend URL fallback is the only allowed origin.
type CORSReloader struct {
	source   CorsConfigSource
	fallback string
	log      *zap.Logger
	interval time.Duration
	initial  sync.Once

	mu      sync.RWMutex
	current *cors.Cors
	origins []string
}

// NewCORSReloader creates a CORS middleware that loads config from source and hot-reloads it.
func NewCORSReloader(source CorsConfigSource, frontendURLFallback string, log *zap.Logger, reloadInterval time.Duration) *CORSReloader {
	if log == nil {
		log = zap.NewNop()
	}
	return &CORSReloader{
		source:   source,
		fallback: strings.TrimSpace(frontendURLFallback),
		log:      log,
		interval: reloadInterval,
	}
}

// Middleware returns a middleware applying the CORS policy current at request time.
// The first call loads the stored config.
func (r *CORSReloader) Middleware() func(http.Handler) http.Handler {
	r.initial.Do(func() { r.load(context.Background()) })
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			r.mu.RLock()
			c := r.current
			r.mu.RUnlock()
			c.Handler(next).ServeHTTP(w, req)
		})
	}
}

// Start runs the reload loop until ctx is cancelled.
func (r *CORSReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.load(ctx)
		}
	}
}

// Origins returns the currently allowed origins
func (r *CORSReloader) Origins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.origins...)
}

func (r *CORSReloader) load(ctx context.Context) {
	origins := models.SplitOrigins(r.fallback)
	allowCreds := true
	maxAge := defaultCORSMaxAge

	cfg, err := r.source.Get(ctx)
	switch {
	case err != nil:
		r.log.Warn("failed_to_load_cors_config_using_fallback", zap.String("error", logpkg.SanitizeError(err)))
	case cfg != nil:
		origins = cfg.Origins()
		allowCreds = cfg.AllowCredentials
		maxAge = cfg.MaxAge
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: allowCreds,
		MaxAge:           maxAge,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", request.RequestIDHeader},
		ExposedHeaders:   []string{request.RequestIDHeader, "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
	})

	r.mu.Lock()
	r.current = c
	r.origins = origins
	r.mu.Unlock()
}
