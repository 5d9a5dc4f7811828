package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	logpkg "github.com/taskflow-ai/taskflow-api/internal/logger"
	"github.com/taskflow-ai/taskflow-api/internal/models"
	"github.com/taskflow-ai/taskflow-api/internal/request"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"go.uber.org/zap"
)

const defaultRatelimitRate = "5-S"

// RatelimitConfigSource provides stored rate limit scopes; (nil, nil) means none stored
type RatelimitConfigSource interface {
	Get(ctx context.Context, key string) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// RateLimitReloader wraps ulule/limiter and periodically reloads the rate of
// one configuration scope. Authenticated requests are limited per user, others per client IP.
type RateLimitReloader struct {
	store       limiter.Store
	source      RatelimitConfigSource
	configKey   string
	defaultRate string
	log         *zap.Logger
	interval    time.Duration
	initial     sync.Once

	mu      sync.RWMutex
	current *limiter.Limiter
	rate    string
}

// NewRateLimitReloader creates a rate limit middleware for configKey that loads
// its rate from source and hot-reloads it. The store is shared across reloads.
func NewRateLimitReloader(store limiter.Store, source RatelimitConfigSource, configKey, defaultRate string, log *zap.Logger, reloadInterval time.Duration) *RateLimitReloader {
	if defaultRate == "" {
		defaultRate = defaultRatelimitRate
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimitReloader{
		store:       store,
		source:      source,
		configKey:   configKey,
		defaultRate: defaultRate,
		log:         log,
		interval:    reloadInterval,
	}
}

// Middleware returns a middleware enforcing the rate current at request time.
// The first call loads the stored rate.
func (r *RateLimitReloader) Middleware() func(http.Handler) http.Handler {
	r.initial.Do(func() { r.load(context.Background()) })
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			r.mu.RLock()
			instance := r.current
			r.mu.RUnlock()
			if instance == nil {
				next.ServeHTTP(w, req)
				return
			}
			stdlibmw.NewMiddleware(instance,
				stdlibmw.WithKeyGetter(r.key),
				stdlibmw.WithLimitReachedHandler(limitReached),
				stdlibmw.WithErrorHandler(r.storeFailed(next)),
			).Handler(next).ServeHTTP(w, req)
		})
	}
}

// Start runs the reload loop until ctx is cancelled.
func (r *RateLimitReloader) Start(ctx context.Context) {
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

// Rate returns the formatted rate currently enforced
func (r *RateLimitReloader) Rate() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rate
}

// currentRate reads the stored rate, seeding the default when the scope has none
func (r *RateLimitReloader) currentRate(ctx context.Context) string {
	cfg, err := r.source.Get(ctx, r.configKey)
	if err != nil {
		r.log.Warn("failed_to_load_ratelimit_config_from_db_using_default",
			zap.String("config_key", r.configKey),
			zap.String("default_rate", r.defaultRate),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		return r.defaultRate
	}
	if cfg != nil && cfg.Rate != "" {
		return cfg.Rate
	}
	if err := r.source.Set(ctx, &models.RatelimitConfig{ConfigKey: r.configKey, Rate: r.defaultRate}); err != nil {
		r.log.Error("failed_to_save_default_ratelimit_config",
			zap.String("config_key", r.configKey),
			zap.String("error", logpkg.SanitizeError(err)),
		)
	}
	return r.defaultRate
}

func (r *RateLimitReloader) load(ctx context.Context) {
	rateStr := r.currentRate(ctx)
	if rateStr == r.Rate() {
		return
	}

	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r.log.Error("failed_to_parse_rate_limit_using_default",
			zap.String("rate_str", rateStr),
			zap.String("default_rate", r.defaultRate),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		rateStr = r.defaultRate
		if rate, err = limiter.NewRateFromFormatted(rateStr); err != nil {
			r.log.Error("failed_to_parse_default_rate_limit", zap.String("default_rate", r.defaultRate))
			return
		}
	}

	instance := limiter.New(r.store, rate)

	r.mu.Lock()
	r.current = instance
	r.rate = rateStr
	r.mu.Unlock()

	r.log.Info("ratelimit_config_loaded", zap.String("config_key", r.configKey), zap.String("rate", rateStr))
}

func (r *RateLimitReloader) key(req *http.Request) string {
	if user := request.UserFromContext(req); user != nil {
		return r.configKey + ":user:" + user.ID.String()
	}
	return r.configKey + ":ip:" + request.ClientIP(req)
}

func limitReached(w http.ResponseWriter, r *http.Request) {
	if reset, err := strconv.ParseInt(w.Header().Get("X-RateLimit-Reset"), 10, 64); err == nil {
		if wait := time.Until(time.Unix(reset, 0)); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
		}
	}
	WriteError(w, r, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded, please retry later")
}

// storeFailed lets the request through when the limiter store is unavailable
func (r *RateLimitReloader) storeFailed(next http.Handler) stdlibmw.ErrorHandler {
	return func(w http.ResponseWriter, req *http.Request, err error) {
		r.log.Warn("ratelimit_store_unavailable_allowing_request", zap.String("error", logpkg.SanitizeError(err)))
		next.ServeHTTP(w, req)
	}
}
