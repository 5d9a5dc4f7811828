package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/taskflow-ai/taskflow-api/internal/logger"
)

const healthCheckTimeout = 5 * time.Second

// HealthCheckFunc probes one dependency
type HealthCheckFunc func(ctx context.Context) error

// Pinger is implemented by *database.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

type namedCheck struct {
	name  string
	check HealthCheckFunc
}

// HealthChecker handles health check requests
type HealthChecker struct {
	checks []namedCheck
}

// NewHealthChecker creates a health checker that probes the database in extended mode
func NewHealthChecker(db Pinger) *HealthChecker {
	h := &HealthChecker{}
	if db != nil {
		h.AddCheck("database", db.PingContext)
	}
	return h
}

// AddCheck registers an extra dependency probe reported under name
func (h *HealthChecker) AddCheck(name string, check HealthCheckFunc) {
	h.checks = append(h.checks, namedCheck{name: name, check: check})
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	// Basic mode only reports that the server is running
	if r.URL.Query().Get("mode") != "extended" {
		writeHealth(w, http.StatusOK, response)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	response.Checks = make(map[string]string, len(h.checks))
	for _, c := range h.checks {
		if err := c.check(ctx); err != nil {
			response.Status = "unhealthy"
			response.Checks[c.name] = "unhealthy: " + logger.SanitizeError(err)
			continue
		}
		response.Checks[c.name] = "healthy"
	}

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	writeHealth(w, statusCode, response)
}

func writeHealth(w http.ResponseWriter, status int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}
