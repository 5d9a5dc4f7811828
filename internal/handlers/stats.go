package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/taskflow-ai/taskflow-api/internal/models"
	"go.uber.org/zap"
)

// StatsService computes dashboard statistics for a user
type StatsService interface {
	Stats(ctx context.Context, userID uuid.UUID) (*models.DashboardStats, error)
}

// StatsHandler serves dashboard statistics
type StatsHandler struct {
	service StatsService
	logger  *zap.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(service StatsService, logger *zap.Logger) *StatsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsHandler{service: service, logger: logger}
}

// RegisterRoutes registers dashboard routes
// The router should already have the /dashboard prefix
func (h *StatsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/stats", h.GetStats).Methods("GET")
}

// GetStats returns the dashboard statistics of the authenticated user
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	stats, err := h.service.Stats(r.Context(), user.ID)
	if err != nil {
		respondInternalError(w, r, h.logger, "dashboard_stats_failed", err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}
