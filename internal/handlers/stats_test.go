package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskflow-ai/taskflow-api/internal/models"
	"github.com/taskflow-ai/taskflow-api/internal/request"
	"github.com/taskflow-ai/taskflow-api/internal/services/stats"
	"github.com/taskflow-ai/taskflow-api/internal/testutil"
)

type failingStats struct{}

func (failingStats) Stats(context.Context, uuid.UUID) (*models.DashboardStats, error) {
	return nil, errors.New("failed to count total todos: pq: timeout")
}

func serveStats(service StatsService, user *models.User) *httptest.ResponseRecorder {
	r := mux.NewRouter()
	NewStatsHandler(service, nil).RegisterRoutes(r.PathPrefix("/api/v1/dashboard").Subrouter())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/stats", nil)
	if user != nil {
		req = req.WithContext(request.WithUser(req.Context(), user))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStatsHandler_GetStats(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)
	at := func(day, hour int) time.Time { return time.Date(2025, 3, day, hour, 0, 0, 0, time.UTC) }

	user := &models.User{ID: uuid.New()}
	store := testutil.NewTodoStore()
	for _, td := range []struct {
		created, updated time.Time
		completed        bool
	}{
		{created: at(12, 9), updated: at(12, 9)},
		{created: at(12, 10), updated: at(12, 11), completed: true},
		{created: at(11, 12), updated: at(11, 13), completed: true},
		{created: at(1, 8), updated: at(2, 8), completed: true},
	} {
		store.Put(&models.Todo{
			ID:        uuid.New(),
			Title:     "t",
			Completed: td.completed,
			UserID:    user.ID,
			CreatedAt: td.created,
			UpdatedAt: td.updated,
		})
	}
	store.Put(&models.Todo{ID: uuid.New(), Title: "other user", UserID: uuid.New(), CreatedAt: at(12, 8), UpdatedAt: at(12, 8)})

	service := stats.NewService(store, time.UTC, nil)
	service.SetClock(func() time.Time { return now })

	w := serveStats(service, user)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{
		"totalTasks": 4,
		"completedTasks": 3,
		"activeTasks": 1,
		"completionRate": 75,
		"productivityChange": 100,
		"tasksChange": 1,
		"thisWeekCompleted": 2
	}`, w.Body.String())
}

func TestStatsHandler_Errors(t *testing.T) {
	t.Parallel()

	w := serveStats(failingStats{}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serveStats(failingStats{}, &models.User{ID: uuid.New()})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
}
