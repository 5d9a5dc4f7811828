package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskflow-ai/taskflow-api/internal/database"
	"github.com/taskflow-ai/taskflow-api/internal/logger"
	"github.com/taskflow-ai/taskflow-api/internal/models"
	"github.com/taskflow-ai/taskflow-api/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Counter is the slice of the todo repository the aggregator needs
type Counter interface {
	Count(ctx context.Context, userID uuid.UUID, filter database.CountFilter) (int, error)
}

// Service aggregates dashboard statistics
type Service struct {
	counter Counter
	loc     *time.Location
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a statistics service computing calendar days in loc (nil means local time)
func NewService(counter Counter, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{counter: counter, loc: loc, logger: log, now: time.Now}
}

// SetClock replaces time.Now; used by tests
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Stats computes the dashboard statistics for userID at the current time
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*models.DashboardStats, error) {
	return s.StatsAt(ctx, userID, s.now())
}

// StatsAt computes the dashboard statistics for userID as of now
func (s *Service) StatsAt(ctx context.Context, userID uuid.UUID, now time.Time) (result *models.DashboardStats, err error) {
	ctx, span := telemetry.StartSpan(ctx, "stats.Stats", attribute.String("user.id", userID.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	counts, err := s.counts(ctx, userID, NewBoundaries(now, s.loc))
	if err != nil {
		return nil, err
	}

	stats := Compute(counts)
	s.logger.Debug("dashboard_stats_computed",
		zap.String("user_id", logger.SanitizeUserID(userID.String())),
		zap.Int("total_tasks", stats.TotalTasks),
		zap.Int("completion_rate", stats.CompletionRate),
	)
	return &stats, nil
}

func (s *Service) counts(ctx context.Context, userID uuid.UUID, b Boundaries) (Counts, error) {
	var c Counts
	done, open := true, false
	queries := []struct {
		name   string
		dst    *int
		filter database.CountFilter
	}{
		{"total", &c.Total, database.CountFilter{}},
		{"completed", &c.Completed, database.CountFilter{Completed: &done}},
		{"active", &c.Active, database.CountFilter{Completed: &open}},
		{"today", &c.Today, database.CountFilter{CreatedFrom: &b.Today, CreatedBefore: &b.Now}},
		{"yesterday", &c.Yesterday, database.CountFilter{CreatedFrom: &b.Yesterday, CreatedBefore: &b.Today}},
		{"this_week_completed", &c.ThisWeekCompleted, database.CountFilter{Completed: &done, UpdatedFrom: &b.ThisWeekStart, UpdatedBefore: &b.Now}},
		{"last_week_completed", &c.LastWeekCompleted, database.CountFilter{Completed: &done, UpdatedFrom: &b.LastWeekStart, UpdatedBefore: &b.ThisWeekStart}},
	}

	for _, q := range queries {
		n, err := s.counter.Count(ctx, userID, q.filter)
		if err != nil {
			return Counts{}, fmt.Errorf("failed to count %s todos: %w", q.name, err)
		}
		*q.dst = n
	}
	return c, nil
}
