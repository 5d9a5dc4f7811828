package todos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskflow-ai/taskflow-api/internal/database"
	"github.com/taskflow-ai/taskflow-api/internal/events"
	"github.com/taskflow-ai/taskflow-api/internal/logger"
	"github.com/taskflow-ai/taskflow-api/internal/models"
	"github.com/taskflow-ai/taskflow-api/internal/services/ai"
	"github.com/taskflow-ai/taskflow-api/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultCategorizeTimeout bounds the categorization call made while creating a todo
const DefaultCategorizeTimeout = 10 * time.Second

// Service manages the lifecycle of todos on behalf of a single user per call
type Service struct {
	repo              database.TodoRepositoryInterface
	categorizer       ai.Categorizer
	publisher         events.Publisher
	logger            *zap.Logger
	categorizeTimeout time.Duration
	defaultCategory   string
	now               func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithPublisher sets the lifecycle event publisher
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithCategorizeTimeout overrides DefaultCategorizeTimeout
func WithCategorizeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.categorizeTimeout = d
		}
	}
}

// WithDefaultCategory overrides models.DefaultCategory as the create-time
// fallback. The value is lowercased; anything but a single word is ignored.
func WithDefaultCategory(category string) Option {
	return func(s *Service) {
		if normalized, err := normalizeCategory(&category); err == nil && normalized != nil {
			s.defaultCategory = *normalized
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a todo service. categorizer may be nil, in which case new
// todos get the default category and explicit categorization fails.
func NewService(repo database.TodoRepositoryInterface, categorizer ai.Categorizer, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		repo:              repo,
		categorizer:       categorizer,
		publisher:         events.NopPublisher{},
		logger:            log,
		categorizeTimeout: DefaultCategorizeTimeout,
		defaultCategory:   models.DefaultCategory,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the user's todos, newest first
func (s *Service) List(ctx context.Context, userID uuid.UUID) (todos []*models.Todo, err error) {
	ctx, span := telemetry.StartSpan(ctx, "todos.List", attribute.String("user.id", userID.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	todos, err = s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	if todos == nil {
		todos = []*models.Todo{}
	}
	return todos, nil
}

// Get returns one todo owned by the user
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (todo *models.Todo, err error) {
	ctx, span := telemetry.StartSpan(ctx, "todos.Get", attribute.String("todo.id", id.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	return s.get(ctx, userID, id)
}

func (s *Service) get(ctx context.Context, userID, id uuid.UUID) (*models.Todo, error) {
	todo, err := s.repo.GetByIDForUser(ctx, id, userID)
	if err != nil {
		return nil, mapRepoError(err, "failed to get todo")
	}
	return todo, nil
}

// Create validates the input, assigns a category and stores a new todo.
// Categorization problems never fail the call: the default category is used instead.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (todo *models.Todo, err error) {
	ctx, span := telemetry.StartSpan(ctx, "todos.Create", attribute.String("user.id", userID.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	title, err := normalizeTitle(in.Title)
	if err != nil {
		return nil, err
	}
	description, err := normalizeDescription(in.Description)
	if err != nil {
		return nil, err
	}

	category := s.categoryForNewTodo(ctx, userID, title, description)

	now := s.now()
	todo = &models.Todo{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Completed:   false,
		Category:    &category,
		UserID:      userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, todo); err != nil {
		s.logger.Error("todo_create_failed",
			zap.String("user_id", logger.SanitizeUserID(userID.String())),
			zap.String("category", category),
			zap.String("error", logger.SanitizeError(err)),
		)
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}

	s.logger.Info("todo_created",
		zap.String("user_id", logger.SanitizeUserID(userID.String())),
		zap.String("todo_id", todo.ID.String()),
		zap.String("category", category),
	)
	s.publish(ctx, events.NewEvent(events.TypeTodoCreated, userID, todo.ID, todo, now))
	return todo, nil
}

// categoryForNewTodo asks the categorizer within the configured timeout and
// falls back to the default category on any failure
func (s *Service) categoryForNewTodo(ctx context.Context, userID uuid.UUID, title string, description *string) string {
	if s.categorizer == nil {
		return s.defaultCategory
	}

	cctx, cancel := context.WithTimeout(ai.WithUserID(ctx, userID), s.categorizeTimeout)
	defer cancel()

	result, err := s.categorizer.Categorize(cctx, title, description)
	if err != nil {
		s.logger.Warn("categorization_failed_using_default",
			zap.String("user_id", logger.SanitizeUserID(userID.String())),
			zap.String("default_category", s.defaultCategory),
			zap.Bool("timed_out", errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded)),
			zap.Bool("rate_limited", ai.IsRateLimitError(err)),
			zap.String("error", logger.SanitizeError(err)),
		)
		return s.defaultCategory
	}
	return result.Category
}

// Update applies a partial update. Absent fields are untouched; updatedAt is always refreshed.
func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, patch models.TodoPatch) (todo *models.Todo, err error) {
	ctx, span := telemetry.StartSpan(ctx, "todos.Update", attribute.String("todo.id", id.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	clean, err := normalizePatch(patch)
	if err != nil {
		return nil, err
	}

	now := s.now()
	todo, err = s.repo.UpdateFields(ctx, id, userID, clean, now)
	if err != nil {
		return nil, mapRepoError(err, "failed to update todo")
	}

	s.logger.Info("todo_updated",
		zap.String("user_id", logger.SanitizeUserID(userID.String())),
		zap.String("todo_id", id.String()),
		zap.Bool("touch_only", clean.IsEmpty()),
	)
	s.publish(ctx, events.NewEvent(events.TypeTodoUpdated, userID, id, todo, now))
	return todo, nil
}

// Delete removes a todo owned by the user
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "todos.Delete", attribute.String("todo.id", id.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	if err := s.repo.DeleteForUser(ctx, id, userID); err != nil {
		return mapRepoError(err, "failed to delete todo")
	}

	s.logger.Info("todo_deleted",
		zap.String("user_id", logger.SanitizeUserID(userID.String())),
		zap.String("todo_id", id.String()),
	)
	s.publish(ctx, events.NewEvent(events.TypeTodoDeleted, userID, id, nil, s.now()))
	return nil
}

// Categorize re-runs categorization for an existing todo and stores the result.
// Unlike Create, categorization failures are returned wrapped in ErrCategorization.
func (s *Service) Categorize(ctx context.Context, userID, id uuid.UUID) (result *models.CategorizeResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "todos.Categorize", attribute.String("todo.id", id.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	todo, err := s.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if s.categorizer == nil {
		return nil, fmt.Errorf("%w: %w", ErrCategorization, ErrCategorizerUnavailable)
	}

	cctx, cancel := context.WithTimeout(ai.WithTodoID(ai.WithUserID(ctx, userID), id), s.categorizeTimeout)
	categorization, err := s.categorizer.Categorize(cctx, todo.Title, todo.Description)
	cancel()
	if err != nil {
		s.logger.Warn("categorization_failed",
			zap.String("user_id", logger.SanitizeUserID(userID.String())),
			zap.String("todo_id", id.String()),
			zap.Bool("rate_limited", ai.IsRateLimitError(err)),
			zap.String("error", logger.SanitizeError(err)),
		)
		return nil, fmt.Errorf("%w: %w", ErrCategorization, err)
	}

	now := s.now()
	patch := models.TodoPatch{Category: models.NewOptionalString(categorization.Category)}
	updated, err := s.repo.UpdateFields(ctx, id, userID, patch, now)
	if err != nil {
		return nil, mapRepoError(err, "failed to store category")
	}

	event := events.NewEvent(events.TypeTodoCategorized, userID, id, updated, now)
	event.Confidence = &categorization.Confidence
	s.publish(ctx, event)

	return &models.CategorizeResult{
		Todo:       updated,
		Category:   categorization.Category,
		Confidence: categorization.Confidence,
	}, nil
}

// publish sends an event; failures are logged and never surface to the caller
func (s *Service) publish(ctx context.Context, event *events.Event) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("event_publish_failed",
			zap.String("event_type", string(event.Type)),
			zap.String("todo_id", event.TodoID.String()),
			zap.String("error", logger.SanitizeError(err)),
		)
	}
}

func mapRepoError(err error, msg string) error {
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", msg, err)
}
