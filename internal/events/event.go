package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskflow-ai/taskflow-api/internal/models"
)

// Type names a todo lifecycle event. It doubles as the routing key.
type Type string

const (
	TypeTodoCreated     Type = "todo.created"
	TypeTodoUpdated     Type = "todo.updated"
	TypeTodoDeleted     Type = "todo.deleted"
	TypeTodoCategorized Type = "todo.categorized"
)

// Event is published after a todo mutation has been persisted
type Event struct {
	ID         uuid.UUID    `json:"id"`
	Type       Type         `json:"type"`
	UserID     uuid.UUID    `json:"userId"`
	TodoID     uuid.UUID    `json:"todoId"`
	Todo       *models.Todo `json:"todo,omitempty"`
	Confidence *float64     `json:"confidence,omitempty"`
	OccurredAt time.Time    `json:"occurredAt"`
}

// NewEvent creates an event for a todo. todo may be nil for deletions.
func NewEvent(t Type, userID, todoID uuid.UUID, todo *models.Todo, occurredAt time.Time) *Event {
	return &Event{
		ID:         uuid.New(),
		Type:       t,
		UserID:     userID,
		TodoID:     todoID,
		Todo:       todo,
		OccurredAt: occurredAt,
	}
}

// Publisher delivers lifecycle events. Delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// NopPublisher discards every event
type NopPublisher struct{}

// Publish implements Publisher
func (NopPublisher) Publish(context.Context, *Event) error { return nil }
