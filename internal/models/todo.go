package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCategory is assigned when automatic categorization is unavailable.
const DefaultCategory = "general"

// Field limits for todo text, counted in runes.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 500
)

// Todo represents a todo item owned by exactly one user
type Todo struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Completed   bool      `json:"completed"`
	Category    *string   `json:"category"`
	UserID      uuid.UUID `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TodoPatch carries the fields of a partial update.
// Nil pointers and unset optionals leave the stored value untouched.
type TodoPatch struct {
	Title       *string        `json:"title,omitempty"`
	Description OptionalString `json:"description"`
	Completed   *bool          `json:"completed,omitempty"`
	Category    OptionalString `json:"category"`
}

// IsEmpty reports whether the patch changes no field
func (p TodoPatch) IsEmpty() bool {
	return p.Title == nil && !p.Description.Set && p.Completed == nil && !p.Category.Set
}

// Categorization is the result of classifying a todo
type Categorization struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// CategorizeResult is returned when a todo is explicitly re-categorized
type CategorizeResult struct {
	Todo       *Todo   `json:"todo"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
