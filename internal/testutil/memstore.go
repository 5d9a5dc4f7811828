// Package testutil provides in-memory implementations of the repositories and
// collaborators used by service and handler tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taskflow-ai/taskflow-api/internal/database"
	"github.com/taskflow-ai/taskflow-api/internal/models"
)

// TodoStore is an in-memory database.TodoRepositoryInterface
type TodoStore struct {
	mu    sync.Mutex
	todos map[uuid.UUID]*models.Todo

	// CreateErr, when set, is returned by Create without storing anything
	CreateErr error
}

var _ database.TodoRepositoryInterface = (*TodoStore)(nil)

// NewTodoStore returns an empty store
func NewTodoStore() *TodoStore {
	return &TodoStore{todos: make(map[uuid.UUID]*models.Todo)}
}

func cloneTodo(t *models.Todo) *models.Todo {
	c := *t
	if t.Description != nil {
		d := *t.Description
		c.Description = &d
	}
	if t.Category != nil {
		cat := *t.Category
		c.Category = &cat
	}
	return &c
}

// Put stores a todo as-is, bypassing validation. Useful for seeding timestamps.
func (s *TodoStore) Put(todo *models.Todo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.todos[todo.ID] = cloneTodo(todo)
}

// Len returns the number of stored todos across all users
func (s *TodoStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.todos)
}

// Create implements database.TodoRepositoryInterface
func (s *TodoStore) Create(_ context.Context, todo *models.Todo) error {
	if s.CreateErr != nil {
		return s.CreateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.todos[todo.ID]; exists {
		return fmt.Errorf("duplicate todo id %s", todo.ID)
	}
	s.todos[todo.ID] = cloneTodo(todo)
	return nil
}

// GetByIDForUser implements database.TodoRepositoryInterface
func (s *TodoStore) GetByIDForUser(_ context.Context, id, userID uuid.UUID) (*models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[id]
	if !ok || t.UserID != userID {
		return nil, fmt.Errorf("todo %w", database.ErrNotFound)
	}
	return cloneTodo(t), nil
}

// ListByUser implements database.TodoRepositoryInterface
func (s *TodoStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Todo, 0)
	for _, t := range s.todos {
		if t.UserID == userID {
			out = append(out, cloneTodo(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return strings.Compare(out[i].ID.String(), out[j].ID.String()) < 0
	})
	return out, nil
}

// UpdateFields implements database.TodoRepositoryInterface
func (s *TodoStore) UpdateFields(_ context.Context, id, userID uuid.UUID, patch models.TodoPatch, now time.Time) (*models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[id]
	if !ok || t.UserID != userID {
		return nil, fmt.Errorf("todo %w", database.ErrNotFound)
	}
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description.Set {
		t.Description = patch.Description.Value
	}
	if patch.Completed != nil {
		t.Completed = *patch.Completed
	}
	if patch.Category.Set {
		t.Category = patch.Category.Value
	}
	if now.After(t.UpdatedAt) {
		t.UpdatedAt = now
	}
	s.todos[id] = cloneTodo(t)
	return cloneTodo(t), nil
}

// DeleteForUser implements database.TodoRepositoryInterface
func (s *TodoStore) DeleteForUser(_ context.Context, id, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[id]
	if !ok || t.UserID != userID {
		return fmt.Errorf("todo %w", database.ErrNotFound)
	}
	delete(s.todos, id)
	return nil
}

// Count implements database.TodoRepositoryInterface with half-open ranges
func (s *TodoStore) Count(_ context.Context, userID uuid.UUID, f database.CountFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.todos {
		if t.UserID != userID {
			continue
		}
		if f.Completed != nil && t.Completed != *f.Completed {
			continue
		}
		if !inRange(t.CreatedAt, f.CreatedFrom, f.CreatedBefore) || !inRange(t.UpdatedAt, f.UpdatedFrom, f.UpdatedBefore) {
			continue
		}
		n++
	}
	return n, nil
}

func inRange(ts time.Time, from, before *time.Time) bool {
	if from != nil && ts.Before(*from) {
		return false
	}
	if before != nil && !ts.Before(*before) {
		return false
	}
	return true
}

// UserStore is an in-memory database.UserRepositoryInterface
type UserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

var _ database.UserRepositoryInterface = (*UserStore)(nil)

// NewUserStore returns an empty store
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[uuid.UUID]*models.User)}
}

// Put stores a user as-is
func (s *UserStore) Put(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	s.users[user.ID] = &u
}

// GetByID implements database.UserRepositoryInterface
func (s *UserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %w", database.ErrNotFound)
	}
	c := *u
	return &c, nil
}

// GetByEmail implements database.UserRepositoryInterface
func (s *UserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, fmt.Errorf("user %w", database.ErrNotFound)
}

// GetByProviderID implements database.UserRepositoryInterface
func (s *UserStore) GetByProviderID(_ context.Context, providerID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ProviderID != nil && *u.ProviderID == providerID {
			c := *u
			return &c, nil
		}
	}
	return nil, fmt.Errorf("user %w", database.ErrNotFound)
}

// UpsertByProviderID implements database.UserRepositoryInterface
func (s *UserStore) UpsertByProviderID(_ context.Context, user *models.User) error {
	if user.ProviderID == nil || *user.ProviderID == "" {
		return fmt.Errorf("provider id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, u := range s.users {
		if u.ProviderID != nil && *u.ProviderID == *user.ProviderID {
			u.Email = user.Email
			if user.Name != nil {
				u.Name = user.Name
			}
			u.EmailVerified = user.EmailVerified
			u.UpdatedAt = now
			*user = *u
			return nil
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	u := *user
	s.users[user.ID] = &u
	return nil
}
