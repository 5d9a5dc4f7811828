package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taskflow-ai/taskflow-api/internal/models"
)

const todoColumns = `id, user_id, title, description, completed, category, created_at, updated_at`

// TodoRepository handles todo database operations. Every query is scoped by
// owner: a todo that belongs to another user is reported as ErrNotFound.
type TodoRepository struct {
	db *DB
}

// NewTodoRepository creates a new todo repository
func NewTodoRepository(db *DB) *TodoRepository {
	return &TodoRepository{db: db}
}

// CountFilter narrows a todo count. Nil fields are not applied.
// Ranges are half-open: From is inclusive, Before is exclusive.
type CountFilter struct {
	Completed     *bool
	CreatedFrom   *time.Time
	CreatedBefore *time.Time
	UpdatedFrom   *time.Time
	UpdatedBefore *time.Time
}

func scanTodo(row rowScanner) (*models.Todo, error) {
	todo := &models.Todo{}
	err := row.Scan(
		&todo.ID,
		&todo.UserID,
		&todo.Title,
		&todo.Description,
		&todo.Completed,
		&todo.Category,
		&todo.CreatedAt,
		&todo.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return todo, nil
}

// Create inserts a new todo. CreatedAt and UpdatedAt are taken from the model.
func (r *TodoRepository) Create(ctx context.Context, todo *models.Todo) error {
	query := `
		INSERT INTO todos (id, user_id, title, description, completed, category, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		todo.ID,
		todo.UserID,
		todo.Title,
		todo.Description,
		todo.Completed,
		todo.Category,
		todo.CreatedAt,
		todo.UpdatedAt,
	).Scan(&todo.CreatedAt, &todo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create todo: %w", err)
	}

	return nil
}

// GetByIDForUser retrieves a todo owned by userID
func (r *TodoRepository) GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE id = $1 AND user_id = $2`

	todo, err := scanTodo(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(err, "todo")
		}
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}
	return todo, nil
}

// ListByUser retrieves all todos for a user, newest first
func (r *TodoRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE user_id = $1 ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query todos: %w", err)
	}
	defer closeRows(rows)

	todos := make([]*models.Todo, 0)
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating todos: %w", err)
	}

	return todos, nil
}

// UpdateFields applies a partial update to a todo owned by userID and returns
// the stored row. updated_at moves to now but never backwards.
func (r *TodoRepository) UpdateFields(ctx context.Context, id, userID uuid.UUID, patch models.TodoPatch, now time.Time) (*models.Todo, error) {
	query, args := buildUpdateQuery(id, userID, patch, now)

	todo, err := scanTodo(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(err, "todo")
		}
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	return todo, nil
}

// DeleteForUser deletes a todo owned by userID
func (r *TodoRepository) DeleteForUser(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("todo %w", ErrNotFound)
	}

	return nil
}

// Count returns the number of todos of userID matching the filter
func (r *TodoRepository) Count(ctx context.Context, userID uuid.UUID, filter CountFilter) (int, error) {
	query, args := buildCountQuery(userID, filter)

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count todos: %w", err)
	}
	return n, nil
}

// buildUpdateQuery renders the UPDATE statement for the fields present in patch
func buildUpdateQuery(id, userID uuid.UUID, patch models.TodoPatch, now time.Time) (string, []any) {
	args := []any{id, userID}
	var sets []string
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description.Set {
		add("description", patch.Description.Value)
	}
	if patch.Completed != nil {
		add("completed", *patch.Completed)
	}
	if patch.Category.Set {
		add("category", patch.Category.Value)
	}

	args = append(args, now)
	sets = append(sets, fmt.Sprintf("updated_at = GREATEST($%d::timestamptz, updated_at)", len(args)))

	query := `UPDATE todos SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 AND user_id = $2 RETURNING ` + todoColumns
	return query, args
}

// buildCountQuery renders the COUNT statement for a filter
func buildCountQuery(userID uuid.UUID, filter CountFilter) (string, []any) {
	args := []any{userID}
	conds := []string{"user_id = $1"}
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Completed != nil {
		add("completed = $%d", *filter.Completed)
	}
	if filter.CreatedFrom != nil {
		add("created_at >= $%d", *filter.CreatedFrom)
	}
	if filter.CreatedBefore != nil {
		add("created_at < $%d", *filter.CreatedBefore)
	}
	if filter.UpdatedFrom != nil {
		add("updated_at >= $%d", *filter.UpdatedFrom)
	}
	if filter.UpdatedBefore != nil {
		add("updated_at < $%d", *filter.UpdatedBefore)
	}

	return `SELECT COUNT(*) FROM todos WHERE ` + strings.Join(conds, " AND "), args
}
