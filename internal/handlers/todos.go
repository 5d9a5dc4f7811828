package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/taskflow-ai/taskflow-api/internal/models"
	"github.com/taskflow-ai/taskflow-api/internal/services/todos"
	"go.uber.org/zap"
)

// TodoService is the todo lifecycle used by TodoHandler
type TodoService interface {
	List(ctx context.Context, userID uuid.UUID) ([]*models.Todo, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.Todo, error)
	Create(ctx context.Context, userID uuid.UUID, in todos.CreateInput) (*models.Todo, error)
	Update(ctx context.Context, userID, id uuid.UUID, patch models.TodoPatch) (*models.Todo, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	Categorize(ctx context.Context, userID, id uuid.UUID) (*models.CategorizeResult, error)
}

var _ TodoService = (*todos.Service)(nil)

// TodoHandler handles todo-related requests
type TodoHandler struct {
	service TodoService
	logger  *zap.Logger
}

// NewTodoHandler creates a new todo handler
func NewTodoHandler(service TodoService, logger *zap.Logger) *TodoHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TodoHandler{service: service, logger: logger}
}

// RegisterRoutes registers todo routes on the given router
// The router should already have the /todos prefix (e.g., from apiRouter.PathPrefix("/todos"))
func (h *TodoHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListTodos).Methods("GET")
	r.HandleFunc("", h.CreateTodo).Methods("POST")
	// Registered before /{id} so "categorize" is never taken for an id
	r.HandleFunc("/categorize", h.CategorizeTodo).Methods("POST")
	r.HandleFunc("/{id}", h.GetTodo).Methods("GET")
	r.HandleFunc("/{id}", h.UpdateTodo).Methods("PUT", "PATCH")
	r.HandleFunc("/{id}", h.DeleteTodo).Methods("DELETE")
}

// CreateTodoRequest represents a create todo request
type CreateTodoRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

// CategorizeTodoRequest represents a categorize request
type CategorizeTodoRequest struct {
	TodoID string `json:"todoId"`
}

// MessageResponse carries a human-readable confirmation
type MessageResponse struct {
	Message string `json:"message"`
}

// ListTodos lists the authenticated user's todos, newest first
func (h *TodoHandler) ListTodos(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	list, err := h.service.List(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, list)
}

// CreateTodo creates a new todo
func (h *TodoHandler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req CreateTodoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	todo, err := h.service.Create(r.Context(), user.ID, todos.CreateInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, todo)
}

// GetTodo retrieves a todo by ID
func (h *TodoHandler) GetTodo(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := todoIDFromPath(w, r)
	if !ok {
		return
	}

	todo, err := h.service.Get(r.Context(), user.ID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, todo)
}

// UpdateTodo applies a partial update. Fields absent from the body are left as they are.
func (h *TodoHandler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := todoIDFromPath(w, r)
	if !ok {
		return
	}

	var patch models.TodoPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	todo, err := h.service.Update(r.Context(), user.ID, id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, todo)
}

// DeleteTodo deletes a todo
func (h *TodoHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := todoIDFromPath(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), user.ID, id); err != nil {
		h.writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, MessageResponse{Message: "Todo deleted successfully"})
}

// CategorizeTodo re-runs AI categorization for one of the user's todos
func (h *TodoHandler) CategorizeTodo(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req CategorizeTodoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.TodoID) == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "todoId is required")
		return
	}
	id, err := uuid.Parse(strings.TrimSpace(req.TodoID))
	if err != nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Todo not found")
		return
	}

	result, err := h.service.Categorize(r.Context(), user.ID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// writeError maps service errors onto HTTP statuses
func (h *TodoHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *todos.ValidationError
	switch {
	case errors.As(err, &validationErr):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", validationErr.Message)
	case errors.Is(err, todos.ErrNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Todo not found")
	case errors.Is(err, todos.ErrCategorization):
		h.logger.Warn("categorization_request_failed", zap.String("error", sanitizeErrorMessage(err.Error())))
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "Failed to categorize todo")
	default:
		respondInternalError(w, r, h.logger, "todo_request_failed", err)
	}
}
