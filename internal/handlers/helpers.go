package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/taskflow-ai/taskflow-api/internal/logger"
	"github.com/taskflow-ai/taskflow-api/internal/middleware"
	"github.com/taskflow-ai/taskflow-api/internal/models"
	"go.uber.org/zap"
)

const maxErrorMessageLength = 200

// errEmptyBody is returned by decodeJSON when the request has no body
var errEmptyBody = errors.New("request body is empty")

// respondJSON sends data as the JSON response body
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage bounds the length of a client-facing message
func sanitizeErrorMessage(message string) string {
	return logger.SanitizeString(message, maxErrorMessageLength)
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondInternalError logs err and sends a generic 500
func respondInternalError(w http.ResponseWriter, r *http.Request, log *zap.Logger, event string, err error) {
	log.Error(event,
		zap.String("path", logger.SanitizePath(r.URL.Path)),
		zap.String("error", logger.SanitizeError(err)),
	)
	respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred")
}

// decodeJSON decodes the request body into dst and writes the error response on failure.
// It returns false when the handler should stop.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		err = errEmptyBody
	}
	if err == nil {
		return true
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
		return false
	}
	respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
	return false
}

// requireUser returns the authenticated user or writes a 401
func requireUser(w http.ResponseWriter, r *http.Request) *models.User {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
	}
	return user
}

// todoIDFromPath parses the {id} path variable. A malformed id is reported
// like an absent todo.
func todoIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Todo not found")
		return uuid.Nil, false
	}
	return id, true
}
