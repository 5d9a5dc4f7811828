package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

func TestRespondJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		data     any
		wantBody string
	}{
		{
			name:     "object",
			status:   http.StatusOK,
			data:     map[string]string{"message": "hello"},
			wantBody: `{"message":"hello"}`,
		},
		{
			name:     "created array",
			status:   http.StatusCreated,
			data:     []string{"a", "b"},
			wantBody: `["a","b"]`,
		},
		{
			name:     "empty slice stays an array",
			status:   http.StatusOK,
			data:     []string{},
			wantBody: `[]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			respondJSON(w, tt.status, tt.data)

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
			}
			if got := strings.TrimSpace(w.Body.String()); got != tt.wantBody {
				t.Errorf("Expected body %s, got %s", tt.wantBody, got)
			}
		})
	}
}

func TestRespondJSONError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		errorType string
		message   string
		wantMsg   string
	}{
		{
			name:      "bad request",
			status:    http.StatusBadRequest,
			errorType: "Bad Request",
			message:   "Invalid input",
			wantMsg:   "Invalid input",
		},
		{
			name:      "long message truncated",
			status:    http.StatusInternalServerError,
			errorType: "Internal Server Error",
			message:   strings.Repeat("x", 300),
			wantMsg:   strings.Repeat("x", maxErrorMessageLength) + "...",
		},
		{
			name:      "control characters removed",
			status:    http.StatusNotFound,
			errorType: "Not Found",
			message:   "Todo\x00 not found\x07",
			wantMsg:   "Todo not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			respondJSONError(w, tt.status, tt.errorType, tt.message)

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}

			var body map[string]any
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if success, ok := body["success"].(bool); !ok || success {
				t.Error("Expected success to be false")
			}
			if body["error"] != tt.errorType {
				t.Errorf("Expected error '%s', got '%v'", tt.errorType, body["error"])
			}
			if body["message"] != tt.wantMsg {
				t.Errorf("Expected message '%s', got '%v'", tt.wantMsg, body["message"])
			}
			timestamp, ok := body["timestamp"].(string)
			if !ok {
				t.Fatal("Timestamp not found in response")
			}
			if _, err := time.Parse(time.RFC3339, timestamp); err != nil {
				t.Errorf("Timestamp '%s' is not valid RFC3339: %v", timestamp, err)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		limit      int64
		wantOK     bool
		wantStatus int
	}{
		{name: "valid", body: `{"title":"x"}`, wantOK: true},
		{name: "empty body", body: ``, wantStatus: http.StatusBadRequest},
		{name: "malformed", body: `{"title":`, wantStatus: http.StatusBadRequest},
		{name: "wrong type", body: `{"title":5}`, wantStatus: http.StatusBadRequest},
		{name: "too large", body: `{"title":"` + strings.Repeat("a", 64) + `"}`, limit: 16, wantStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.limit > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, tt.limit)
			}

			var dst CreateTodoRequest
			ok := decodeJSON(w, r, &dst)
			if ok != tt.wantOK {
				t.Fatalf("decodeJSON() = %v, want %v", ok, tt.wantOK)
			}
			if !ok && w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestTodoIDFromPath(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	tests := []struct {
		name   string
		raw    string
		wantOK bool
	}{
		{name: "valid", raw: id.String(), wantOK: true},
		{name: "malformed", raw: "not-a-uuid"},
		{name: "empty", raw: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": tt.raw})

			got, ok := todoIDFromPath(w, r)
			if ok != tt.wantOK {
				t.Fatalf("todoIDFromPath() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != id {
				t.Errorf("Expected id %s, got %s", id, got)
			}
			if !ok && w.Code != http.StatusNotFound {
				t.Errorf("Expected status 404 for malformed id, got %d", w.Code)
			}
		})
	}
}

// newTestRequest creates a test request with a JSON body
func newTestRequest(method, path string, body any) *http.Request {
	var bodyReader *bytes.Reader
	if body != nil {
		bodyBytes, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(bodyBytes)
	} else {
		bodyReader = bytes.NewReader(nil)
	}
	r := httptest.NewRequest(method, path, bodyReader)
	r.Header.Set("Content-Type", "application/json")
	return r
}
