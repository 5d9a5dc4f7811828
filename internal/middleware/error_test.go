package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestErrorHandler_NoPanic(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()

	ErrorHandler(zap.NewNop())(handler).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestErrorHandler_PanicRecovery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name:    "string panic",
			handler: func(http.ResponseWriter, *http.Request) { panic("test panic") },
		},
		{
			name: "runtime panic",
			handler: func(http.ResponseWriter, *http.Request) {
				var nilMap map[string]string
				nilMap["key"] = "value"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest("GET", "/api/v1/todos", nil)
			w := httptest.NewRecorder()

			ErrorHandler(zap.NewNop())(tt.handler).ServeHTTP(w, req)

			if w.Code != http.StatusInternalServerError {
				t.Errorf("Expected status 500, got %d", w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
			}

			var body ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body.Success {
				t.Error("Expected success to be false")
			}
			if body.Error != "Internal Server Error" || body.Message != "An unexpected error occurred" {
				t.Errorf("unexpected body %+v", body)
			}
			if body.Path != "/api/v1/todos" {
				t.Errorf("Expected path '/api/v1/todos', got '%s'", body.Path)
			}
			if body.Timestamp == "" {
				t.Error("Expected timestamp to be set")
			}
		})
	}
}
