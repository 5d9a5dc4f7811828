package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

func chatCompletionBody(content string) string {
	payload := map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   DefaultOpenAIModel,
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

// newTestProvider starts a fake chat completions endpoint answering with handler
func newTestProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewOpenAIProviderWithLogger("sk-test-key", server.URL, "", zap.NewNop(), true, option.WithMaxRetries(0))
}

func TestOpenAIProvider_Categorize(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.Error(w, "unexpected path "+r.URL.Path, http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatCompletionBody(`{"category": "Work", "confidence": 0.92}`))
	})

	description := "Q3 numbers for the board"
	result, err := provider.Categorize(context.Background(), "Prepare quarterly report", &description)
	if err != nil {
		t.Fatalf("Categorize() error: %v", err)
	}
	if result.Category != "work" {
		t.Errorf("Category = %q, want %q", result.Category, "work")
	}
	if result.Confidence != 0.92 {
		t.Errorf("Confidence = %v, want 0.92", result.Confidence)
	}

	if gotBody["model"] != DefaultOpenAIModel {
		t.Errorf("request model = %v, want %s", gotBody["model"], DefaultOpenAIModel)
	}
	format, _ := gotBody["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Errorf("response_format = %v, want json_object", gotBody["response_format"])
	}
	messages, _ := gotBody["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(messages))
	}
	user, _ := messages[1].(map[string]any)
	content, _ := user["content"].(string)
	if !strings.Contains(content, "Prepare quarterly report") || !strings.Contains(content, "Q3 numbers for the board") {
		t.Errorf("user prompt missing title or description: %q", content)
	}
}

func TestOpenAIProvider_Categorize_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		checkErr  func(*testing.T, error)
	}{
		{
			name:   "empty category",
			status: http.StatusOK,
			body:   chatCompletionBody(`{"category": "", "confidence": 0.4}`),
			checkErr: func(t *testing.T, err error) {
				if !errors.Is(err, ErrInvalidCategory) {
					t.Errorf("expected ErrInvalidCategory, got %v", err)
				}
			},
		},
		{
			name:   "not json",
			status: http.StatusOK,
			body:   chatCompletionBody("I think this is work"),
			checkErr: func(t *testing.T, err error) {
				if !strings.Contains(err.Error(), "failed to parse categorization response") {
					t.Errorf("unexpected error %v", err)
				}
			},
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`,
			checkErr: func(t *testing.T, err error) {
				if !errors.Is(err, ErrNoChoicesInResponse) {
					t.Errorf("expected ErrNoChoicesInResponse, got %v", err)
				}
			},
		},
		{
			name:   "bad request",
			status: http.StatusBadRequest,
			body:   `{"error": {"message": "bad model", "type": "invalid_request_error", "code": "model_not_found"}}`,
			checkErr: func(t *testing.T, err error) {
				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("expected APIError, got %v", err)
				}
				if apiErr.StatusCode != http.StatusBadRequest {
					t.Errorf("StatusCode = %d, want 400", apiErr.StatusCode)
				}
				if IsRateLimitError(err) {
					t.Error("400 must not be classified as rate limit")
				}
			},
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `{"error": {"message": "slow down", "type": "requests", "code": "rate_limit_exceeded"}}`,
			checkErr: func(t *testing.T, err error) {
				if !IsRateLimitError(err) {
					t.Errorf("expected rate limit error, got %v", err)
				}
				if IsQuotaError(err) {
					t.Error("rate limit must not be classified as quota")
				}
			},
		},
		{
			name:   "quota exhausted",
			status: http.StatusTooManyRequests,
			body:   `{"error": {"message": "no credit", "type": "insufficient_quota", "code": "insufficient_quota"}}`,
			checkErr: func(t *testing.T, err error) {
				if !IsQuotaError(err) {
					t.Errorf("expected quota error, got %v", err)
				}
				if !errors.Is(err, ErrQuotaExceeded) {
					t.Error("expected ErrQuotaExceeded in chain")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			result, err := provider.Categorize(context.Background(), "Call mom", nil)
			if err == nil {
				t.Fatalf("expected error, got %+v", result)
			}
			tt.checkErr(t, err)
		})
	}
}

func TestParseCategorizationResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		content        string
		wantCategory   string
		wantConfidence float64
		wantErr        bool
	}{
		{"plain", `{"category":"health","confidence":0.8}`, "health", 0.8, false},
		{"wrapped in prose", "Sure! {\"category\": \"Shopping\", \"confidence\": 0.6} Hope that helps", "shopping", 0.6, false},
		{"multi word folded", `{"category":"Self Care","confidence":0.5}`, "self-care", 0.5, false},
		{"punctuation dropped", `{"category":"finance.","confidence":0.7}`, "finance", 0.7, false},
		{"confidence clamped high", `{"category":"work","confidence":3}`, "work", 1, false},
		{"confidence clamped low", `{"category":"work","confidence":-0.2}`, "work", 0, false},
		{"missing confidence", `{"category":"travel"}`, "travel", 0, false},
		{"only symbols", `{"category":"!!!","confidence":0.9}`, "", 0, true},
		{"garbage", `not json at all`, "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseCategorizationResponse(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Category != tt.wantCategory {
				t.Errorf("Category = %q, want %q", got.Category, tt.wantCategory)
			}
			if got.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantConfidence)
			}
		})
	}
}

func TestBuildCategorizationPrompt(t *testing.T) {
	t.Parallel()

	prompt := buildCategorizationPrompt("Book flights", nil)
	if !strings.Contains(prompt, `Todo: "Book flights"`) {
		t.Errorf("prompt missing title: %q", prompt)
	}
	if strings.Contains(prompt, "Description:") {
		t.Error("prompt should omit description when nil")
	}

	blank := "   "
	if strings.Contains(buildCategorizationPrompt("x", &blank), "Description:") {
		t.Error("prompt should omit blank description")
	}

	desc := "to Lisbon"
	if !strings.Contains(buildCategorizationPrompt("x", &desc), `Description: "to Lisbon"`) {
		t.Error("prompt missing description")
	}
}

func TestProviderRegistry(t *testing.T) {
	t.Parallel()

	registry := NewDefaultRegistry(zap.NewNop(), false)

	if _, err := registry.GetProvider("openai", map[string]string{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}

	provider, err := registry.GetProvider("openai", map[string]string{"api_key": "sk-1234567890", "model": "gpt-4o"})
	if err != nil {
		t.Fatalf("GetProvider() error: %v", err)
	}
	if p, ok := provider.(*OpenAIProvider); !ok || p.Model() != "gpt-4o" {
		t.Errorf("unexpected provider %#v", provider)
	}

	var notFound *ErrProviderNotFound
	if _, err := registry.GetProvider("anthropic", nil); !errors.As(err, &notFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
	if len(notFound.Available) != 1 || notFound.Available[0] != "openai" {
		t.Errorf("Available = %v, want [openai]", notFound.Available)
	}
	if want := "AI provider not found: anthropic (available: openai)"; notFound.Error() != want {
		t.Errorf("Error() = %q, want %q", notFound.Error(), want)
	}
}
