package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestSanitizeAPIKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"short", RedactedValue},
		{"sk-abcdefghijklmnop", "sk-a" + RedactedValue + "mnop"},
	}
	for _, tt := range tests {
		if got := SanitizeAPIKey(tt.in); got != tt.want {
			t.Errorf("SanitizeAPIKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizePrompt_Truncates(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", MaxPreviewLength+50)
	if got := SanitizePrompt(long, false); len(got) != MaxPreviewLength+3 {
		t.Errorf("preview length = %d, want %d", len(got), MaxPreviewLength+3)
	}
	if got := SanitizePrompt(long, true); got != long {
		t.Error("full log should keep prompts under the debug limit intact")
	}
	if got := SanitizeResponse("ok\x00\x1b", false); got != "ok" {
		t.Errorf("control characters not stripped: %q", got)
	}
}

func TestContextIDs(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	todoID := uuid.New()
	ctx := WithRequestID(WithTodoID(WithUserID(context.Background(), userID), todoID), "req-1")

	if got := ExtractUserID(ctx); got != userID.String() {
		t.Errorf("ExtractUserID() = %q, want %q", got, userID)
	}
	if got := ExtractTodoID(ctx); got != todoID.String() {
		t.Errorf("ExtractTodoID() = %q, want %q", got, todoID)
	}
	if got := ExtractRequestID(ctx); got != "req-1" {
		t.Errorf("ExtractRequestID() = %q, want req-1", got)
	}
	if got := ExtractUserID(context.Background()); got != "" {
		t.Errorf("expected empty user id, got %q", got)
	}
}
