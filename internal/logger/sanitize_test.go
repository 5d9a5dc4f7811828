package logger

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "/api/v1/todos", "/api/v1/todos"},
		{"control characters stripped", "/api/v1/todos\x00\x1b[31m", "/api/v1/todos[31m"},
		{"invalid utf8 dropped", "/todos/\xff", "/todos/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizePath(tt.in); got != tt.want {
				t.Errorf("SanitizePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizePath_Truncates(t *testing.T) {
	t.Parallel()

	got := SanitizePath("/" + strings.Repeat("a", MaxPathLength*2))
	if len(got) != MaxPathLength+len("...") {
		t.Errorf("Expected truncated length %d, got %d", MaxPathLength+3, len(got))
	}
}

func TestSanitizeString_KeepsRunesWhole(t *testing.T) {
	t.Parallel()

	got := SanitizeString("aé", 2)
	if got != "a..." {
		t.Errorf("SanitizeString() = %q, want %q", got, "a...")
	}
	if got := SanitizeString("abc", 0); got != "abc" {
		t.Errorf("SanitizeString() with default length = %q", got)
	}
}

func TestMaskEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"jane@example.com", "j***@example.com"},
		{"ünal@example.com", "ü***@example.com"},
		{"@example.com", "***"},
		{"not-an-email", "***"},
		{"", "***"},
	}
	for _, tt := range tests {
		if got := MaskEmail(tt.in); got != tt.want {
			t.Errorf("MaskEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	if got := SanitizeError(nil); got != "" {
		t.Errorf("Expected empty string for nil error, got %q", got)
	}
	if got := SanitizeError(errors.New("db down\r\n")); got != "db down\r\n" {
		t.Errorf("Expected CR/LF to be kept, got %q", got)
	}
}

func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	log, err := NewProductionLogger(true)
	if err != nil {
		t.Fatalf("NewProductionLogger() error: %v", err)
	}
	if !log.Core().Enabled(-1) {
		t.Error("Expected debug level to be enabled in debug mode")
	}
	_ = Sync(log)
	if err := Sync(nil); err != nil {
		t.Errorf("Sync(nil) = %v, want nil", err)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, format := range []string{FormatJSON, FormatConsole, ""} {
		log, err := New(false, format)
		if err != nil {
			t.Fatalf("New(%q) error: %v", format, err)
		}
		if log.Core().Enabled(-1) {
			t.Errorf("New(%q): debug level should be disabled", format)
		}
	}
	if _, err := New(false, "xml"); err == nil {
		t.Error("Expected error for unknown format")
	}
}
