package database

import (
	"testing"
)

func TestNormalizeOrigins(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"single", "https://app.example.com", "https://app.example.com", false},
		{"trailing slash and dedup", "https://a.com/, https://a.com", "https://a.com", false},
		{"wildcard", "*", "*", false},
		{"with port", "http://localhost:3000", "http://localhost:3000", false},
		{"empty", " , ", "", true},
		{"missing scheme", "app.example.com", "", true},
		{"has path", "https://a.com/app", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeOrigins(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeOrigins(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeOrigins(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
