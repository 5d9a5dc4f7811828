package models

import (
	"encoding/json"
	"testing"
)

func TestOptionalString_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		payload   string
		wantSet   bool
		wantNil   bool
		wantValue string
	}{
		{"absent", `{}`, false, true, ""},
		{"null", `{"description": null}`, true, true, ""},
		{"empty string", `{"description": ""}`, true, false, ""},
		{"value", `{"description": "buy milk"}`, true, false, "buy milk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var patch TodoPatch
			if err := json.Unmarshal([]byte(tt.payload), &patch); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if patch.Description.Set != tt.wantSet {
				t.Errorf("Set = %v, want %v", patch.Description.Set, tt.wantSet)
			}
			if (patch.Description.Value == nil) != tt.wantNil {
				t.Fatalf("Value nil = %v, want %v", patch.Description.Value == nil, tt.wantNil)
			}
			if !tt.wantNil && *patch.Description.Value != tt.wantValue {
				t.Errorf("Value = %q, want %q", *patch.Description.Value, tt.wantValue)
			}
		})
	}
}

func TestOptionalString_RejectsNonString(t *testing.T) {
	t.Parallel()

	var patch TodoPatch
	if err := json.Unmarshal([]byte(`{"category": 42}`), &patch); err == nil {
		t.Error("Expected error for numeric category")
	}
}

func TestOptionalFrom(t *testing.T) {
	t.Parallel()

	if got := OptionalFrom(nil); !got.Set || got.Value != nil {
		t.Errorf("OptionalFrom(nil) = %+v, want set null", got)
	}
	s := "work"
	if got := OptionalFrom(&s); !got.Set || got.Value == nil || *got.Value != "work" {
		t.Errorf("OptionalFrom(&%q) = %+v", s, got)
	}
}

func TestTodoPatch_IsEmpty(t *testing.T) {
	t.Parallel()

	done := true
	tests := []struct {
		name  string
		patch TodoPatch
		want  bool
	}{
		{"zero value", TodoPatch{}, true},
		{"completed only", TodoPatch{Completed: &done}, false},
		{"null category", TodoPatch{Category: NullString()}, false},
		{"description", TodoPatch{Description: NewOptionalString("x")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.patch.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTodo_JSONFieldNames(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Todo{Title: "t"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"id", "title", "description", "completed", "category", "userId", "createdAt", "updatedAt"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing field %q in %s", key, data)
		}
	}
	if fields["description"] != nil {
		t.Errorf("expected null description, got %v", fields["description"])
	}
}
