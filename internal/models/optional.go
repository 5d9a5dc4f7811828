package models

import (
	"bytes"
	"encoding/json"
)

// OptionalString distinguishes an absent JSON field from an explicit null.
// Set is true whenever the field appeared in the payload; Value is nil for null.
type OptionalString struct {
	Set   bool
	Value *string
}

// NewOptionalString returns a set optional holding s.
func NewOptionalString(s string) OptionalString {
	return OptionalString{Set: true, Value: &s}
}

// NullString returns a set optional holding null.
func NullString() OptionalString {
	return OptionalString{Set: true}
}

// OptionalFrom returns a set optional holding v, or null when v is nil.
func OptionalFrom(v *string) OptionalString {
	if v == nil {
		return NullString()
	}
	return NewOptionalString(*v)
}

// UnmarshalJSON implements json.Unmarshaler
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = NullString()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = NewOptionalString(s)
	return nil
}

// MarshalJSON implements json.Marshaler
func (o OptionalString) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}
