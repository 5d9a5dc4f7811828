package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// MaxCategoryLength bounds a category label, counted in runes
const MaxCategoryLength = 50

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("singleword", validateSingleWord); err != nil {
		panic(fmt.Sprintf("failed to register singleword validator: %v", err))
	}
}

// validateSingleWord validates that a string field holds exactly one word
func validateSingleWord(fl validator.FieldLevel) bool {
	return IsSingleWord(fl.Field().String())
}

// IsSingleWord reports whether s is a single word: no whitespace, at least one
// letter or digit, and only letters, digits, '-' or '_'.
func IsSingleWord(s string) bool {
	if s == "" {
		return false
	}
	hasAlnum := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			hasAlnum = true
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return hasAlnum
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return strings.TrimSpace(sanitized.String())
}

// FieldMessage turns a validator error into a short client-facing message
// for the named field. Non-validator errors are returned as-is.
func FieldMessage(field string, err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err.Error()
	}
	fe := validationErrors[0]
	if fe.Field() != "" {
		field = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "singleword":
		return fmt.Sprintf("%s must be a single word", field)
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid id", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
