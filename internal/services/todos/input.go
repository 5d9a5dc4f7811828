package todos

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/taskflow-ai/taskflow-api/internal/models"
	"github.com/taskflow-ai/taskflow-api/internal/validation"
)

// CreateInput holds the caller-supplied fields of a new todo
type CreateInput struct {
	Title       string
	Description *string
}

func normalizeTitle(raw string) (string, error) {
	title := validation.SanitizeText(raw)
	if err := validation.Validate.Var(title, fmt.Sprintf("required,max=%d", models.MaxTitleLength)); err != nil {
		return "", invalid("title", validation.FieldMessage("title", err))
	}
	return title, nil
}

// normalizeDescription sanitizes a description; blank collapses to nil
func normalizeDescription(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	description := validation.SanitizeText(*raw)
	if description == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(description) > models.MaxDescriptionLength {
		return nil, invalid("description", fmt.Sprintf("description must be at most %d characters", models.MaxDescriptionLength))
	}
	return &description, nil
}

// normalizeCategory lowercases a user-supplied category; blank collapses to nil
func normalizeCategory(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	category := strings.ToLower(validation.SanitizeText(*raw))
	if category == "" {
		return nil, nil
	}
	if err := validation.Validate.Var(category, fmt.Sprintf("singleword,max=%d", validation.MaxCategoryLength)); err != nil {
		return nil, invalid("category", validation.FieldMessage("category", err))
	}
	return &category, nil
}

// normalizePatch validates every field present in patch and returns the cleaned copy
func normalizePatch(patch models.TodoPatch) (models.TodoPatch, error) {
	out := models.TodoPatch{Completed: patch.Completed}

	if patch.Title != nil {
		title, err := normalizeTitle(*patch.Title)
		if err != nil {
			return out, err
		}
		out.Title = &title
	}
	if patch.Description.Set {
		description, err := normalizeDescription(patch.Description.Value)
		if err != nil {
			return out, err
		}
		out.Description = models.OptionalFrom(description)
	}
	if patch.Category.Set {
		category, err := normalizeCategory(patch.Category.Value)
		if err != nil {
			return out, err
		}
		out.Category = models.OptionalFrom(category)
	}
	return out, nil
}
