package ai

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/taskflow-ai/taskflow-api/internal/models"
	"go.uber.org/zap"
)

// ErrMissingAPIKey is returned by factories that need credentials
var ErrMissingAPIKey = errors.New("AI provider API key is not configured")

// Categorizer assigns a single-word category to a todo
type Categorizer interface {
	// Categorize classifies a todo by its title and optional description.
	// The returned category is a lowercase single word; confidence is in [0,1].
	Categorize(ctx context.Context, title string, description *string) (*models.Categorization, error)
}

// ProviderFactory creates a categorizer from string configuration
type ProviderFactory func(config map[string]string) (Categorizer, error)

// ProviderRegistry stores available AI providers
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// GetProvider gets a provider by name
func (r *ProviderRegistry) GetProvider(name string, config map[string]string) (Categorizer, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name, Available: r.Names()}
	}

	return factory(config)
}

// Names lists the registered provider names in sorted order
func (r *ProviderRegistry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ErrProviderNotFound is returned when a provider is not found
type ErrProviderNotFound struct {
	Name      string
	Available []string
}

func (e *ErrProviderNotFound) Error() string {
	if len(e.Available) == 0 {
		return "AI provider not found: " + e.Name
	}
	return "AI provider not found: " + e.Name + " (available: " + strings.Join(e.Available, ", ") + ")"
}

// NewDefaultRegistry returns a registry with the built-in providers.
// Factory config keys: "api_key", "base_url", "model".
func NewDefaultRegistry(logger *zap.Logger, debugMode bool) *ProviderRegistry {
	r := NewProviderRegistry()
	r.Register("openai", func(config map[string]string) (Categorizer, error) {
		if config["api_key"] == "" {
			return nil, ErrMissingAPIKey
		}
		return NewOpenAIProviderWithLogger(config["api_key"], config["base_url"], config["model"], logger, debugMode), nil
	})
	return r
}
