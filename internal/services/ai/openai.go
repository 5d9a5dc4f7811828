package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/taskflow-ai/taskflow-api/internal/models"
	"github.com/taskflow-ai/taskflow-api/internal/validation"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second
)

var (
	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = errors.New("no choices in response")
	// ErrInvalidCategory is returned when the model answer holds no usable category
	ErrInvalidCategory = errors.New("invalid category in response")
)

const systemPrompt = "You are a helpful assistant that categorizes todo items. " +
	`Respond with valid JSON only, shaped as {"category": "<word>", "confidence": <number between 0 and 1>}.`

// OpenAIProvider implements Categorizer using OpenAI chat completions
type OpenAIProvider struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string, model string) *OpenAIProvider {
	return NewOpenAIProviderWithLogger(apiKey, DefaultOpenAIBaseURL, model, nil, false)
}

// NewOpenAIProviderWithLogger creates a new OpenAI provider with logger support.
// Extra request options are applied after the defaults.
func NewOpenAIProviderWithLogger(apiKey string, baseURL string, model string, logger *zap.Logger, debugMode bool, opts ...option.RequestOption) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
	}

	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	}, opts...)

	return &OpenAIProvider{
		client:    openai.NewClient(clientOpts...),
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}
}

// Model returns the configured model name
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Categorize classifies a todo with a single JSON-mode chat completion
func (p *OpenAIProvider) Categorize(ctx context.Context, title string, description *string) (*models.Categorization, error) {
	prompt := buildCategorizationPrompt(title, description)
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(prompt),
	}
	req := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	requestID := ExtractRequestID(ctx)
	userIDStr := ExtractUserID(ctx)
	todoIDStr := ExtractTodoID(ctx)

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("operation", "categorize"),
			zap.String("model", p.model),
			zap.Int("prompt_length", len(prompt)),
			zap.String("prompt_preview", SanitizePrompt(prompt, true)),
			zap.String("user_id", userIDStr),
			zap.String("todo_id", todoIDStr),
			zap.String("request_id", requestID),
		)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)
	if err != nil {
		if p.logger != nil && p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("operation", "categorize"),
				zap.String("model", p.model),
				zap.Error(err),
				zap.Bool("rate_limited", IsRateLimitError(err)),
				zap.String("user_id", userIDStr),
				zap.String("todo_id", todoIDStr),
				zap.String("request_id", requestID),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return nil, fmt.Errorf("failed to categorize todo: %w", apiErr)
		}
		return nil, fmt.Errorf("failed to categorize todo: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoicesInResponse
	}

	content := resp.Choices[0].Message.Content
	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("operation", "categorize"),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeResponse(content, true)),
			zap.String("user_id", userIDStr),
			zap.String("todo_id", todoIDStr),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return parseCategorizationResponse(content)
}

func buildCategorizationPrompt(title string, description *string) string {
	var b strings.Builder
	b.WriteString("Categorize this todo item into a single word category that best describes its type or domain.\n\n")
	fmt.Fprintf(&b, "Todo: %q\n", title)
	if description != nil && strings.TrimSpace(*description) != "" {
		fmt.Fprintf(&b, "Description: %q\n", *description)
	}
	b.WriteString("\nCommon categories include: work, personal, health, shopping, learning, finance, travel, home, social, etc.\n")
	b.WriteString("Choose the most appropriate single word category and estimate your confidence between 0 and 1.")
	return b.String()
}

// parseCategorizationResponse decodes the model answer, tolerating prose around the JSON object
func parseCategorizationResponse(content string) (*models.Categorization, error) {
	var answer struct {
		Category   string   `json:"category"`
		Confidence *float64 `json:"confidence"`
	}
	raw := strings.TrimSpace(content)
	if err := json.Unmarshal([]byte(raw), &answer); err != nil {
		start := bytes.IndexByte([]byte(raw), '{')
		end := bytes.LastIndexByte([]byte(raw), '}')
		if start == -1 || end <= start {
			return nil, fmt.Errorf("failed to parse categorization response: %w", err)
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &answer); err != nil {
			return nil, fmt.Errorf("failed to parse categorization response: %w", err)
		}
	}

	category, ok := NormalizeCategory(answer.Category)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, answer.Category)
	}

	confidence := 0.0
	if answer.Confidence != nil {
		confidence = clampConfidence(*answer.Confidence)
	}

	return &models.Categorization{Category: category, Confidence: confidence}, nil
}

// NormalizeCategory lowercases a model-supplied label and folds it into one word.
// Multi-word labels are joined with '-'; other punctuation is dropped.
func NormalizeCategory(raw string) (string, bool) {
	var parts []string
	for _, w := range strings.Fields(strings.ToLower(raw)) {
		w = strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
				return r
			}
			return -1
		}, w)
		if w != "" {
			parts = append(parts, w)
		}
	}
	category := strings.Trim(strings.Join(parts, "-"), "-_")
	if len([]rune(category)) > validation.MaxCategoryLength {
		category = string([]rune(category)[:validation.MaxCategoryLength])
	}
	if !validation.IsSingleWord(category) {
		return "", false
	}
	return category, true
}

func clampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
