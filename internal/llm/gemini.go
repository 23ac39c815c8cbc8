// Package llm provides the generative model clients used for translation
// and classification.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/expense-voice/internal/retry"
)

// DefaultModelName is used when no model is configured.
const DefaultModelName = "gemini-2.5-flash"

// contentGenerator is the subset of genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
	Retry       retry.Config
}

// GeminiClient generates text with the Gemini API.
type GeminiClient struct {
	models      contentGenerator
	model       string
	temperature float32
	timeout     time.Duration
	retry       retry.Config
	log         zerolog.Logger
}

// NewGeminiClient creates a client. An empty APIKey lets genai read
// GEMINI_API_KEY or GOOGLE_API_KEY from the environment.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, log zerolog.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClient: create genai client: %w", err)
	}
	return newGeminiClient(client.Models, cfg, log), nil
}

func newGeminiClient(models contentGenerator, cfg GeminiConfig, log zerolog.Logger) *GeminiClient {
	if cfg.Model == "" {
		cfg.Model = DefaultModelName
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	return &GeminiClient{
		models:      models,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		retry:       cfg.Retry,
		log:         log.With().Str("model", cfg.Model).Logger(),
	}
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string { return c.model }

// Generate sends prompt as a single user turn and returns the response text.
// A completed call with no text returns "" and a nil error; callers decide
// what an empty answer means.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{Temperature: genai.Ptr(c.temperature)}

	var text string
	start := time.Now()
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
		if err != nil {
			return wrapAPIError(err)
		}
		text = strings.TrimSpace(resp.Text())
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("Generate: %w", err)
	}

	if text == "" {
		c.log.Warn().Dur("duration", time.Since(start)).Msg("Model returned no text")
		return "", nil
	}

	c.log.Debug().
		Dur("duration", time.Since(start)).
		Int("prompt_chars", len(prompt)).
		Int("response_chars", len(text)).
		Msg("Model call succeeded")
	return text, nil
}

// apiError adds retry classification to genai.APIError.
type apiError struct {
	genai.APIError
}

func (e *apiError) Unwrap() error { return e.APIError }

func (e *apiError) Retryable() bool {
	return retry.IsRetryableHTTPStatus(e.Code)
}

func wrapAPIError(err error) error {
	var ae genai.APIError
	if errors.As(err, &ae) {
		return &apiError{APIError: ae}
	}
	return err
}
