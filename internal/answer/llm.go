// Package answer turns retrieved chunks into a final answer with sources
// and a confidence estimate.
package answer

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/docsage/docsage/internal/apperr"
	"github.com/docsage/docsage/internal/retry"
)

// LLM generates a completion for a prompt.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Defaults for the OpenAI-compatible chat client.
const (
	DefaultChatModel   = "gpt-4o-mini"
	DefaultTemperature = 0.1
	DefaultLLMRetries  = 3
	DefaultLLMBackoff  = time.Second
	DefaultLLMTimeout  = 60 * time.Second
)

// OpenAIConfig configures the chat completion client.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxRetries  int
	BaseBackoff time.Duration
	Timeout     time.Duration
}

// OpenAILLM calls an OpenAI-compatible chat completions endpoint.
type OpenAILLM struct {
	client      *openai.Client
	model       string
	temperature float32
	maxRetries  int
	baseBackoff time.Duration
}

// NewOpenAILLM creates a chat client. The API key is required.
func NewOpenAILLM(cfg OpenAIConfig) (*OpenAILLM, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("generation API key is not set")
	}
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultLLMTimeout
	}
	cc.HTTPClient = &http.Client{Timeout: timeout}

	l := &OpenAILLM{
		client:      openai.NewClientWithConfig(cc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.BaseBackoff,
	}
	if l.model == "" {
		l.model = DefaultChatModel
	}
	if l.temperature <= 0 {
		l.temperature = DefaultTemperature
	}
	if l.maxRetries <= 0 {
		l.maxRetries = DefaultLLMRetries
	}
	if l.baseBackoff <= 0 {
		l.baseBackoff = DefaultLLMBackoff
	}
	return l, nil
}

// Complete sends one prompt and returns the model's reply. Transient failures
// are retried with linear backoff; authentication and permission errors are
// not retried.
func (l *OpenAILLM) Complete(ctx context.Context, prompt string) (string, error) {
	var text string
	policy := retry.Policy{
		MaxAttempts: l.maxRetries,
		Backoff:     retry.Linear(l.baseBackoff),
		Retryable:   retryableGenerationError,
	}
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       l.model,
			Temperature: l.temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("completion returned no choices")
		}
		text = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", apperr.Wrap(apperr.GenerationError, "GENERATION_ERROR", "chat completion failed", err)
	}
	return text, nil
}

func retryableGenerationError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return false
		case http.StatusTooManyRequests:
			return true
		}
		return apiErr.HTTPStatusCode >= 500
	}
	return true
}
