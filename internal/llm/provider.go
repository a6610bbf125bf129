// Package llm wraps hosted text-generation APIs (Gemini, OpenAI) behind a
// single prompt-in, text-out interface, with a router that falls back
// between providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider names for routing and configuration.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Common errors returned by providers.
var (
	ErrNoAPIKey      = errors.New("llm: API key not configured")
	ErrRateLimit     = errors.New("llm: rate limit exceeded")
	ErrContextLength = errors.New("llm: context length exceeded")
	ErrProviderDown  = errors.New("llm: provider unavailable")
	ErrInvalidModel  = errors.New("llm: invalid model")
	ErrEmptyResponse = errors.New("llm: empty response")
	ErrNoProviders   = errors.New("llm: no providers configured")
)

// Response is a completed generation.
type Response struct {
	Text     string        `json:"text"`
	Model    string        `json:"model"`
	Provider string        `json:"provider"`
	Usage    Usage         `json:"usage"`
	Latency  time.Duration `json:"latency"`
}

// Usage tracks token consumption for a request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// String returns a short human-readable description.
func (r *Response) String() string {
	text := []rune(r.Text)
	if len(text) > 60 {
		text = append(text[:60], []rune("...")...)
	}
	return fmt.Sprintf("[%s/%s] %q, %d tokens, %v",
		r.Provider, r.Model, string(text), r.Usage.TotalTokens, r.Latency.Round(time.Millisecond))
}

// Provider is a hosted model reachable over REST.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Complete sends a single user prompt and returns the model's answer.
	Complete(ctx context.Context, prompt string) (*Response, error)

	// Ping checks that the provider is reachable and the key is accepted.
	Ping(ctx context.Context) error
}

// Options holds generation parameters shared by providers.
type Options struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Timeout     time.Duration `json:"timeout"`
}

// DefaultOptions returns defaults suited to short market summaries.
func DefaultOptions() Options {
	return Options{
		Temperature: 0.4,
		MaxTokens:   1024,
		Timeout:     60 * time.Second,
	}
}
