package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/choigod1023/american-stock-news-discord-bot/internal/config"
)

// Router sends prompts to the primary provider and falls back in order.
type Router struct {
	mu         sync.RWMutex
	providers  map[string]Provider
	primary    string
	fallbacks  []string
	maxRetries int
	retryDelay time.Duration
	log        *slog.Logger
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithFallbacks sets the fallback provider chain.
func WithFallbacks(providers ...string) RouterOption {
	return func(r *Router) { r.fallbacks = providers }
}

// WithMaxRetries sets the maximum number of retry attempts per provider.
func WithMaxRetries(n int) RouterOption {
	return func(r *Router) { r.maxRetries = n }
}

// WithRetryDelay sets the base delay between retries.
func WithRetryDelay(d time.Duration) RouterOption {
	return func(r *Router) { r.retryDelay = d }
}

// WithRouterLogger sets the logger.
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(r *Router) { r.log = l }
}

// NewRouter creates a router with the given primary provider name.
func NewRouter(primary string, opts ...RouterOption) *Router {
	r := &Router{
		providers:  make(map[string]Provider),
		primary:    primary,
		maxRetries: 1,
		retryDelay: time.Second,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterProvider adds a provider to the router.
func (r *Router) RegisterProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// GetProvider returns a registered provider by name.
func (r *Router) GetProvider(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Name identifies the router by its primary provider.
func (r *Router) Name() string {
	return "router/" + r.primary
}

// ProviderNames returns the chain in the order it is tried.
func (r *Router) ProviderNames() []string {
	var names []string
	for _, n := range r.providerChain() {
		if _, ok := r.GetProvider(n); ok {
			names = append(names, n)
		}
	}
	return names
}

// Generate returns the answer text for prompt.
func (r *Router) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := r.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Complete tries the primary provider, then each fallback.
func (r *Router) Complete(ctx context.Context, prompt string) (*Response, error) {
	chain := r.providerChain()

	var lastErr error
	tried := 0
	for _, name := range chain {
		provider, ok := r.GetProvider(name)
		if !ok {
			continue
		}
		tried++

		resp, err := r.completeWithRetry(ctx, provider, prompt)
		if err == nil {
			r.log.Debug("llm response", "provider", name, "model", resp.Model,
				"tokens", resp.Usage.TotalTokens, "latency", resp.Latency.Round(time.Millisecond))
			return resp, nil
		}

		lastErr = err
		r.log.Warn("llm provider failed, trying next", "provider", name, "error", err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if tried == 0 {
		return nil, ErrNoProviders
	}
	return nil, fmt.Errorf("llm/router: all providers failed, last error: %w", lastErr)
}

// HealthCheck pings all registered providers.
func (r *Router) HealthCheck(ctx context.Context) map[string]error {
	r.mu.RLock()
	providers := make(map[string]Provider, len(r.providers))
	for k, v := range r.providers {
		providers[k] = v
	}
	r.mu.RUnlock()

	results := make(map[string]error, len(providers))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, provider := range providers {
		wg.Add(1)
		go func(n string, p Provider) {
			defer wg.Done()
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			err := p.Ping(pingCtx)
			mu.Lock()
			results[n] = err
			mu.Unlock()
		}(name, provider)
	}
	wg.Wait()
	return results
}

func (r *Router) providerChain() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain := []string{r.primary}
	for _, fb := range r.fallbacks {
		if fb != r.primary {
			chain = append(chain, fb)
		}
	}
	return chain
}

func (r *Router) completeWithRetry(ctx context.Context, p Provider, prompt string) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.retryDelay * time.Duration(attempt)):
			}
		}
		resp, err := p.Complete(ctx, prompt)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if isNonRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// isNonRetryable reports errors that retrying the same provider cannot fix.
func isNonRetryable(err error) bool {
	return errors.Is(err, ErrNoAPIKey) ||
		errors.Is(err, ErrInvalidModel) ||
		errors.Is(err, ErrContextLength)
}

// NewRouterFromConfig registers every provider that has a key. The
// configured primary goes first; the others become fallbacks.
func NewRouterFromConfig(cfg config.LLMConfig, log *slog.Logger) (*Router, error) {
	if log == nil {
		log = slog.Default()
	}
	primary := strings.ToLower(cfg.Primary)
	if primary == "" {
		primary = ProviderGemini
	}
	router := NewRouter(primary,
		WithMaxRetries(cfg.MaxRetries),
		WithRetryDelay(time.Second),
		WithRouterLogger(log),
	)

	opts := Options{
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}

	var fallbacks []string
	registered := 0

	if cfg.GeminiKey != "" {
		p, err := NewGeminiProvider(cfg.GeminiKey,
			WithGeminiOptions(opts),
			WithGeminiModel(modelFor(cfg, ProviderGemini)),
		)
		if err == nil {
			router.RegisterProvider(p)
			registered++
			if primary != ProviderGemini {
				fallbacks = append(fallbacks, ProviderGemini)
			}
		}
	}

	if cfg.OpenAIKey != "" {
		popts := []OpenAIOption{
			WithOpenAIOptions(opts),
			WithOpenAIModel(modelFor(cfg, ProviderOpenAI)),
		}
		if cfg.OpenAIBaseURL != "" {
			popts = append(popts, WithOpenAIBaseURL(cfg.OpenAIBaseURL))
		}
		p, err := NewOpenAIProvider(cfg.OpenAIKey, popts...)
		if err == nil {
			router.RegisterProvider(p)
			registered++
			if primary != ProviderOpenAI {
				fallbacks = append(fallbacks, ProviderOpenAI)
			}
		}
	}

	if registered == 0 {
		return nil, ErrNoProviders
	}
	router.fallbacks = fallbacks
	return router, nil
}

// modelFor applies the configured model only to the provider it belongs to.
func modelFor(cfg config.LLMConfig, provider string) string {
	m := cfg.Model
	switch provider {
	case ProviderGemini:
		if strings.HasPrefix(m, "gemini") {
			return m
		}
		return DefaultGeminiModel
	case ProviderOpenAI:
		if m != "" && !strings.HasPrefix(m, "gemini") {
			return m
		}
		return DefaultOpenAIModel
	}
	return m
}
