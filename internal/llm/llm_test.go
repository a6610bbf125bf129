package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/choigod1023/american-stock-news-discord-bot/internal/config"
)

func TestResponseString(t *testing.T) {
	r := &Response{Text: strings.Repeat("가", 80), Model: "m", Provider: "p", Usage: Usage{TotalTokens: 7}}
	s := r.String()
	if !strings.Contains(s, "[p/m]") || !strings.Contains(s, "7 tokens") || !strings.Contains(s, "...") {
		t.Fatalf("unexpected string: %s", s)
	}
}

func TestProvidersRequireKey(t *testing.T) {
	if _, err := NewGeminiProvider(""); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("gemini: expected ErrNoAPIKey, got %v", err)
	}
	if _, err := NewOpenAIProvider(""); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("openai: expected ErrNoAPIKey, got %v", err)
	}
}

func TestGeminiComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.5-flash:generateContent" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "gem-key" {
			t.Error("missing API key header")
		}
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "나스닥 요약" {
			t.Errorf("unexpected request: %+v", req)
		}

		json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []geminiCandidate{{
				Content:      geminiContent{Role: "model", Parts: []geminiPart{{Text: "나스닥 "}, {Text: "상승"}}},
				FinishReason: "STOP",
			}},
			UsageMetadata: geminiUsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 8, TotalTokenCount: 18},
		})
	}))
	defer server.Close()

	p, _ := NewGeminiProvider("gem-key")
	p.baseURL = server.URL

	resp, err := p.Complete(context.Background(), "나스닥 요약")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "나스닥 상승" {
		t.Fatalf("unexpected text: %s", resp.Text)
	}
	if resp.Provider != ProviderGemini || resp.Usage.TotalTokens != 18 || resp.Model != DefaultGeminiModel {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGeminiErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"bad key", http.StatusForbidden, `{"error":{"code":403,"message":"denied"}}`, ErrNoAPIKey},
		{"rate limit", http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota"}}`, ErrRateLimit},
		{"unknown model", http.StatusNotFound, `{"error":{"code":404,"message":"models/x is not found"}}`, ErrInvalidModel},
		{"server down", http.StatusBadGateway, `upstream`, ErrProviderDown},
		{"no candidates", http.StatusOK, `{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`, ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p, _ := NewGeminiProvider("k")
			p.baseURL = server.URL
			if _, err := p.Complete(context.Background(), "x"); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestGeminiPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			w.Write([]byte(`{"models":[]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	p, _ := NewGeminiProvider("gem-key")
	p.baseURL = server.URL
	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestOpenAIComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Error("missing bearer token")
		}
		var req openAIChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "gpt-4o" || len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("unexpected request: %+v", req)
		}
		if req.Temperature == nil || *req.Temperature != 0.2 {
			t.Errorf("temperature not forwarded: %+v", req.Temperature)
		}

		w.Write([]byte(`{"id":"c1","model":"gpt-4o-2024","choices":[{"index":0,"message":{"role":"assistant","content":"요약"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`))
	}))
	defer server.Close()

	p, _ := NewOpenAIProvider("sk-test",
		WithOpenAIBaseURL(server.URL+"/"),
		WithOpenAIOptions(Options{Temperature: 0.2, Timeout: time.Second}),
		WithOpenAIModel("gpt-4o"),
	)
	resp, err := p.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "요약" || resp.Model != "gpt-4o-2024" || resp.Usage.TotalTokens != 7 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestOpenAIErrorHandling(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"auth"}}`, ErrNoAPIKey},
		{"rate limit", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, ErrRateLimit},
		{"context length", http.StatusBadRequest, `{"error":{"message":"too long","code":"context_length_exceeded"}}`, ErrContextLength},
		{"empty", http.StatusOK, `{"choices":[]}`, ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p, _ := NewOpenAIProvider("k", WithOpenAIBaseURL(server.URL))
			if _, err := p.Complete(context.Background(), "x"); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

type fakeProvider struct {
	name  string
	calls atomic.Int32
	fail  []error
	text  string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Ping(ctx context.Context) error { return nil }

func (f *fakeProvider) Complete(ctx context.Context, prompt string) (*Response, error) {
	n := int(f.calls.Add(1))
	if n <= len(f.fail) {
		return nil, f.fail[n-1]
	}
	return &Response{Text: f.text, Provider: f.name}, nil
}

func TestRouterRetriesThenSucceeds(t *testing.T) {
	primary := &fakeProvider{name: "a", fail: []error{ErrRateLimit}, text: "ok"}
	r := NewRouter("a", WithMaxRetries(1), WithRetryDelay(time.Millisecond))
	r.RegisterProvider(primary)

	text, err := r.Generate(context.Background(), "p")
	if err != nil || text != "ok" {
		t.Fatalf("got %q, %v", text, err)
	}
	if primary.calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", primary.calls.Load())
	}
}

func TestRouterFallsBack(t *testing.T) {
	primary := &fakeProvider{name: "a", fail: []error{ErrNoAPIKey, ErrNoAPIKey}}
	backup := &fakeProvider{name: "b", text: "from b"}
	r := NewRouter("a", WithFallbacks("b"), WithMaxRetries(3), WithRetryDelay(time.Millisecond))
	r.RegisterProvider(primary)
	r.RegisterProvider(backup)

	text, err := r.Generate(context.Background(), "p")
	if err != nil || text != "from b" {
		t.Fatalf("got %q, %v", text, err)
	}
	if primary.calls.Load() != 1 {
		t.Fatalf("auth errors must not be retried, got %d calls", primary.calls.Load())
	}
}

func TestRouterAllFail(t *testing.T) {
	r := NewRouter("a", WithFallbacks("b"), WithMaxRetries(0))
	r.RegisterProvider(&fakeProvider{name: "a", fail: []error{ErrProviderDown}})
	r.RegisterProvider(&fakeProvider{name: "b", fail: []error{ErrRateLimit}})

	_, err := r.Generate(context.Background(), "p")
	if !errors.Is(err, ErrRateLimit) {
		t.Fatalf("expected last error wrapped, got %v", err)
	}
}

func TestRouterNoProviders(t *testing.T) {
	r := NewRouter("gemini")
	if _, err := r.Generate(context.Background(), "p"); !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestNewRouterFromConfig(t *testing.T) {
	if _, err := NewRouterFromConfig(config.LLMConfig{}, nil); !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}

	r, err := NewRouterFromConfig(config.LLMConfig{
		Primary:   "openai",
		GeminiKey: "g",
		OpenAIKey: "o",
		Model:     "gemini-2.5-pro",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	names := r.ProviderNames()
	if len(names) != 2 || names[0] != ProviderOpenAI || names[1] != ProviderGemini {
		t.Fatalf("unexpected chain: %v", names)
	}
	g, _ := r.GetProvider(ProviderGemini)
	if m := g.(*GeminiProvider).Model(); m != "gemini-2.5-pro" {
		t.Fatalf("gemini model: got %q", m)
	}
	o, _ := r.GetProvider(ProviderOpenAI)
	if m := o.(*OpenAIProvider).Model(); m != DefaultOpenAIModel {
		t.Fatalf("openai model: got %q", m)
	}
}
