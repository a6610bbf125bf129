// Package market collects the NASDAQ composite quote and the crypto Fear &
// Greed index, retrying transient failures and serving the last good value
// when every endpoint is down.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/choigod1023/american-stock-news-discord-bot/pkg/models"
)

// Default endpoints.
const (
	DefaultYahooPrimary      = "https://query1.finance.yahoo.com/v8/finance/chart/%5EIXIC"
	DefaultYahooFallback     = "https://query2.finance.yahoo.com/v8/finance/chart/%5EIXIC"
	DefaultFearGreedPrimary  = "https://api.alternative.me/fng/"
	DefaultFearGreedFallback = "https://api.alternative.me/fng/?limit=1"

	NasdaqSymbol = "^IXIC"

	MaxAttempts = 3
	baseDelay   = 700 * time.Millisecond
	maxJitter   = 300 * time.Millisecond
	userAgent   = "Mozilla/5.0 (compatible; StockNewsBot/1.0; +https://saveticker.com)"
)

// ErrUnavailable is returned when an indicator could not be fetched and
// nothing is cached for it.
var ErrUnavailable = errors.New("market: indicator unavailable")

// ErrStatus reports a non-200 answer.
type ErrStatus struct {
	URL  string
	Code int
}

func (e *ErrStatus) Error() string {
	return fmt.Sprintf("market: %s returned HTTP %d", e.URL, e.Code)
}

// Transient reports whether the status is worth retrying.
func (e *ErrStatus) Transient() bool {
	switch e.Code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Endpoints holds primary and fallback URLs per indicator.
type Endpoints struct {
	YahooPrimary      string
	YahooFallback     string
	FearGreedPrimary  string
	FearGreedFallback string
}

// DefaultEndpoints returns the production URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		YahooPrimary:      DefaultYahooPrimary,
		YahooFallback:     DefaultYahooFallback,
		FearGreedPrimary:  DefaultFearGreedPrimary,
		FearGreedFallback: DefaultFearGreedFallback,
	}
}

// Collector fetches both indicators. It is safe for concurrent use.
type Collector struct {
	endpoints Endpoints
	client    *http.Client
	newBO     func() backoff.BackOff
	now       func() time.Time
	log       *slog.Logger

	mu        sync.Mutex
	nasdaq    *models.IndexQuote
	fearGreed *models.FearGreed
}

// Option configures a Collector.
type Option func(*Collector)

// WithEndpoints overrides the URLs.
func WithEndpoints(e Endpoints) Option {
	return func(c *Collector) { c.endpoints = e }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Collector) { c.client = hc }
}

// WithBackOff sets the retry delay policy. The factory is called once per
// endpoint attempt sequence.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(c *Collector) { c.newBO = f }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) { c.log = l }
}

// NewCollector creates a Collector with production defaults.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		endpoints: DefaultEndpoints(),
		client:    &http.Client{Timeout: 10 * time.Second},
		newBO:     func() backoff.BackOff { return &jitterBackOff{base: baseDelay, jitter: maxJitter} },
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Collect fetches both indicators concurrently. A missing indicator is nil
// in the snapshot; it never fails the whole collection.
func (c *Collector) Collect(ctx context.Context) models.MarketSnapshot {
	var snap models.MarketSnapshot
	var g errgroup.Group
	g.Go(func() error {
		q, err := c.Nasdaq(ctx)
		if err != nil {
			c.log.Warn("nasdaq quote unavailable", "error", err)
			return nil
		}
		snap.Nasdaq = q
		return nil
	})
	g.Go(func() error {
		fg, err := c.FearGreed(ctx)
		if err != nil {
			c.log.Warn("fear & greed index unavailable", "error", err)
			return nil
		}
		snap.FearGreed = fg
		return nil
	})
	_ = g.Wait()
	return snap
}

// Nasdaq returns the live quote, or the cached quote marked stale when both
// endpoints fail.
func (c *Collector) Nasdaq(ctx context.Context) (*models.IndexQuote, error) {
	q, err := fetchWithFallback(ctx, c, c.endpoints.YahooPrimary, c.endpoints.YahooFallback, parseChart)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		q.FetchedAt = c.now()
		c.nasdaq = q
		out := *q
		return &out, nil
	}
	if c.nasdaq == nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	c.log.Info("serving cached nasdaq quote", "fetched_at", c.nasdaq.FetchedAt, "error", err)
	out := *c.nasdaq
	out.Stale = true
	return &out, nil
}

// FearGreed returns the live index, or the cached value marked stale when
// both endpoints fail.
func (c *Collector) FearGreed(ctx context.Context) (*models.FearGreed, error) {
	fg, err := fetchWithFallback(ctx, c, c.endpoints.FearGreedPrimary, c.endpoints.FearGreedFallback, parseFearGreed)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		fg.FetchedAt = c.now()
		c.fearGreed = fg
		out := *fg
		return &out, nil
	}
	if c.fearGreed == nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	c.log.Info("serving cached fear & greed index", "fetched_at", c.fearGreed.FetchedAt, "error", err)
	out := *c.fearGreed
	out.Stale = true
	return &out, nil
}

func fetchWithFallback[T any](ctx context.Context, c *Collector, primary, fallback string, parse func([]byte) (T, error)) (T, error) {
	var errs []error
	for _, u := range []string{primary, fallback} {
		if u == "" {
			continue
		}
		v, err := fetchRetry(ctx, c, u, parse)
		if err == nil {
			return v, nil
		}
		c.log.Debug("market endpoint failed", "url", u, "error", err)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	var zero T
	if len(errs) == 0 {
		return zero, errors.New("market: no endpoints configured")
	}
	return zero, errors.Join(errs...)
}

func fetchRetry[T any](ctx context.Context, c *Collector, url string, parse func([]byte) (T, error)) (T, error) {
	op := func() (T, error) {
		var zero T
		body, err := c.get(ctx, url)
		if err != nil {
			if !isTransient(err) {
				return zero, backoff.Permanent(err)
			}
			return zero, err
		}
		v, err := parse(body)
		if err != nil {
			return zero, backoff.Permanent(err)
		}
		return v, nil
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBO()),
		backoff.WithMaxTries(MaxAttempts),
		backoff.WithNotify(func(err error, d time.Duration) {
			c.log.Debug("retrying market request", "url", url, "delay", d, "error", err)
		}),
	)
}

func (c *Collector) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &ErrStatus{URL: url, Code: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, 2<<20))
}

func isTransient(err error) bool {
	var se *ErrStatus
	if errors.As(err, &se) {
		return se.Transient()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	// Transport failures that are not net.Error (connection reset mid-body).
	return errors.Is(err, io.ErrUnexpectedEOF)
}

// jitterBackOff waits base<<attempt plus up to jitter.
type jitterBackOff struct {
	base    time.Duration
	jitter  time.Duration
	attempt int
}

func (b *jitterBackOff) NextBackOff() time.Duration {
	d := b.base << b.attempt
	b.attempt++
	if b.jitter > 0 {
		d += rand.N(b.jitter)
	}
	return d
}

func (b *jitterBackOff) Reset() { b.attempt = 0 }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string   `json:"symbol"`
				Currency           string   `json:"currency"`
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
				PreviousClose      *float64 `json:"previousClose"`
				ChartPreviousClose *float64 `json:"chartPreviousClose"`
				MarketState        string   `json:"marketState"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func parseChart(body []byte) (*models.IndexQuote, error) {
	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("market: decode chart: %w", err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("market: chart error %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, errors.New("market: chart has no result")
	}
	meta := resp.Chart.Result[0].Meta
	if meta.RegularMarketPrice == nil {
		return nil, errors.New("market: chart has no price")
	}
	prev := meta.PreviousClose
	if prev == nil {
		prev = meta.ChartPreviousClose
	}
	if prev == nil || *prev == 0 {
		return nil, errors.New("market: chart has no previous close")
	}

	price := *meta.RegularMarketPrice
	change := price - *prev
	symbol := meta.Symbol
	if symbol == "" {
		symbol = NasdaqSymbol
	}
	return &models.IndexQuote{
		Symbol:        symbol,
		Price:         price,
		PreviousClose: *prev,
		Change:        change,
		ChangePct:     change / *prev * 100,
		MarketState:   meta.MarketState,
		Currency:      meta.Currency,
	}, nil
}

type fngResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
		Timestamp           string `json:"timestamp"`
	} `json:"data"`
}

func parseFearGreed(body []byte) (*models.FearGreed, error) {
	var resp fngResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("market: decode fear & greed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("market: fear & greed has no data")
	}
	d := resp.Data[0]
	v, err := strconv.Atoi(d.Value)
	if err != nil {
		return nil, fmt.Errorf("market: fear & greed value %q: %w", d.Value, err)
	}
	fg := &models.FearGreed{Value: v, Classification: d.ValueClassification}
	if secs, err := strconv.ParseInt(d.Timestamp, 10, 64); err == nil {
		fg.Timestamp = time.Unix(secs, 0).UTC()
	}
	return fg, nil
}
