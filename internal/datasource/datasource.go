// Package datasource fetches news items from the upstream community and
// newsroom APIs, merges their pages, and reads optional RSS feeds.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

// --- Sentinel errors ---

// ErrBothSourcesFailed is returned when neither upstream API answered.
var ErrBothSourcesFailed = errors.New("both news sources failed")

// ErrPayloadTooLarge is returned when the upstream rejects a page size (HTTP 422).
var ErrPayloadTooLarge = errors.New("page size rejected by upstream")

// ErrHTTP wraps an HTTP error with status code.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// Is lets errors.Is(err, ErrPayloadTooLarge) match a 422 response.
func (e *ErrHTTP) Is(target error) bool {
	return target == ErrPayloadTooLarge && e.StatusCode == http.StatusUnprocessableEntity
}

// --- Shared HTTP client helpers ---

// DefaultUserAgent identifies the bot to upstream APIs.
const DefaultUserAgent = "Mozilla/5.0 (compatible; StockNewsBot/1.0; +https://saveticker.com)"

// DefaultTimeout bounds every upstream request.
const DefaultTimeout = 10 * time.Second

// doGet performs a GET request with the given URL and headers, returning the response body.
// The caller is responsible for closing the returned ReadCloser.
func doGet(ctx context.Context, client *http.Client, limiter *rate.Limiter, url string, headers map[string]string) (io.ReadCloser, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json, */*")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	return resp.Body, nil
}

// cleanHTML strips tags from upstream bodies, keeping the text.
func cleanHTML(s string) string {
	if s == "" || !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}
