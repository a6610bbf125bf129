package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/choigod1023/american-stock-news-discord-bot/pkg/models"
)

// Default upstream endpoints.
const (
	DefaultCommunityURL = "https://api.saveticker.com/api/community/list"
	DefaultNewsURL      = "https://api.saveticker.com/api/news/list"

	siteBaseURL  = "https://saveticker.com"
	assetBaseURL = "https://api.saveticker.com"
)

// Report page sizes: requests above MaxReportPageSize are rejected upstream,
// and a 422 is retried once at StepDownPageSize.
const (
	MaxReportPageSize = 100
	StepDownPageSize  = 50
)

// DetailURL builds the public page link for an item.
func DetailURL(src models.Source, id string) string {
	if id == "" {
		return ""
	}
	if src == models.SourceNews {
		return siteBaseURL + "/news/" + id
	}
	return siteBaseURL + "/community/" + id
}

// NormalizeThumbnail returns an absolute http(s) URL or "".
func NormalizeThumbnail(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	case strings.HasPrefix(raw, "/"):
		return assetBaseURL + raw
	default:
		return ""
	}
}

// Client reads pages from the community and newsroom APIs.
type Client struct {
	http         *http.Client
	limiter      *rate.Limiter
	communityURL string
	newsURL      string
	log          *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit caps upstream requests per second (burst 2). Zero disables it.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 2)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient creates a Client. Empty URLs fall back to the defaults.
func NewClient(communityURL, newsURL string, opts ...ClientOption) *Client {
	if communityURL == "" {
		communityURL = DefaultCommunityURL
	}
	if newsURL == "" {
		newsURL = DefaultNewsURL
	}
	c := &Client{
		http:         &http.Client{Timeout: DefaultTimeout},
		limiter:      rate.NewLimiter(rate.Limit(4), 2),
		communityURL: communityURL,
		newsURL:      newsURL,
		log:          slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FetchPage returns one page of src in upstream order (newest last).
func (c *Client) FetchPage(ctx context.Context, src models.Source, page, pageSize int) ([]models.NewsItem, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	q.Set("sort", "created_at_desc")

	var (
		base  string
		field string
	)
	switch src {
	case models.SourceCommunity:
		base, field = c.communityURL, "posts"
		q.Set("category", "user_news")
		q.Set("search", "")
	case models.SourceNews:
		base, field = c.newsURL, "news_list"
	default:
		return nil, fmt.Errorf("unknown source %q", src)
	}

	body, err := doGet(ctx, c.http, c.limiter, base+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s page %d: %w", src, page, err)
	}
	defer body.Close()

	return decodeList(body, field, src)
}

// FetchLatest fetches page 1 of both sources concurrently and merges them.
// One failing source is logged and the other is still used; when both fail
// the error wraps ErrBothSourcesFailed.
func (c *Client) FetchLatest(ctx context.Context, pageSize int) ([]models.NewsItem, error) {
	var (
		g                  errgroup.Group
		community, news    []models.NewsItem
		communityErr, nErr error
	)
	g.Go(func() error {
		community, communityErr = c.FetchPage(ctx, models.SourceCommunity, 1, pageSize)
		return nil
	})
	g.Go(func() error {
		news, nErr = c.FetchPage(ctx, models.SourceNews, 1, pageSize)
		return nil
	})
	_ = g.Wait()

	if communityErr != nil && nErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrBothSourcesFailed, errors.Join(communityErr, nErr))
	}
	if communityErr != nil {
		c.log.Warn("community source failed", "error", communityErr)
	}
	if nErr != nil {
		c.log.Warn("news source failed", "error", nErr)
	}

	merged := Merge(community, news)
	c.log.Debug("sources merged", "community", len(community), "news", len(news), "merged", len(merged))
	return merged, nil
}

// ReportPageSize doubles the report size, capped at MaxReportPageSize.
func ReportPageSize(reportSize int) int {
	n := reportSize * 2
	if n > MaxReportPageSize {
		n = MaxReportPageSize
	}
	if n < 1 {
		n = 1
	}
	return n
}

// FetchReportBatch fetches the community page used for digests. Items keep
// the upstream page order, which is the order the selector scans.
// A 422 response is retried once with StepDownPageSize.
func (c *Client) FetchReportBatch(ctx context.Context, reportSize int) ([]models.NewsItem, error) {
	size := ReportPageSize(reportSize)
	items, err := c.FetchPage(ctx, models.SourceCommunity, 1, size)
	if errors.Is(err, ErrPayloadTooLarge) && size > StepDownPageSize {
		c.log.Warn("report page size rejected, retrying smaller", "page_size", size, "retry", StepDownPageSize)
		items, err = c.FetchPage(ctx, models.SourceCommunity, 1, StepDownPageSize)
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}
