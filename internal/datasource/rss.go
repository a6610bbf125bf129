package datasource

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/choigod1023/american-stock-news-discord-bot/internal/classifier"
	"github.com/choigod1023/american-stock-news-discord-bot/pkg/models"
)

// FeedReader reads extra RSS/Atom feeds that enrich the digest batch.
type FeedReader struct {
	urls   []string
	parser *gofeed.Parser
	log    *slog.Logger
}

// NewFeedReader creates a reader for the given feed URLs.
func NewFeedReader(urls []string, hc *http.Client, log *slog.Logger) *FeedReader {
	p := gofeed.NewParser()
	p.UserAgent = DefaultUserAgent
	if hc != nil {
		p.Client = hc
	}
	if log == nil {
		log = slog.Default()
	}
	return &FeedReader{urls: urls, parser: p, log: log}
}

// Enabled reports whether any feed is configured.
func (f *FeedReader) Enabled() bool { return f != nil && len(f.urls) > 0 }

// Fetch reads every feed, newest first per feed. A failing feed is logged and skipped.
func (f *FeedReader) Fetch(ctx context.Context) []models.NewsItem {
	if !f.Enabled() {
		return nil
	}
	var out []models.NewsItem
	for _, u := range f.urls {
		feed, err := f.parser.ParseURLWithContext(u, ctx)
		if err != nil {
			f.log.Warn("rss feed failed", "url", u, "error", err)
			continue
		}
		for _, it := range feed.Items {
			out = append(out, feedItemToModel(feed, it))
		}
	}
	return out
}

func feedItemToModel(feed *gofeed.Feed, it *gofeed.Item) models.NewsItem {
	id := it.GUID
	if id == "" {
		id = it.Link
	}
	title := it.Title
	if title == "" {
		title = classifier.UntitledPlaceholder
	}
	body := it.Description
	if body == "" {
		body = it.Content
	}
	author := feed.Title
	if it.Author != nil && it.Author.Name != "" {
		author = it.Author.Name
	}
	var created string
	if it.PublishedParsed != nil {
		created = it.PublishedParsed.UTC().Format(time.RFC3339)
	} else if it.UpdatedParsed != nil {
		created = it.UpdatedParsed.UTC().Format(time.RFC3339)
	}
	var thumb string
	if it.Image != nil {
		thumb = NormalizeThumbnail(it.Image.URL)
	}
	return models.NewsItem{
		ID:        id,
		Title:     title,
		Content:   cleanHTML(body),
		Author:    author,
		CreatedAt: created,
		Source:    models.SourceFeed,
		Tags:      it.Categories,
		Thumbnail: thumb,
		URL:       it.Link,
	}
}
