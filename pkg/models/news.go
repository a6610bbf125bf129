package models

import "time"

// Source identifies which upstream system an item came from.
type Source string

const (
	SourceCommunity Source = "community" // user posts, fetched first
	SourceNews      Source = "news"      // official newsroom
	SourceFeed      Source = "feed"      // optional RSS feeds, report path only
)

// Level is the delivery classification of a news item.
type Level string

const (
	LevelBreaking  Level = "breaking"
	LevelImportant Level = "important"
	LevelNormal    Level = "normal"
)

// NewsItem is a single post from one of the upstream news APIs.
// Optional upstream fields are flattened to zero values on decode.
type NewsItem struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Author       string    `json:"author"`
	AuthorPoints int       `json:"author_points,omitempty"`
	CreatedAt    string    `json:"created_at"` // raw ISO-8601, may be empty
	Source       Source    `json:"source"`
	LikeCount    int       `json:"like_count"`
	ViewCount    int       `json:"view_count"`
	CommentCount int       `json:"comment_count"`
	Tags         []string  `json:"tags,omitempty"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
	URL          string    `json:"url,omitempty"`
	FetchedAt    time.Time `json:"fetched_at,omitempty"`
}

// Key returns the source-qualified identifier used for cross-cycle dedup.
func (n NewsItem) Key() string {
	if n.Source == "" {
		return n.ID
	}
	return string(n.Source) + ":" + n.ID
}

// Popularity is the engagement measure used for tie-breaking and fallback ranking.
func (n NewsItem) Popularity() float64 {
	return float64(n.LikeCount) + float64(n.ViewCount)*0.1
}

// Classification is the outcome of classifying one item.
type Classification struct {
	Level       Level `json:"level"`
	DigestStyle bool  `json:"digest_style"`
}

// Pinned reports whether cards of this level are pinned after delivery.
func (c Classification) Pinned() bool {
	return c.Level == LevelBreaking || c.Level == LevelImportant
}

// ScoredItem is a report candidate with its importance score.
type ScoredItem struct {
	Item  NewsItem `json:"item"`
	Score int      `json:"score"`
}
