package datasource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/choigod1023/american-stock-news-discord-bot/internal/classifier"
	"github.com/choigod1023/american-stock-news-discord-bot/pkg/models"
)

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexInt accepts a JSON number (integral or not), a numeric string, or null.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Malformed counters default to zero rather than failing the page.
		*f = 0
		return nil
	}
	*f = flexInt(v)
	return nil
}

// rawItem mirrors one element of the posts / news_list arrays.
type rawItem struct {
	ID           flexString `json:"id"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	AuthorName   string     `json:"author_name"`
	AuthorPoints flexInt    `json:"author_points"`
	CreatedAt    string     `json:"created_at"`
	LikeStats    *struct {
		LikeCount flexInt `json:"like_count"`
	} `json:"like_stats"`
	LikeCount     *flexInt `json:"like_count"`
	ViewCount     flexInt  `json:"view_count"`
	CommentCount  flexInt  `json:"comment_count"`
	CommunityTags []string `json:"community_tags"`
	TagNames      []string `json:"tag_names"`
	Thumbnail     string   `json:"thumbnail"`
}

func (r rawItem) toModel(src models.Source) models.NewsItem {
	likes := 0
	if r.LikeStats != nil {
		likes = int(r.LikeStats.LikeCount)
	} else if r.LikeCount != nil {
		likes = int(*r.LikeCount)
	}
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = classifier.UntitledPlaceholder
	}
	tags := r.CommunityTags
	if len(tags) == 0 {
		tags = r.TagNames
	}
	id := string(r.ID)
	return models.NewsItem{
		ID:           id,
		Title:        title,
		Content:      cleanHTML(r.Content),
		Author:       strings.TrimSpace(r.AuthorName),
		AuthorPoints: int(r.AuthorPoints),
		CreatedAt:    r.CreatedAt,
		Source:       src,
		LikeCount:    likes,
		ViewCount:    int(r.ViewCount),
		CommentCount: int(r.CommentCount),
		Tags:         tags,
		Thumbnail:    NormalizeThumbnail(r.Thumbnail),
		URL:          DetailURL(src, id),
	}
}

// decodeList reads the named list field of an upstream response body.
// A missing field is an empty page, not an error.
func decodeList(r io.Reader, field string, src models.Source) ([]models.NewsItem, error) {
	var envelope map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", src, err)
	}
	raw, ok := envelope[field]
	if !ok || string(raw) == "null" {
		return nil, nil
	}
	var items []rawItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode %s.%s: %w", src, field, err)
	}
	out := make([]models.NewsItem, 0, len(items))
	for _, it := range items {
		out = append(out, it.toModel(src))
	}
	return out, nil
}
