// Package classifier decides how urgently a news item is delivered.
package classifier

import (
	"regexp"
	"strings"

	"github.com/choigod1023/american-stock-news-discord-bot/pkg/models"
)

// ImportantViewThreshold is the fixed view count that makes an official item important.
const ImportantViewThreshold = 100

// DefaultBreakingKeywords are used when no keywords are configured.
var DefaultBreakingKeywords = []string{"속보", "긴급", "중요", "특보", "긴급속보", "특별속보"}

var breakingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[속보\]`),
	regexp.MustCompile(`(?i)\[긴급\]`),
	regexp.MustCompile(`(?i)\[중요\]`),
	regexp.MustCompile(`(?i)\[특보\]`),
	regexp.MustCompile(`(?i)속보:`),
	regexp.MustCompile(`(?i)긴급:`),
	regexp.MustCompile(`(?i)중요:`),
	regexp.MustCompile(`(?i)특보:`),
	regexp.MustCompile(`🚨`),
	regexp.MustCompile(`⚡`),
	regexp.MustCompile(`🔥`),
}

var digestPatterns = []*regexp.Regexp{
	regexp.MustCompile(`장전\s*뉴스?.*한\s*줄\s*요약(\s*모음)?`),
	regexp.MustCompile(`장마감\s*뉴스?.*한\s*줄\s*요약(\s*모음)?`),
	regexp.MustCompile(`장중\s*뉴스?.*한\s*줄\s*요약(\s*모음)?`),
	regexp.MustCompile(`한\s*줄\s*요약\s*모음`),
}

// Classifier applies the breaking, important and digest-style rules.
type Classifier struct {
	keywords      []string // lower-cased
	likeThreshold int
}

// New creates a Classifier. Empty keywords fall back to DefaultBreakingKeywords.
func New(keywords []string, likeThreshold int) *Classifier {
	if len(keywords) == 0 {
		keywords = DefaultBreakingKeywords
	}
	lower := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k != "" {
			lower = append(lower, strings.ToLower(k))
		}
	}
	return &Classifier{keywords: lower, likeThreshold: likeThreshold}
}

// Keywords returns the configured breaking keywords.
func (c *Classifier) Keywords() []string {
	out := make([]string, len(c.keywords))
	copy(out, c.keywords)
	return out
}

// LikeThreshold returns the like count at which official items become important.
func (c *Classifier) LikeThreshold() int { return c.likeThreshold }

// Classify returns the delivery level and the digest-style flag of n.
func (c *Classifier) Classify(n models.NewsItem) models.Classification {
	level := models.LevelNormal
	switch {
	case c.IsBreaking(n):
		level = models.LevelBreaking
	case c.isImportantByEngagement(n):
		level = models.LevelImportant
	}
	return models.Classification{Level: level, DigestStyle: IsDigestStyle(n.Title)}
}

// IsBreaking reports whether n matches a breaking keyword (in title, body or
// any tag) or one of the fixed bracket, colon and emoji patterns.
func (c *Classifier) IsBreaking(n models.NewsItem) bool {
	title := strings.ToLower(n.Title)
	body := strings.ToLower(n.Content)
	for _, k := range c.keywords {
		if strings.Contains(title, k) || strings.Contains(body, k) {
			return true
		}
	}
	for _, tag := range n.Tags {
		tag = strings.ToLower(tag)
		for _, k := range c.keywords {
			if strings.Contains(tag, k) {
				return true
			}
		}
	}
	for _, p := range breakingPatterns {
		if p.MatchString(n.Title) || p.MatchString(n.Content) {
			return true
		}
	}
	return false
}

// IsImportant reports whether n is breaking or an engaged official item.
func (c *Classifier) IsImportant(n models.NewsItem) bool {
	return c.IsBreaking(n) || c.isImportantByEngagement(n)
}

// Community posts never become important through engagement.
func (c *Classifier) isImportantByEngagement(n models.NewsItem) bool {
	if n.Source != models.SourceNews {
		return false
	}
	return n.LikeCount >= c.likeThreshold || n.ViewCount >= ImportantViewThreshold
}

// IsDigestStyle reports whether a title belongs to a rolled-up summary post
// such as "장마감 뉴스 한줄 요약 모음".
func IsDigestStyle(title string) bool {
	if title == "" {
		return false
	}
	if strings.Contains(title, "요약") {
		return true
	}
	for _, p := range digestPatterns {
		if p.MatchString(title) {
			return true
		}
	}
	return false
}

// LevelLabel is the Korean label shown on cards.
func LevelLabel(l models.Level) string {
	switch l {
	case models.LevelBreaking:
		return "속보"
	case models.LevelImportant:
		return "중요"
	default:
		return "일반"
	}
}
