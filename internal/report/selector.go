// Package report selects the items worth a periodic digest and turns them,
// together with market indicators, into the digest text.
package report

import (
	"crypto/md5"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/choigod1023/american-stock-news-discord-bot/pkg/models"
	"github.com/choigod1023/american-stock-news-discord-bot/pkg/utils"
)

// Selection defaults.
const (
	DefaultMaxItems = 30
	LookBack        = 2 * time.Hour
	RecentWindow    = 30 * time.Minute

	bodyPrefixRunes = 100
)

// ScoreKeywords are the high-value terms rewarded in titles.
var ScoreKeywords = []string{
	"속보", "긴급", "중요", "특보", "급등", "급락", "폭등", "폭락",
	"ai", "반도체", "테슬라", "애플", "구글", "마이크로소프트", "아마존",
	"nvidia", "amd", "인텔", "삼성", "sk하이닉스", "lg", "현대차",
	"fed", "연준", "금리", "인플레이션", "gdp", "고용지표",
}

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)

// NormalizeTitle lower-cases, strips punctuation and collapses whitespace.
func NormalizeTitle(title string) string {
	return utils.CollapseSpace(nonWord.ReplaceAllString(strings.ToLower(title), ""))
}

// Selector picks a bounded, deduplicated, score-ordered subset of a batch.
type Selector struct {
	max      int
	keywords []string
	now      func() time.Time
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithNow overrides the clock used for windowing and recency.
func WithNow(now func() time.Time) SelectorOption {
	return func(s *Selector) { s.now = now }
}

// WithKeywords replaces ScoreKeywords.
func WithKeywords(kw []string) SelectorOption {
	return func(s *Selector) {
		s.keywords = make([]string, len(kw))
		for i, k := range kw {
			s.keywords[i] = strings.ToLower(k)
		}
	}
}

// NewSelector creates a Selector keeping at most max items.
func NewSelector(max int, opts ...SelectorOption) *Selector {
	if max <= 0 {
		max = DefaultMaxItems
	}
	s := &Selector{max: max, keywords: ScoreKeywords, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Max returns the selection cap.
func (s *Selector) Max() int { return s.max }

// Select scans items in order and keeps those that are inside the look-back
// window and not duplicates (by normalized title, or by a hash of the first
// 100 runes of the body). Empty bodies share one hash, so only the first
// body-less item survives. The scan stops once max survivors are
// collected, so later items are never considered. Survivors are returned
// sorted by score, highest first; equal scores keep scan order.
func (s *Selector) Select(items []models.NewsItem) []models.ScoredItem {
	now := s.now()
	cutoff := now.Add(-LookBack)

	seenTitles := make(map[string]struct{})
	seenBodies := make(map[[md5.Size]byte]struct{})
	out := make([]models.ScoredItem, 0, s.max)

	for _, n := range items {
		if created, ok := utils.ParseTimestamp(n.CreatedAt); ok && created.Before(cutoff) {
			continue
		}
		if strings.TrimSpace(n.Title) == "" {
			continue
		}
		title := NormalizeTitle(n.Title)
		if _, dup := seenTitles[title]; dup {
			continue
		}
		bodyKey := md5.Sum([]byte(utils.Truncate(n.Content, bodyPrefixRunes, "")))
		if _, dup := seenBodies[bodyKey]; dup {
			continue
		}

		out = append(out, models.ScoredItem{Item: n, Score: s.Score(n, now)})
		seenTitles[title] = struct{}{}
		seenBodies[bodyKey] = struct{}{}
		if len(out) >= s.max {
			break
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > s.max {
		out = out[:s.max]
	}
	return out
}

// Score computes the importance of n at time now:
//
//	3*likes + min(views/10, 50) + 2*comments + 10*keyword hits + 20 if under 30 minutes old
//
// Each keyword counts once. Items without a parsable timestamp get no recency bonus.
func (s *Selector) Score(n models.NewsItem, now time.Time) int {
	score := 3*n.LikeCount + min(n.ViewCount/10, 50) + 2*n.CommentCount

	title := strings.ToLower(n.Title)
	for _, k := range s.keywords {
		if strings.Contains(title, k) {
			score += 10
		}
	}

	if created, ok := utils.ParseTimestamp(n.CreatedAt); ok && now.Sub(created) < RecentWindow {
		score += 20
	}
	return score
}

// Items unwraps scored items.
func Items(scored []models.ScoredItem) []models.NewsItem {
	out := make([]models.NewsItem, len(scored))
	for i, s := range scored {
		out[i] = s.Item
	}
	return out
}
