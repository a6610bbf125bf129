package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choigod1023/american-stock-news-discord-bot/pkg/models"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func at(ago time.Duration) string {
	return testNow.Add(-ago).Format(time.RFC3339)
}

func newTestSelector(max int) *Selector {
	return NewSelector(max, WithNow(func() time.Time { return testNow }))
}

func TestScoreExample(t *testing.T) {
	s := newTestSelector(30)
	n := models.NewsItem{
		Title:        "연준 발표 정리",
		LikeCount:    10,
		ViewCount:    200,
		CommentCount: 4,
		CreatedAt:    at(10 * time.Minute),
	}
	// 30 + 20 + 8 + 10 + 20
	assert.Equal(t, 88, s.Score(n, testNow))
}

func TestScoreComponents(t *testing.T) {
	s := newTestSelector(30)
	tests := []struct {
		name string
		item models.NewsItem
		want int
	}{
		{"views capped", models.NewsItem{Title: "x", ViewCount: 10_000, CreatedAt: at(time.Hour)}, 50},
		{"keywords counted once each", models.NewsItem{Title: "금리 금리 인플레이션", CreatedAt: at(time.Hour)}, 20},
		{"keyword case-insensitive", models.NewsItem{Title: "NVIDIA and FED", CreatedAt: at(time.Hour)}, 20},
		{"no timestamp no bonus", models.NewsItem{Title: "x", LikeCount: 1}, 3},
		{"exactly 30 minutes no bonus", models.NewsItem{Title: "x", CreatedAt: at(30 * time.Minute)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Score(tt.item, testNow))
		})
	}
}

func TestSelectDropsDuplicateTitles(t *testing.T) {
	s := newTestSelector(30)
	items := []models.NewsItem{
		{ID: "1", Title: "NVDA, 신고가!", Content: "a", CreatedAt: at(time.Hour)},
		{ID: "2", Title: "nvda 신고가", Content: "b", CreatedAt: at(time.Hour)},
		{ID: "3", Title: "  NVDA   신고가 ", Content: "c", LikeCount: 100, CreatedAt: at(time.Hour)},
	}
	got := s.Select(items)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].Item.ID)
}

func TestSelectDropsDuplicateBodies(t *testing.T) {
	s := newTestSelector(30)
	body := "같은 내용의 기사 본문입니다."
	items := []models.NewsItem{
		{ID: "1", Title: "제목 하나", Content: body},
		{ID: "2", Title: "제목 둘", Content: body},
		{ID: "3", Title: "제목 셋"},
		{ID: "4", Title: "제목 넷"},
	}
	got := s.Select(items)
	assert.ElementsMatch(t, []string{"1", "3"}, ids(got))
}

func TestSelectEmptyBodiesCollide(t *testing.T) {
	s := newTestSelector(30)
	items := []models.NewsItem{
		{ID: "1", Title: "테슬라 인도량", CreatedAt: at(time.Hour)},
		{ID: "2", Title: "애플 신제품", LikeCount: 50, CreatedAt: at(time.Hour)},
		{ID: "3", Title: "연준 의사록", CreatedAt: at(time.Hour)},
		{ID: "4", Title: "엔비디아 실적", Content: "본문", CreatedAt: at(time.Hour)},
	}
	assert.ElementsMatch(t, []string{"1", "4"}, ids(s.Select(items)))
}

func TestSelectBodyPrefixOnly(t *testing.T) {
	s := newTestSelector(30)
	prefix := strings.Repeat("가", 100)
	items := []models.NewsItem{
		{ID: "1", Title: "a", Content: prefix + "끝 하나"},
		{ID: "2", Title: "b", Content: prefix + "끝 둘"},
	}
	assert.Equal(t, []string{"1"}, ids(s.Select(items)))
}

func TestSelectTimeWindow(t *testing.T) {
	s := newTestSelector(30)
	items := []models.NewsItem{
		{ID: "old", Title: "old", Content: "o", CreatedAt: at(3 * time.Hour)},
		{ID: "edge", Title: "edge", Content: "e", CreatedAt: at(119 * time.Minute)},
		{ID: "missing", Title: "missing", Content: "m"},
		{ID: "garbage", Title: "garbage", Content: "g", CreatedAt: "어제"},
	}
	assert.ElementsMatch(t, []string{"edge", "missing", "garbage"}, ids(s.Select(items)))
}

func TestSelectZonelessTimestampsAreUTC(t *testing.T) {
	s := newTestSelector(30)
	zoneless := func(ago time.Duration) string {
		return testNow.Add(-ago).UTC().Format("2006-01-02T15:04:05")
	}
	items := []models.NewsItem{
		{ID: "inside", Title: "inside", Content: "i", CreatedAt: zoneless(119 * time.Minute)},
		{ID: "outside", Title: "outside", Content: "o", CreatedAt: zoneless(121 * time.Minute)},
		{ID: "fresh", Title: "fresh", Content: "f", CreatedAt: zoneless(10 * time.Minute)},
	}
	got := s.Select(items)
	assert.Equal(t, []string{"fresh", "inside"}, ids(got))
	assert.Equal(t, 20, got[0].Score)
}

func TestSelectSortsByScore(t *testing.T) {
	s := newTestSelector(30)
	items := []models.NewsItem{
		{ID: "low", Title: "one", Content: "1", CreatedAt: at(time.Hour)},
		{ID: "high", Title: "two", Content: "2", LikeCount: 10, CreatedAt: at(time.Hour)},
		{ID: "mid", Title: "three", Content: "3", LikeCount: 2, CreatedAt: at(time.Hour)},
	}
	assert.Equal(t, []string{"high", "mid", "low"}, ids(s.Select(items)))
}

func TestSelectCapIsAppliedDuringScan(t *testing.T) {
	s := newTestSelector(2)
	items := []models.NewsItem{
		{ID: "1", Title: "one", Content: "1", CreatedAt: at(time.Hour)},
		{ID: "2", Title: "two", Content: "2", CreatedAt: at(time.Hour)},
		{ID: "3", Title: "three", Content: "3", LikeCount: 1000, CreatedAt: at(time.Hour)},
	}
	got := s.Select(items)
	assert.ElementsMatch(t, []string{"1", "2"}, ids(got), "item beyond the cap is never scored")
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "nvda 신고가 경신", NormalizeTitle("[NVDA] 신고가   경신!!"))
	assert.Equal(t, "", NormalizeTitle("?!"))
}

func TestNewSelectorDefaults(t *testing.T) {
	assert.Equal(t, DefaultMaxItems, NewSelector(0).Max())
}

func ids(scored []models.ScoredItem) []string {
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.Item.ID
	}
	return out
}
