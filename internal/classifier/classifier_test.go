package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/choigod1023/american-stock-news-discord-bot/pkg/models"
)

func TestClassifyLevels(t *testing.T) {
	c := New(nil, 5)

	tests := []struct {
		name string
		item models.NewsItem
		want models.Level
	}{
		{
			name: "bracket breaking ignores engagement",
			item: models.NewsItem{Title: "[속보] 시장 급락", Source: models.SourceCommunity},
			want: models.LevelBreaking,
		},
		{
			name: "official engaged by likes",
			item: models.NewsItem{Title: "일반 소식", LikeCount: 6, Source: models.SourceNews},
			want: models.LevelImportant,
		},
		{
			name: "official engaged by views",
			item: models.NewsItem{Title: "일반 소식", ViewCount: 100, Source: models.SourceNews},
			want: models.LevelImportant,
		},
		{
			name: "community never important by engagement",
			item: models.NewsItem{Title: "일반 소식", LikeCount: 6, ViewCount: 5000, Source: models.SourceCommunity},
			want: models.LevelNormal,
		},
		{
			name: "official below thresholds",
			item: models.NewsItem{Title: "일반 소식", LikeCount: 4, ViewCount: 99, Source: models.SourceNews},
			want: models.LevelNormal,
		},
		{
			name: "keyword in body",
			item: models.NewsItem{Title: "연준 발표", Content: "긴급 기자회견 예정"},
			want: models.LevelBreaking,
		},
		{
			name: "keyword inside tag",
			item: models.NewsItem{Title: "연준 발표", Tags: []string{"특보모음"}},
			want: models.LevelBreaking,
		},
		{
			name: "emoji pattern",
			item: models.NewsItem{Title: "🚨 Fed cuts rates"},
			want: models.LevelBreaking,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.item).Level)
		})
	}
}

func TestKeywordsAreCaseInsensitive(t *testing.T) {
	c := New([]string{"Breaking"}, 5)
	assert.True(t, c.IsBreaking(models.NewsItem{Title: "BREAKING: CPI hotter"}))
	assert.False(t, c.IsBreaking(models.NewsItem{Title: "CPI in line"}))
}

func TestIsImportantIncludesBreaking(t *testing.T) {
	c := New(nil, 5)
	assert.True(t, c.IsImportant(models.NewsItem{Title: "[긴급] 거래 정지", Source: models.SourceCommunity}))
	assert.False(t, c.IsImportant(models.NewsItem{Title: "거래 재개", Source: models.SourceCommunity, LikeCount: 100}))
}

func TestDigestStyle(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"장마감 뉴스 한줄 요약 모음", true},
		{"장전 뉴스 한 줄 요약", true},
		{"오늘의 시장 요약", true},
		{"장중 한 줄 정리", false},
		{"NVDA 실적 발표", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsDigestStyle(tt.title), tt.title)
	}
	c := New(nil, 5)
	got := c.Classify(models.NewsItem{Title: "[속보] 장마감 뉴스 한줄 요약 모음"})
	assert.True(t, got.DigestStyle)
	assert.Equal(t, models.LevelBreaking, got.Level)
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"[속보] 시장 급락", "시장 급락"},
		{"(긴급) 연준 금리 인상", "연준 금리 인상"},
		{"【특보】 테슬라 리콜", "테슬라 리콜"},
		{"속보: 애플 신제품", "애플 신제품"},
		{"BREAKING: Fed holds", "Fed holds"},
		{"[URGENT] 긴급 속보 NVDA", "NVDA"},
		{"- 중요 - 실적 발표", "실적 발표"},
		{"긴급속보", UntitledPlaceholder},
		{"중요한 발표", "중요한 발표"},
		{"", UntitledPlaceholder},
		{"  공백   정리  ", "공백 정리"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanTitle(tt.in), tt.in)
	}
}

func TestLevelLabel(t *testing.T) {
	assert.Equal(t, "속보", LevelLabel(models.LevelBreaking))
	assert.Equal(t, "중요", LevelLabel(models.LevelImportant))
	assert.Equal(t, "일반", LevelLabel(models.LevelNormal))
}
