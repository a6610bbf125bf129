package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/choigod1023/american-stock-news-discord-bot/internal/classifier"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/report"
	"github.com/choigod1023/american-stock-news-discord-bot/pkg/models"
	"github.com/choigod1023/american-stock-news-discord-bot/pkg/utils"
)

// Card colors.
const (
	ColorBreaking  = 0xff0000
	ColorImportant = 0xff6600
	ColorNormal    = 0x00ff00
	ColorDigest    = 0x00bfff
)

const (
	descriptionMax = 1000
	fieldValueMax  = 1024
	cardTagMax     = 3
)

type levelStyle struct {
	emoji   string
	color   int
	footer  string
	mention bool
}

var levelStyles = map[models.Level]levelStyle{
	models.LevelBreaking:  {"⚡", ColorBreaking, "⚡ 속보 - 핀 고정됨", true},
	models.LevelImportant: {"🔥", ColorImportant, "🔥 중요 뉴스 - 핀 고정됨", true},
	models.LevelNormal:    {"📈", ColorNormal, "📈 일반 뉴스", false},
}

func styleFor(l models.Level) levelStyle {
	if s, ok := levelStyles[l]; ok {
		return s
	}
	return levelStyles[models.LevelNormal]
}

// NewsCard renders one classified item. Breaking and important cards mention
// everyone and ask to be pinned.
func NewsCard(n models.NewsItem, c models.Classification) Message {
	st := styleFor(c.Level)
	title := classifier.CleanTitle(n.Title)

	e := Embed{
		Title:       st.emoji + " " + title,
		Description: utils.Truncate(n.Content, descriptionMax+3, "..."),
		URL:         n.URL,
		Color:       st.color,
		Author:      &EmbedAuthor{Name: fmt.Sprintf("%s (포인트: %d)", authorOrUnknown(n.Author), n.AuthorPoints)},
		Footer:      &EmbedFooter{Text: st.footer},
		Fields: []Field{
			field("📋 분류", classifier.LevelLabel(c.Level), true),
			field("📊 통계", fmt.Sprintf("👍 %d | 👁️ %d | 💬 %d", n.LikeCount, n.ViewCount, n.CommentCount), true),
			field("📅 작성 시간", utils.DisplayTimestamp(n.CreatedAt), true),
		},
	}
	if t, ok := utils.ParseTimestamp(n.CreatedAt); ok {
		e.Timestamp = t.UTC().Format(time.RFC3339)
	}
	if len(n.Tags) > 0 {
		tags := n.Tags
		if len(tags) > cardTagMax {
			tags = tags[:cardTagMax]
		}
		e.Fields = append(e.Fields, field("🏷️ 태그", strings.Join(tags, ", "), false))
	}
	if n.URL != "" {
		e.Fields = append(e.Fields, field("🔗 상세 보기", "[링크]("+n.URL+")", false))
	}
	if n.Thumbnail != "" {
		e.Thumbnail = &EmbedImage{URL: n.Thumbnail}
	}

	content := st.emoji + " " + title
	if st.mention {
		content = "@everyone " + content
	}
	return Message{Kind: KindNews, Content: content, Embeds: []Embed{e}, Pin: c.Pinned()}
}

// DigestPointerCard points at a community digest post instead of repeating it.
func DigestPointerCard(n models.NewsItem) Message {
	e := Embed{
		Title:       "🧾 커뮤니티 요약",
		Description: n.Title,
		URL:         n.URL,
		Color:       ColorDigest,
	}
	if n.URL != "" {
		e.Fields = []Field{field("🔗 상세 보기", "[링크]("+n.URL+")", false)}
	}
	return Message{Kind: KindDigest, Embeds: []Embed{e}}
}

// ReportCard renders a periodic digest.
func ReportCard(d report.Digest) Message {
	e := Embed{
		Title:       d.Title,
		Description: "Community 뉴스 AI 요약 + 실시간 시장 분석",
		Color:       ColorDigest,
		Footer:      &EmbedFooter{Text: "🤖 AI 요약 | 1시간 주기 리포트"},
		Fields: []Field{
			field("📊 1시간 주요 동향", d.Summary, false),
			field("📰 주요 헤드라인", d.Headlines, false),
			field("💼 투자자 정보", d.InvestorNote, false),
			field("📊 시장 정보", d.MarketInfo, false),
		},
	}
	if !d.GeneratedAt.IsZero() {
		e.Timestamp = d.GeneratedAt.UTC().Format(time.RFC3339)
	}
	return Message{Kind: KindReport, Embeds: []Embed{e}}
}

// field caps the value to what chat embeds accept; empty values become "-".
func field(name, value string, inline bool) Field {
	value = strings.TrimSpace(value)
	if value == "" {
		value = "-"
	}
	return Field{Name: name, Value: utils.Truncate(value, fieldValueMax, "..."), Inline: inline}
}

func authorOrUnknown(a string) string {
	if a == "" {
		return "Unknown"
	}
	return a
}
