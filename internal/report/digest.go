package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/choigod1023/american-stock-news-discord-bot/internal/sentiment"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/stocks"
	"github.com/choigod1023/american-stock-news-discord-bot/pkg/models"
	"github.com/choigod1023/american-stock-news-discord-bot/pkg/utils"
)

// Length caps in runes.
const (
	SummaryMaxChars  = 800  // report card summary field
	OneLineMaxChars  = 200  // one-line digest
	FallbackMaxChars = 1024 // deterministic summary
	HeadlineCount    = 5
	PromptItems      = 15
)

// Generator produces free-form text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Digest is everything a report card needs.
type Digest struct {
	Title        string                `json:"title"`
	Summary      string                `json:"summary"`
	UsedAI       bool                  `json:"used_ai"`
	Headlines    string                `json:"headlines"`
	MarketInfo   string                `json:"market_info"`
	InvestorNote string                `json:"investor_note"`
	NewsCount    int                   `json:"news_count"`
	Mood         sentiment.Mood        `json:"mood"`
	Market       models.MarketSnapshot `json:"market"`
	Items        []models.ScoredItem   `json:"items"`
	GeneratedAt  time.Time             `json:"generated_at"`
}

// Builder turns selected items and a market snapshot into a Digest.
// A nil Generator always produces the deterministic summary.
type Builder struct {
	gen   Generator
	index *stocks.Index
	log   *slog.Logger
	now   func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBuilderClock overrides time.Now.
func WithBuilderClock(now func() time.Time) BuilderOption {
	return func(b *Builder) { b.now = now }
}

// WithBuilderLogger sets the logger.
func WithBuilderLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) { b.log = l }
}

// NewBuilder creates a Builder.
func NewBuilder(gen Generator, index *stocks.Index, opts ...BuilderOption) *Builder {
	if index == nil {
		index = stocks.Default()
	}
	b := &Builder{gen: gen, index: index, log: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Build assembles the digest. It never fails: summarization problems fall
// back to the local summary.
func (b *Builder) Build(ctx context.Context, scored []models.ScoredItem, snap models.MarketSnapshot) Digest {
	now := b.now()
	items := Items(scored)
	summary, usedAI := b.Summarize(ctx, items, snap)

	marketInfo := strings.Join(MarketLines(snap), "\n")
	if marketInfo == "" {
		marketInfo = "시장 데이터 없음"
	}

	mood := sentiment.Aggregate(items, now)
	note := InvestorNote(snap, len(items), now)
	if mood.Items > 0 {
		note += "\n🧭 **뉴스 심리**: " + mood.String()
	}

	return Digest{
		Title:        ReportTitle(snap),
		Summary:      summary,
		UsedAI:       usedAI,
		Headlines:    b.index.Headlines(items, HeadlineCount),
		MarketInfo:   marketInfo,
		InvestorNote: note,
		NewsCount:    len(items),
		Mood:         mood,
		Market:       snap,
		Items:        scored,
		GeneratedAt:  now,
	}
}

// Summarize asks the generator for the report summary, capped at
// SummaryMaxChars. Errors and blank answers yield the fallback summary.
func (b *Builder) Summarize(ctx context.Context, items []models.NewsItem, snap models.MarketSnapshot) (string, bool) {
	if b.gen != nil && len(items) > 0 {
		prompt, err := render(summaryTmpl, b.promptData(items, snap, SummaryMaxChars))
		if err == nil {
			text, err := b.gen.Generate(ctx, prompt)
			switch {
			case err != nil:
				b.log.Warn("summary generation failed, using fallback", "error", err)
			case strings.TrimSpace(text) == "":
				b.log.Warn("summary generation returned nothing, using fallback")
			default:
				return utils.Truncate(strings.TrimSpace(text), SummaryMaxChars, "..."), true
			}
		}
	}
	return b.Fallback(items, snap), false
}

// OneLiner asks for a single-line digest: line breaks stripped, capped at
// OneLineMaxChars. It returns "" when no generator answer is usable.
func (b *Builder) OneLiner(ctx context.Context, items []models.NewsItem, snap models.MarketSnapshot) string {
	if b.gen == nil || len(items) == 0 {
		return ""
	}
	prompt, err := render(oneLinerTmpl, b.promptData(items, snap, OneLineMaxChars))
	if err != nil {
		return ""
	}
	text, err := b.gen.Generate(ctx, prompt)
	if err != nil {
		b.log.Warn("one-line summary failed", "error", err)
		return ""
	}
	return utils.Truncate(utils.SingleLine(text), OneLineMaxChars, "...")
}

type promptData struct {
	Now      string
	MaxChars int
	Market   string
	News     string
}

func (b *Builder) promptData(items []models.NewsItem, snap models.MarketSnapshot, max int) promptData {
	market := FormatMarket(snap)
	if market == "" {
		market = "시장 데이터 없음"
	}
	return promptData{
		Now:      utils.ToKST(b.now()).Format("2006-01-02 15:04"),
		MaxChars: max,
		Market:   market,
		News:     FormatNews(items, PromptItems),
	}
}

// Fallback builds the deterministic summary used without a generator.
func (b *Builder) Fallback(items []models.NewsItem, snap models.MarketSnapshot) string {
	popular := b.index.Sort(items)
	if len(popular) > HeadlineCount {
		popular = popular[:HeadlineCount]
	}
	data := struct {
		Now         string
		MarketLines []string
		Popular     []models.NewsItem
		Tags        []stocks.TagCount
		Headlines   string
		Count       int
	}{
		Now:         utils.ToKST(b.now()).Format("2006-01-02 15:04"),
		MarketLines: MarketLines(snap),
		Popular:     popular,
		Tags:        stocks.PopularTags(items, 5),
		Headlines:   b.index.Headlines(items, 10),
		Count:       len(items),
	}
	out, err := render(fallbackTmpl, data)
	if err != nil {
		return fmt.Sprintf("📊 시장 동향 요약\n\n분석된 뉴스: %d개\nAI 분석 서비스가 일시적으로 불가능합니다.", len(items))
	}
	return utils.Truncate(strings.TrimSpace(out), FallbackMaxChars, "...")
}

// ReportTitle carries the NASDAQ move when one is known.
func ReportTitle(snap models.MarketSnapshot) string {
	q := snap.Nasdaq
	if q == nil || q.Change == 0 {
		return "🤖 AI 시장 동향 리포트"
	}
	if q.ChangePct > 0 {
		return fmt.Sprintf("📈 AI 시장 리포트 - 나스닥 +%.2f%%", q.ChangePct)
	}
	return fmt.Sprintf("📉 AI 시장 리포트 - 나스닥 %.2f%%", q.ChangePct)
}

// InvestorNote derives sentiment, NASDAQ trend, news activity and a
// time-of-day tip (KST).
func InvestorNote(snap models.MarketSnapshot, newsCount int, now time.Time) string {
	var sb strings.Builder

	if fg := snap.FearGreed; fg != nil {
		var mood, advice string
		switch v := fg.Value; {
		case v >= 75:
			mood, advice = "😍 극도 탐욕 (과열 주의)", "고점 매도 고려"
		case v >= 55:
			mood, advice = "😊 탐욕 (상승 추세)", "적정 매수 기회"
		case v >= 45:
			mood, advice = "😐 중립 (보합세)", "관망 또는 분할 매수"
		case v >= 25:
			mood, advice = "😰 공포 (하락 압력)", "저점 매수 기회"
		default:
			mood, advice = "😱 극도 공포 (과매도)", "대량 매수 기회"
		}
		fmt.Fprintf(&sb, "🎯 **시장 심리**: %s\n", mood)
		fmt.Fprintf(&sb, "💡 **투자 조언**: %s\n", advice)
	}

	if q := snap.Nasdaq; q != nil {
		var trend string
		switch pct := q.ChangePct; {
		case pct > 1:
			trend = "📈 강한 상승세"
		case pct > 0:
			trend = "📈 상승세"
		case pct > -1:
			trend = "📊 보합세"
		default:
			trend = "📉 하락세"
		}
		fmt.Fprintf(&sb, "📊 **나스닥 추세**: %s\n", trend)
	}

	var activity string
	switch {
	case newsCount > 20:
		activity = "🔥 매우 활발"
	case newsCount > 10:
		activity = "📈 활발"
	case newsCount > 5:
		activity = "📊 보통"
	default:
		activity = "😴 조용"
	}
	fmt.Fprintf(&sb, "📰 **뉴스 활동도**: %s (%d개)\n", activity, newsCount)

	var tip string
	switch utils.SessionAt(now) {
	case utils.SessionDay:
		tip = "🕘 장중 - 실시간 모니터링"
	case utils.SessionEvening:
		tip = "🕕 장후 - 다음날 준비"
	case utils.SessionNight:
		tip = "🌙 야간 - 해외 시장 주시"
	default:
		tip = "🌅 장전 - 오늘 전략 수립"
	}
	fmt.Fprintf(&sb, "⏰ **시간대 조언**: %s\n", tip)
	fmt.Fprintf(&sb, "📅 **업데이트**: %s", utils.ToKST(now).Format("15:04"))
	return sb.String()
}
