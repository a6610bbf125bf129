package report

import (
	"fmt"
	"strings"

	"github.com/choigod1023/american-stock-news-discord-bot/pkg/models"
	"github.com/choigod1023/american-stock-news-discord-bot/pkg/utils"
)

// FormatNews renders up to max items as prompt input.
func FormatNews(items []models.NewsItem, max int) string {
	if len(items) > max {
		items = items[:max]
	}
	out, err := render(newsTmpl, items)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// FormatMarket renders the snapshot as prompt input. Empty when no indicator is available.
func FormatMarket(snap models.MarketSnapshot) string {
	out, err := render(marketTmpl, snap)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// FearGreedEmoji maps the index to a mood emoji (thresholds 75/55/45/25).
func FearGreedEmoji(v int) string {
	switch {
	case v >= 75:
		return "😍"
	case v >= 55:
		return "😊"
	case v >= 45:
		return "😐"
	case v >= 25:
		return "😰"
	default:
		return "😱"
	}
}

// MarketLines renders one display line per available indicator.
func MarketLines(snap models.MarketSnapshot) []string {
	var lines []string
	if q := snap.Nasdaq; q != nil {
		arrow := "📈"
		if q.Change < 0 {
			arrow = "📉"
		}
		lines = append(lines, fmt.Sprintf("%s **나스닥**: %.2f (%+.2f%%)%s", arrow, q.Price, q.ChangePct, staleSuffix(q.Stale)))
	}
	if fg := snap.FearGreed; fg != nil {
		lines = append(lines, fmt.Sprintf("%s **공포탐욕지수**: %d (%s)%s", FearGreedEmoji(fg.Value), fg.Value, fg.Classification, staleSuffix(fg.Stale)))
	}
	return lines
}

func staleSuffix(stale bool) string {
	if stale {
		return " (stale)"
	}
	return ""
}

func authorName(a string) string {
	if a == "" {
		return "Unknown"
	}
	return a
}

func tagList(tags []string) string {
	if len(tags) == 0 {
		return "없음"
	}
	return strings.Join(tags, ", ")
}

func excerpt(s string, max int) string {
	if s == "" {
		return "내용 없음"
	}
	return utils.Truncate(s, max+3, "...")
}
