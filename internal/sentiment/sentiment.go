// Package sentiment scores news text with weighted bullish and bearish
// keyword lists. It is offline and deterministic.
package sentiment

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/choigod1023/american-stock-news-discord-bot/pkg/models"
	"github.com/choigod1023/american-stock-news-discord-bot/pkg/utils"
)

// HalfLife is the age at which an item's weight in Aggregate halves.
const HalfLife = time.Hour

// Thresholds separating the mood labels.
const (
	strongThreshold = 0.3
	weakThreshold   = 0.1
)

var bullishWords = map[string]float64{
	"급등": 0.7, "폭등": 0.8, "상승": 0.4, "강세": 0.5, "호재": 0.6,
	"신고가": 0.7, "최고치": 0.6, "반등": 0.5, "랠리": 0.6, "상향": 0.5,
	"서프라이즈": 0.6, "호실적": 0.6, "돌파": 0.5, "매수": 0.4, "수혜": 0.5,
	"rally": 0.6, "surge": 0.7, "bullish": 0.7, "upgrade": 0.6, "beat": 0.5,
	"record high": 0.7, "all-time high": 0.7, "outperform": 0.6, "soar": 0.7,
}

var bearishWords = map[string]float64{
	"급락": 0.7, "폭락": 0.8, "하락": 0.4, "약세": 0.5, "악재": 0.6,
	"신저가": 0.7, "하향": 0.5, "쇼크": 0.6, "부진": 0.5, "적자": 0.5,
	"우려": 0.3, "경고": 0.5, "매도": 0.4, "소송": 0.4, "리콜": 0.5,
	"crash": 0.8, "plunge": 0.7, "bearish": 0.7, "downgrade": 0.6, "miss": 0.5,
	"selloff": 0.7, "slump": 0.6, "recession": 0.6, "layoff": 0.5,
}

// ScoreText returns a score from -1 (very bearish) to +1 (very bullish) and
// a confidence that grows with the number of keyword hits.
func ScoreText(text string) (score, confidence float64) {
	lower := strings.ToLower(text)

	bull, bear := 0.0, 0.0
	matches := 0
	for word, weight := range bullishWords {
		if strings.Contains(lower, word) {
			bull += weight
			matches++
		}
	}
	for word, weight := range bearishWords {
		if strings.Contains(lower, word) {
			bear += weight
			matches++
		}
	}
	if matches == 0 {
		return 0, 0.1
	}

	score = (bull - bear) / (bull + bear)
	confidence = math.Min(float64(matches)*0.15+0.2, 0.85)
	return score, confidence
}

// ScoreItem scores the title and body of n.
func ScoreItem(n models.NewsItem) (score, confidence float64) {
	text := n.Title
	if n.Content != "" {
		text += " " + n.Content
	}
	return ScoreText(text)
}

// Mood is the aggregate sentiment of a batch.
type Mood struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label"`
	Bullish    int     `json:"bullish"`
	Bearish    int     `json:"bearish"`
	Neutral    int     `json:"neutral"`
	Items      int     `json:"items"`
}

// String renders the mood for a report line, e.g.
// "📈 강세 (+0.42, 긍정 3 · 부정 1)".
func (m Mood) String() string {
	return fmt.Sprintf("%s (%+.2f, 긍정 %d · 부정 %d)", m.Label, m.Score, m.Bullish, m.Bearish)
}

// Aggregate weights every item by confidence and recency at now. Items
// without a parsable timestamp count as fresh.
func Aggregate(items []models.NewsItem, now time.Time) Mood {
	if len(items) == 0 {
		return Mood{Label: Label(0)}
	}

	var weighted, total, confSum float64
	m := Mood{Items: len(items)}
	for _, n := range items {
		score, conf := ScoreItem(n)
		switch {
		case score > weakThreshold:
			m.Bullish++
		case score < -weakThreshold:
			m.Bearish++
		default:
			m.Neutral++
		}

		age := 0.0
		if t, ok := utils.ParseTimestamp(n.CreatedAt); ok && now.After(t) {
			age = now.Sub(t).Hours()
		}
		w := math.Exp(-math.Ln2*age/HalfLife.Hours()) * conf
		weighted += score * w
		total += w
		confSum += conf
	}

	if total > 0 {
		m.Score = weighted / total
	}
	m.Confidence = confSum / float64(len(items))
	m.Label = Label(m.Score)
	return m
}

// Label names a score band.
func Label(score float64) string {
	switch {
	case score > strongThreshold:
		return "📈 강세"
	case score > weakThreshold:
		return "↗️ 약한 강세"
	case score < -strongThreshold:
		return "📉 약세"
	case score < -weakThreshold:
		return "↘️ 약한 약세"
	default:
		return "➖ 중립"
	}
}
