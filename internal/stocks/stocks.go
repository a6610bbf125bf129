// Package stocks ranks news items by the well-known US tickers they mention.
package stocks

import (
	"fmt"
	"sort"
	"strings"

	"github.com/choigod1023/american-stock-news-discord-bot/pkg/models"
)

// NoPriority is the rank reported when no known symbol appears.
const NoPriority = 999

// famous lists symbols in priority order; lower index ranks higher.
var famous = []string{
	// Mega-cap tech
	"AAPL", "MSFT", "GOOGL", "GOOG", "AMZN", "META", "NFLX", "TSLA", "NVDA",
	// Semiconductors
	"AMD", "INTC", "QCOM", "AVGO", "TXN", "AMAT", "LRCX", "KLAC", "MU", "MRVL",
	// Financials
	"JPM", "BAC", "WFC", "GS", "MS", "C", "BLK", "AXP", "V", "MA",
	// Healthcare
	"JNJ", "PFE", "UNH", "ABBV", "MRK", "TMO", "ABT", "DHR", "BMY", "AMGN",
	// Energy
	"XOM", "CVX", "COP", "EOG", "SLB", "PXD", "MPC", "VLO", "PSX", "KMI",
	// Other large caps
	"BRK.B", "BRK.A", "PG", "KO", "WMT", "HD", "VZ", "T", "DIS", "NKE", "MCD",
	"BA", "CAT", "IBM", "GE", "F", "GM", "UBER", "LYFT", "SPOT", "SQ", "PYPL",
	// Crypto-adjacent
	"COIN", "MSTR", "RIOT", "MARA", "HUT", "BITF", "CAN", "ARB", "BIT",
	// AI / cloud
	"SNOW", "CRWD", "ZS", "OKTA", "DDOG", "NET", "PLTR", "AI", "C3AI",
}

// Index is a ranked symbol list with substring lookup.
//
// Matching is plain substring containment on the upper-cased text, so short
// symbols such as "C" or "AI" hit inside ordinary words. That is accepted:
// the rank only orders headlines, it never filters them.
type Index struct {
	symbols []string
}

// Default returns the built-in index.
func Default() *Index {
	return &Index{symbols: famous}
}

// New builds an index over a custom ranked symbol list.
func New(symbols []string) *Index {
	upper := make([]string, len(symbols))
	for i, s := range symbols {
		upper[i] = strings.ToUpper(s)
	}
	return &Index{symbols: upper}
}

// Symbols returns the ranked list.
func (x *Index) Symbols() []string {
	out := make([]string, len(x.symbols))
	copy(out, x.symbols)
	return out
}

// Match returns the first symbol, in rank order, contained in title+" "+body.
func (x *Index) Match(title, body string) (symbol string, rank int, ok bool) {
	text := strings.ToUpper(title + " " + body)
	for i, s := range x.symbols {
		if strings.Contains(text, s) {
			return s, i, true
		}
	}
	return "", NoPriority, false
}

// Priority returns the rank of the best matching symbol, or NoPriority.
func (x *Index) Priority(title, body string) int {
	_, rank, _ := x.Match(title, body)
	return rank
}

// Sort returns a copy of items ordered by symbol rank, matched items first.
// Ties, and all unmatched items, are ordered by popularity descending.
func (x *Index) Sort(items []models.NewsItem) []models.NewsItem {
	type keyed struct {
		item models.NewsItem
		rank int
	}
	ks := make([]keyed, len(items))
	for i, it := range items {
		ks[i] = keyed{item: it, rank: x.Priority(it.Title, it.Content)}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		if ks[i].rank != ks[j].rank {
			return ks[i].rank < ks[j].rank
		}
		return ks[i].item.Popularity() > ks[j].item.Popularity()
	})
	out := make([]models.NewsItem, len(ks))
	for i, k := range ks {
		out[i] = k.item
	}
	return out
}

// Headlines renders the top max items as "N. title (by author) [SYM]" lines.
// A non-positive max renders nothing.
func (x *Index) Headlines(items []models.NewsItem, max int) string {
	max = clampLimit(max)
	sorted := x.Sort(items)
	if len(sorted) > max {
		sorted = sorted[:max]
	}
	lines := make([]string, 0, len(sorted))
	for i, it := range sorted {
		line := fmt.Sprintf("%d. %s (by %s)", i+1, it.Title, authorOrUnknown(it.Author))
		if sym, _, ok := x.Match(it.Title, it.Content); ok {
			line += " [" + sym + "]"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// TagCount is a tag with its number of occurrences.
type TagCount struct {
	Tag   string
	Count int
}

// PopularTags counts tags across items and returns the n most frequent.
// Equal counts keep first-seen order.
func PopularTags(items []models.NewsItem, n int) []TagCount {
	counts := make(map[string]int)
	var order []string
	for _, it := range items {
		for _, tag := range it.Tags {
			if _, seen := counts[tag]; !seen {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}
	out := make([]TagCount, 0, len(order))
	for _, tag := range order {
		out = append(out, TagCount{Tag: tag, Count: counts[tag]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n = clampLimit(n); len(out) > n {
		out = out[:n]
	}
	return out
}

func clampLimit(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func authorOrUnknown(a string) string {
	if a == "" {
		return "Unknown"
	}
	return a
}
