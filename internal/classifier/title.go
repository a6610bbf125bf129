package classifier

import (
	"regexp"
	"strings"

	"github.com/choigod1023/american-stock-news-discord-bot/pkg/utils"
)

// UntitledPlaceholder replaces empty titles.
const UntitledPlaceholder = "제목 없음"

var titleMarkers = regexp.MustCompile(`(?i)` +
	`\[(?:속보|긴급|중요|특보|BREAKING|URGENT)\]|` +
	`\((?:속보|긴급|중요|특보|BREAKING|URGENT)\)|` +
	`【(?:속보|긴급|중요|특보)】|` +
	`(?:속보|긴급|중요|특보|BREAKING|URGENT):`)

// Go's \b is ASCII-only, so word edges are spelled out for Hangul.
var titleKeywords = regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}_])` +
	`(?:긴급속보|특별속보|속보|긴급|중요|특보|BREAKING|URGENT|IMPORTANT|ALERT)` +
	`([^\p{L}\p{N}_]|$)`)

var leadingPunct = regexp.MustCompile(`^[:\-\s]+`)

// CleanTitle strips urgency markers and keywords from a headline for display.
// Dedup fingerprints use the raw title, never this one.
func CleanTitle(title string) string {
	if title == "" {
		return UntitledPlaceholder
	}
	s := titleMarkers.ReplaceAllString(title, "")
	// Adjacent keywords share a separator, so repeat until stable.
	for {
		next := titleKeywords.ReplaceAllString(s, "${1}${2}")
		if next == s {
			break
		}
		s = next
	}
	s = utils.CollapseSpace(s)
	s = leadingPunct.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if s == "" {
		return UntitledPlaceholder
	}
	return s
}
