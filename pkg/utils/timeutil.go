package utils

import (
	"strings"
	"time"
)

// KST is the Korea Standard Time location (UTC+9).
var KST *time.Location

func init() {
	var err error
	KST, err = time.LoadLocation("Asia/Seoul")
	if err != nil {
		// Fallback: create fixed zone if tz database is not available
		KST = time.FixedZone("KST", 9*60*60)
	}
}

// NowKST returns the current time in KST.
func NowKST() time.Time {
	return time.Now().In(KST)
}

// ToKST converts a time.Time to KST.
func ToKST(t time.Time) time.Time {
	return t.In(KST)
}

// timestampLayouts are tried in order by ParseTimestamp.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the ISO-8601 variants seen in upstream payloads.
// A trailing "Z" is accepted; values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DisplayTimestamp renders a raw upstream timestamp for chat cards.
// Unparsable values are cut to their first 19 characters.
func DisplayTimestamp(raw string) string {
	if t, ok := ParseTimestamp(raw); ok {
		return ToKST(t).Format("2006-01-02 15:04:05")
	}
	return Truncate(raw, 19, "")
}

// Session names the part of the trading day a KST hour falls into.
type Session string

const (
	SessionDay       Session = "day"       // 09:00-16:59
	SessionEvening   Session = "evening"   // 17:00-20:59
	SessionNight     Session = "night"     // 21:00-05:59
	SessionPreMarket Session = "premarket" // 06:00-08:59
)

// SessionAt classifies t (converted to KST) into a Session.
func SessionAt(t time.Time) Session {
	h := t.In(KST).Hour()
	switch {
	case h >= 9 && h <= 16:
		return SessionDay
	case h > 16 && h <= 20:
		return SessionEvening
	case h > 20 || h < 6:
		return SessionNight
	default:
		return SessionPreMarket
	}
}
