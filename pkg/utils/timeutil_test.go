package utils

import (
	"testing"
	"time"
)

func TestNowKST(t *testing.T) {
	now := NowKST()
	if now.Location().String() != "Asia/Seoul" && now.Location().String() != "KST" {
		t.Errorf("NowKST() location = %s, want Asia/Seoul or KST", now.Location().String())
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want time.Time
	}{
		{"2025-03-01T10:20:30Z", true, time.Date(2025, 3, 1, 10, 20, 30, 0, time.UTC)},
		{"2025-03-01T10:20:30.123456", true, time.Date(2025, 3, 1, 10, 20, 30, 123456000, time.UTC)},
		{"2025-03-01T19:20:30+09:00", true, time.Date(2025, 3, 1, 10, 20, 30, 0, time.UTC)},
		{"2025-03-01 10:20:30", true, time.Date(2025, 3, 1, 10, 20, 30, 0, time.UTC)},
		{"", false, time.Time{}},
		{"yesterday", false, time.Time{}},
	}
	for _, tt := range tests {
		got, ok := ParseTimestamp(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseTimestamp(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDisplayTimestamp(t *testing.T) {
	if got := DisplayTimestamp("2025-03-01T00:00:00Z"); got != "2025-03-01 09:00:00" {
		t.Errorf("DisplayTimestamp = %q, want KST rendering", got)
	}
	if got := DisplayTimestamp("not-a-timestamp-at-all-really"); got != "not-a-timestamp-at-" {
		t.Errorf("DisplayTimestamp fallback = %q", got)
	}
}

func TestSessionAt(t *testing.T) {
	tests := []struct {
		hour int
		want Session
	}{
		{9, SessionDay},
		{16, SessionDay},
		{17, SessionEvening},
		{20, SessionEvening},
		{21, SessionNight},
		{0, SessionNight},
		{5, SessionNight},
		{6, SessionPreMarket},
		{8, SessionPreMarket},
	}
	for _, tt := range tests {
		at := time.Date(2025, 3, 3, tt.hour, 30, 0, 0, KST)
		if got := SessionAt(at); got != tt.want {
			t.Errorf("SessionAt(%02d:30) = %s, want %s", tt.hour, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("한국어 텍스트", 3, ""); got != "한국어" {
		t.Errorf("Truncate runes = %q", got)
	}
	if got := Truncate("abcdefghij", 8, "..."); got != "abcde..." {
		t.Errorf("Truncate suffix = %q", got)
	}
	if got := Truncate("short", 10, "..."); got != "short" {
		t.Errorf("Truncate no-op = %q", got)
	}
}

func TestSingleLine(t *testing.T) {
	if got := SingleLine("a\nb\r\n  c"); got != "a b c" {
		t.Errorf("SingleLine = %q, want %q", got, "a b c")
	}
}
