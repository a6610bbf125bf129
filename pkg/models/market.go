package models

import "time"

// IndexQuote is a market index reading taken from a chart endpoint.
type IndexQuote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previous_close"`
	Change        float64   `json:"change"`
	ChangePct     float64   `json:"change_pct"`
	MarketState   string    `json:"market_state"`
	Currency      string    `json:"currency"`
	FetchedAt     time.Time `json:"fetched_at"`
	Stale         bool      `json:"stale"`
}

// FearGreed is the crypto/market sentiment index (0 = extreme fear, 100 = extreme greed).
type FearGreed struct {
	Value          int       `json:"value"`
	Classification string    `json:"classification"`
	Timestamp      time.Time `json:"timestamp"`
	FetchedAt      time.Time `json:"fetched_at"`
	Stale          bool      `json:"stale"`
}

// MarketSnapshot bundles the indicators collected for one report.
// A nil field means the indicator was unavailable and nothing was cached.
type MarketSnapshot struct {
	Nasdaq    *IndexQuote `json:"nasdaq,omitempty"`
	FearGreed *FearGreed  `json:"fear_greed,omitempty"`
}

// Empty reports whether neither indicator is available.
func (m MarketSnapshot) Empty() bool {
	return m.Nasdaq == nil && m.FearGreed == nil
}
