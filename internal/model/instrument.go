package model

import (
	"fmt"
	"strings"
	"time"
)

type Market string

const (
	MarketUS      Market = "US"
	MarketTW      Market = "TW"
	MarketFutures Market = "FUTURES"
)

func ParseMarket(s string) (Market, error) {
	switch m := Market(strings.ToUpper(strings.TrimSpace(s))); m {
	case MarketUS, MarketTW, MarketFutures:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown market %q", ValidationError, s)
	}
}

// DefaultCurrency is the settlement currency an instrument gets when it is created lazily.
func (m Market) DefaultCurrency() string {
	switch m {
	case MarketUS:
		return "USD"
	default:
		return "TWD"
	}
}

type Instrument struct {
	ID        string    `json:"id" db:"id"`
	Symbol    string    `json:"symbol" db:"symbol"`
	Market    Market    `json:"market" db:"market"`
	Name      string    `json:"name" db:"name"`
	Currency  string    `json:"currency" db:"currency"`
	Type      string    `json:"type" db:"type"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NormalizeSymbol trims and upper-cases a ticker so that (symbol, market) identity is case-insensitive.
func NormalizeSymbol(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("%w: empty symbol", ValidationError)
	}
	return s, nil
}
