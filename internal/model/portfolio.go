package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is the cash held in one currency.
type Balance struct {
	Currency  string          `json:"currency" db:"currency"`
	Value     decimal.Decimal `json:"value" db:"value"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Position is a holding valued in the base currency.
type Position struct {
	Symbol       string          `json:"symbol"`
	Market       Market          `json:"market"`
	Currency     string          `json:"currency"`
	Quantity     decimal.Decimal `json:"quantity"`
	AverageCost  decimal.Decimal `json:"average_cost"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	MarketValue  decimal.Decimal `json:"market_value"`
	BaseValue    decimal.Decimal `json:"base_value"`
	UnrealizedPL decimal.Decimal `json:"unrealized_pl"`
}
