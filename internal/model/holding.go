package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is the materialized current position of one instrument. It is never kept at zero quantity.
type Holding struct {
	InstrumentID string          `json:"instrument_id" db:"instrument_id"`
	Quantity     decimal.Decimal `json:"quantity" db:"quantity"`
	AverageCost  decimal.Decimal `json:"average_cost" db:"average_cost"`
	CurrentPrice decimal.Decimal `json:"current_price" db:"current_price"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// Equal compares the accounting fields, ignoring UpdatedAt.
func (h Holding) Equal(o Holding) bool {
	return h.InstrumentID == o.InstrumentID &&
		h.Quantity.Equal(o.Quantity) &&
		h.AverageCost.Equal(o.AverageCost) &&
		h.CurrentPrice.Equal(o.CurrentPrice)
}

func (h Holding) MarketValue() decimal.Decimal {
	return h.Quantity.Mul(h.CurrentPrice)
}

func (h Holding) CostBasis() decimal.Decimal {
	return h.Quantity.Mul(h.AverageCost)
}

type HoldingView struct {
	Holding
	Symbol   string `json:"symbol" db:"symbol"`
	Market   Market `json:"market" db:"market"`
	Name     string `json:"name" db:"name"`
	Currency string `json:"currency" db:"currency"`
}
