package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

func ParseSide(s string) (Side, error) {
	switch side := Side(strings.ToUpper(strings.TrimSpace(s))); side {
	case Buy, Sell:
		return side, nil
	default:
		return "", fmt.Errorf("%w: unknown side %q", ValidationError, s)
	}
}

// Transaction is an immutable ledger event. Corrections are made by appending offsetting transactions.
type Transaction struct {
	ID           string          `json:"id"`
	InstrumentID string          `json:"instrument_id"`
	Side         Side            `json:"side"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	ExecutedAt   time.Time       `json:"executed_at"`
	Reason       string          `json:"reason,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SignedQuantity is positive for BUY and negative for SELL.
func (t Transaction) SignedQuantity() decimal.Decimal {
	if t.Side == Sell {
		return t.Quantity.Neg()
	}
	return t.Quantity
}
