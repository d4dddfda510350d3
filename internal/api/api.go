// Package api holds the JSON bodies exchanged between the portfolio HTTP server and its client.
package api

import (
	"time"

	"github.com/STTM-NSU/portfolio-tracker/internal/analytics"
	"github.com/STTM-NSU/portfolio-tracker/internal/ledger"
	"github.com/STTM-NSU/portfolio-tracker/internal/model"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type TradeRequest struct {
	Symbol     string          `json:"symbol"`
	Market     string          `json:"market"`
	Action     string          `json:"action"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	ExecutedAt time.Time       `json:"executed_at,omitzero"`
	Reason     string          `json:"reason,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
}

type TradeResponse struct {
	Instrument  model.Instrument  `json:"instrument"`
	Transaction model.Transaction `json:"transaction"`
	// Holding is nil when the trade closed the position.
	Holding *model.Holding `json:"holding"`
}

type TransactionsResponse struct {
	Instrument   model.Instrument    `json:"instrument"`
	Transactions []model.Transaction `json:"transactions"`
}

type RebaselineTarget struct {
	Symbol   string          `json:"symbol"`
	Market   string          `json:"market"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type RebaselineRequest struct {
	Reason  string             `json:"reason,omitempty"`
	Targets []RebaselineTarget `json:"targets"`
}

type RebaselineResponse struct {
	Adjustments []model.Transaction `json:"adjustments"`
}

type VerifyResponse struct {
	Consistent  bool                `json:"consistent"`
	Divergences []ledger.Divergence `json:"divergences"`
}

type CashRequest struct {
	Currency string          `json:"currency"`
	Value    decimal.Decimal `json:"value"`
}

type SnapshotRequest struct {
	Date string `json:"snapshot_date"`
	model.Aggregate
}

type CaptureRequest struct {
	// Date defaults to today in the server's snapshot time zone.
	Date string `json:"snapshot_date,omitempty"`
}

// ReportRequest is a simulation result. Params and Multiplier override the server defaults when set.
type ReportRequest struct {
	analytics.Input
	Params     *analytics.Params `json:"params,omitempty"`
	Multiplier float64           `json:"multiplier,omitempty"`
}

type ReportResponse struct {
	analytics.Report
	// Warning is set when some input was empty and sections carry fallbacks.
	Warning string `json:"warning,omitempty"`
}
