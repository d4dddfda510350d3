// Package analytics turns a simulated equity curve and its trade list into trading-performance
// statistics: returns, drawdown, risk-adjusted ratios, trade statistics, streaks and friction costs.
//
// Compute is pure. It holds no state between calls and may be used concurrently. All values are
// carried unrounded in Metrics; rounding to two decimals happens once, in Metrics.Report.
package analytics

import (
	"math"
	"time"
)

const DefaultPeriodsPerYear = 252

// EquityPoint is the portfolio value at the close of one bar. Exposed marks bars where a
// position was open.
type EquityPoint struct {
	Ts      time.Time `json:"ts"`
	Value   float64   `json:"value"`
	Exposed bool      `json:"exposed,omitempty"`
}

// ReturnPoint is the simple return of one period, 0.01 meaning +1%.
type ReturnPoint struct {
	Ts    time.Time `json:"ts"`
	Value float64   `json:"value"`
}

// Trade is a round trip as reported by the simulator. PnL excludes commission, PnLComm includes it.
type Trade struct {
	Ref        int       `json:"ref"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time,omitempty"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price,omitempty"`
	Size       float64   `json:"size"`
	PnL        float64   `json:"pnl"`
	PnLComm    float64   `json:"pnlcomm"`
	Points     float64   `json:"points"`
	Closed     bool      `json:"is_closed"`
}

// Order is one executed fill. Only its commission feeds the statistics.
type Order struct {
	Ts         time.Time `json:"ts"`
	Size       float64   `json:"size"`
	Price      float64   `json:"price"`
	Value      float64   `json:"value"`
	Commission float64   `json:"commission"`
}

type Input struct {
	EquityCurve []EquityPoint `json:"equity_curve"`
	Returns     []ReturnPoint `json:"returns,omitempty"`
	Trades      []Trade       `json:"trades"`
	Orders      []Order       `json:"orders,omitempty"`
}

type Params struct {
	InitialCash float64 `json:"initial_cash" yaml:"initial_cash"`
	// RiskFreeRate is annual. Sharpe converts it to a per-period rate, Sortino uses it as is.
	RiskFreeRate   float64 `json:"risk_free_rate" yaml:"risk_free_rate"`
	PeriodsPerYear int     `json:"periods_per_year" yaml:"periods_per_year"`
	// Slippage is echoed into the friction section in points per trade.
	Slippage float64 `json:"slippage" yaml:"slippage"`
	// Commission is charged per contract on every fill. It only prices trades whose input carries
	// no commission at all.
	Commission float64 `json:"commission" yaml:"commission"`
}

// TradePoints normalizes a trade's P&L to price points: pnl / (|size| * multiplier).
// A zero size counts as one contract; a zero multiplier yields 0.
func TradePoints(pnl, size, multiplier float64) float64 {
	if multiplier <= 0 {
		return 0
	}
	if size == 0 {
		size = 1
	}
	return pnl / (math.Abs(size) * multiplier)
}

// FillPoints sets the points of every trade that reports none from its raw P&L, before commission,
// and the contract multiplier.
func (in *Input) FillPoints(multiplier float64) {
	for i := range in.Trades {
		t := &in.Trades[i]
		if t.Points == 0 && t.PnL != 0 {
			t.Points = TradePoints(t.PnL, t.Size, multiplier)
		}
	}
}
