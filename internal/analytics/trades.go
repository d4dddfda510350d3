package analytics

import (
	"math"
	"slices"
)

type tradeStats struct {
	closed, open int
	won, lost    int

	grossProfit float64
	grossLoss   float64 // magnitude
	largestLoss float64 // magnitude

	winRate     float64
	avgWin      float64
	avgLoss     float64 // magnitude
	riskReward  float64
	profitFact  float64
	expectancy  float64
	maxWinRun   int
	maxLossRun  int
	totalPoints float64
}

// computeTradeStats classifies closed trades by commission-inclusive P&L, a break-even trade
// counting as a win. Open trades only contribute their points.
func computeTradeStats(trades []Trade) tradeStats {
	var ts tradeStats

	closed := make([]Trade, 0, len(trades))
	for _, t := range trades {
		ts.totalPoints += t.Points
		if t.Closed {
			closed = append(closed, t)
		} else {
			ts.open++
		}
	}
	slices.SortStableFunc(closed, func(a, b Trade) int { return a.ExitTime.Compare(b.ExitTime) })
	ts.closed = len(closed)

	winRun, lossRun := 0, 0
	for _, t := range closed {
		if t.PnLComm >= 0 {
			ts.won++
			ts.grossProfit += t.PnLComm
			winRun, lossRun = winRun+1, 0
		} else {
			ts.lost++
			ts.grossLoss += -t.PnLComm
			ts.largestLoss = math.Max(ts.largestLoss, -t.PnLComm)
			winRun, lossRun = 0, lossRun+1
		}
		ts.maxWinRun = max(ts.maxWinRun, winRun)
		ts.maxLossRun = max(ts.maxLossRun, lossRun)
	}

	if ts.closed > 0 {
		ts.winRate = float64(ts.won) / float64(ts.closed) * 100
	}
	if ts.won > 0 {
		ts.avgWin = ts.grossProfit / float64(ts.won)
	}
	if ts.lost > 0 {
		ts.avgLoss = ts.grossLoss / float64(ts.lost)
	}

	ts.riskReward = math.Inf(1)
	if ts.avgLoss > 0 {
		ts.riskReward = ts.avgWin / ts.avgLoss
	}
	ts.profitFact = math.Inf(1)
	if ts.grossLoss > 0 {
		ts.profitFact = ts.grossProfit / ts.grossLoss
	}

	w := ts.winRate / 100
	ts.expectancy = w*ts.avgWin - (1-w)*ts.avgLoss
	return ts
}

// totalCommission sums order commissions. Without an order list it falls back to the difference
// between raw and commission-inclusive P&L of the trades. When no trade reports a difference
// either, perContract is charged for each contract filled: entry and exit of a closed trade,
// entry of an open one.
func totalCommission(orders []Order, trades []Trade, perContract float64) float64 {
	var total float64
	if len(orders) > 0 {
		for _, o := range orders {
			total += o.Commission
		}
		return total
	}

	reported := false
	for _, t := range trades {
		total += t.PnL - t.PnLComm
		reported = reported || t.PnL != t.PnLComm
	}
	if reported || perContract <= 0 {
		return total
	}

	for _, t := range trades {
		contracts := math.Abs(t.Size)
		if contracts == 0 {
			contracts = 1
		}
		fills := 1.0
		if t.Closed {
			fills = 2
		}
		total += contracts * fills * perContract
	}
	return total
}
