package analytics

import (
	"fmt"
	"math"

	"github.com/STTM-NSU/portfolio-tracker/internal/model"
)

const (
	UnavailableEquityCurve = "equity_curve"
	UnavailableTrades      = "trades"
)

// Compute derives every statistic of the report from in. An empty equity curve or trade list
// is not an error: the affected sections fall back to zeros (and +Inf for the ratios whose
// denominator vanishes) and are named in Metrics.Unavailable.
//
// When in.Returns is empty the per-bar returns are derived from the equity curve.
func Compute(in Input, p Params) (Metrics, error) {
	if err := validate(in, &p); err != nil {
		return Metrics{}, err
	}

	var m Metrics
	if len(in.EquityCurve) == 0 {
		m.Unavailable = append(m.Unavailable, UnavailableEquityCurve)
	}
	if len(in.Trades) == 0 {
		m.Unavailable = append(m.Unavailable, UnavailableTrades)
	}

	final := p.InitialCash
	if n := len(in.EquityCurve); n > 0 {
		final = in.EquityCurve[n-1].Value
	}
	netProfit := final - p.InitialCash

	returns := in.Returns
	if len(returns) == 0 {
		returns = returnsFromCurve(in.EquityCurve, p.InitialCash)
	}
	series := values(returns)

	dd := computeDrawdown(in.EquityCurve)
	ts := computeTradeStats(in.Trades)
	growth := cagr(in.EquityCurve, p.InitialCash)

	m.Overview = Overview{
		InitialCash:    p.InitialCash,
		FinalValue:     final,
		NetProfit:      netProfit,
		TotalNetPoints: ts.totalPoints,
		TotalReturnPct: netProfit / p.InitialCash * 100,
		CAGRPct:        Ratio(growth),
		TotalTrades:    ts.closed,
		OpenTrades:     ts.open,
		ExposurePct:    exposure(in.EquityCurve),
	}

	m.Returns = ReturnsAnalysis{
		WeeklyReturns:  weeklyReturns(returns),
		MonthlyReturns: monthlyReturns(returns),
		AnnualReturns:  annualReturns(returns),
	}

	m.RiskDrawdown = RiskDrawdown{
		MaxDrawdownPct:     dd.maxPct,
		MaxDrawdownMoney:   dd.maxMoney,
		MaxDrawdownBars:    dd.maxBars,
		LargestLosingTrade: ts.largestLoss,
	}

	m.RiskAdjustedReturns = RiskAdjustedReturns{
		Sharpe:  Ratio(sharpe(series, p.RiskFreeRate, p.PeriodsPerYear)),
		Sortino: Ratio(sortino(series, p.RiskFreeRate, p.PeriodsPerYear)),
		Calmar:  Ratio(calmar(growth, dd.maxPct)),
	}

	m.TradeStatistics = TradeStatistics{
		WinRatePct:      ts.winRate,
		Won:             ts.won,
		Lost:            ts.lost,
		GrossProfit:     ts.grossProfit,
		GrossLoss:       ts.grossLoss,
		AverageWin:      ts.avgWin,
		AverageLoss:     ts.avgLoss,
		RiskRewardRatio: Ratio(ts.riskReward),
		ProfitFactor:    Ratio(ts.profitFact),
		Expectancy:      ts.expectancy,
	}

	m.ConsecutiveMetrics = ConsecutiveMetrics{
		MaxConsecutiveWins:   ts.maxWinRun,
		MaxConsecutiveLosses: ts.maxLossRun,
	}

	commission := totalCommission(in.Orders, in.Trades, p.Commission)
	commissionPct := 0.0
	if netProfit != 0 {
		commissionPct = commission / math.Abs(netProfit) * 100
	}
	m.FrictionCosts = FrictionCosts{
		TotalCommission:          commission,
		CommissionToNetProfitPct: commissionPct,
		SlippagePtsPerTrade:      p.Slippage,
	}

	return m, nil
}

func validate(in Input, p *Params) error {
	if !(p.InitialCash > 0) || math.IsInf(p.InitialCash, 0) {
		return fmt.Errorf("%w: initial cash must be positive, got %v", model.ValidationError, p.InitialCash)
	}
	if math.IsNaN(p.RiskFreeRate) || p.RiskFreeRate <= -1 {
		return fmt.Errorf("%w: bad risk-free rate %v", model.ValidationError, p.RiskFreeRate)
	}
	if math.IsNaN(p.Commission) || math.IsInf(p.Commission, 0) || p.Commission < 0 {
		return fmt.Errorf("%w: bad commission %v", model.ValidationError, p.Commission)
	}
	if p.PeriodsPerYear <= 0 {
		p.PeriodsPerYear = DefaultPeriodsPerYear
	}

	for i, e := range in.EquityCurve {
		if math.IsNaN(e.Value) || math.IsInf(e.Value, 0) {
			return fmt.Errorf("%w: equity value #%d is not finite", model.ValidationError, i)
		}
		if i > 0 && e.Ts.Before(in.EquityCurve[i-1].Ts) {
			return fmt.Errorf("%w: equity curve is not ordered at #%d", model.ValidationError, i)
		}
	}
	for i, r := range in.Returns {
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			return fmt.Errorf("%w: return #%d is not finite", model.ValidationError, i)
		}
		if i > 0 && r.Ts.Before(in.Returns[i-1].Ts) {
			return fmt.Errorf("%w: returns are not ordered at #%d", model.ValidationError, i)
		}
	}
	for _, t := range in.Trades {
		if math.IsNaN(t.PnL) || math.IsNaN(t.PnLComm) || math.IsNaN(t.Points) {
			return fmt.Errorf("%w: trade %d has NaN p&l", model.ValidationError, t.Ref)
		}
	}
	return nil
}
