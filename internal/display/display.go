// Package display renders reports and portfolio views as console text.
package display

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/Rhymond/go-money"
	"github.com/STTM-NSU/portfolio-tracker/internal/analytics"
	"github.com/STTM-NSU/portfolio-tracker/internal/model"
	"github.com/STTM-NSU/portfolio-tracker/internal/portfolio"
	"github.com/STTM-NSU/portfolio-tracker/internal/tools"
	"github.com/shopspring/decimal"
)

// Money formats an amount with the currency's grapheme and separators, rounded half away from
// zero to the currency's minor unit. Unknown currencies get two decimals.
func Money(amount float64, currency string) string {
	fraction := 2
	if c := money.GetCurrency(currency); c != nil {
		fraction = c.Fraction
	}
	minor := decimal.NewFromFloat(amount).Shift(int32(fraction)).Round(0).IntPart()
	return money.New(minor, currency).Display()
}

func MoneyDecimal(amount decimal.Decimal, currency string) string {
	return Money(tools.Float(amount), currency)
}

func Report(w io.Writer, r analytics.Report, currency string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	p := func(format string, args ...any) {
		fmt.Fprintf(tw, format+"\n", args...)
	}

	p("OVERVIEW")
	p("  Initial cash\t%s", Money(r.Overview.InitialCash, currency))
	p("  Final value\t%s", Money(r.Overview.FinalValue, currency))
	p("  Net profit\t%s", Money(r.Overview.NetProfit, currency))
	p("  Total net points\t%.2f", r.Overview.TotalNetPoints)
	p("  Total return\t%.2f%%", r.Overview.TotalReturnPct)
	p("  CAGR\t%s%%", r.Overview.CAGRPct)
	p("  Trades\t%d closed, %d open", r.Overview.TotalTrades, r.Overview.OpenTrades)
	p("  Exposure\t%.2f%%", r.Overview.ExposurePct)

	p("RISK & DRAWDOWN")
	p("  Max drawdown\t%.2f%% (%s)", r.RiskDrawdown.MaxDrawdownPct, Money(r.RiskDrawdown.MaxDrawdownMoney, currency))
	p("  Longest drawdown\t%d bars", r.RiskDrawdown.MaxDrawdownBars)
	p("  Largest losing trade\t%s", Money(r.RiskDrawdown.LargestLosingTrade, currency))

	p("RISK-ADJUSTED RETURNS")
	p("  Sharpe\t%s", r.RiskAdjustedReturns.Sharpe)
	p("  Sortino\t%s", r.RiskAdjustedReturns.Sortino)
	p("  Calmar\t%s", r.RiskAdjustedReturns.Calmar)

	p("TRADE STATISTICS")
	p("  Win rate\t%.2f%% (%d won, %d lost)", r.TradeStatistics.WinRatePct, r.TradeStatistics.Won, r.TradeStatistics.Lost)
	p("  Average win\t%s", Money(r.TradeStatistics.AverageWin, currency))
	p("  Average loss\t%s", Money(r.TradeStatistics.AverageLoss, currency))
	p("  Risk/reward\t%s", r.TradeStatistics.RiskRewardRatio)
	p("  Profit factor\t%s", r.TradeStatistics.ProfitFactor)
	p("  Expectancy\t%s", Money(r.TradeStatistics.Expectancy, currency))
	p("  Max consecutive wins\t%d", r.ConsecutiveMetrics.MaxConsecutiveWins)
	p("  Max consecutive losses\t%d", r.ConsecutiveMetrics.MaxConsecutiveLosses)

	p("FRICTION")
	p("  Total commission\t%s", Money(r.FrictionCosts.TotalCommission, currency))
	p("  Commission / net profit\t%.2f%%", r.FrictionCosts.CommissionToNetProfitPct)
	p("  Slippage per trade\t%.2f pts", r.FrictionCosts.SlippagePtsPerTrade)

	for _, section := range []struct {
		title string
		m     map[string]float64
	}{
		{"ANNUAL RETURNS", r.Returns.AnnualReturns},
		{"MONTHLY RETURNS", r.Returns.MonthlyReturns},
		{"WEEKLY RETURNS", r.Returns.WeeklyReturns},
	} {
		if len(section.m) == 0 {
			continue
		}
		p(section.title)
		for _, k := range slices.Sorted(maps.Keys(section.m)) {
			p("  %s\t%.2f%%", k, section.m[k])
		}
	}

	if len(r.Unavailable) > 0 {
		p("UNAVAILABLE\t%v", r.Unavailable)
	}
	return tw.Flush()
}

func Overview(w io.Writer, o portfolio.Overview) error {
	base := o.BaseCurrency
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "SYMBOL\tMARKET\tQTY\tAVG COST\tPRICE\tVALUE\tVALUE "+base+"\tUNREALIZED")
	for _, p := range o.Positions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Symbol, p.Market, p.Quantity,
			MoneyDecimal(p.AverageCost, p.Currency),
			MoneyDecimal(p.CurrentPrice, p.Currency),
			MoneyDecimal(p.MarketValue, p.Currency),
			MoneyDecimal(p.BaseValue, base),
			MoneyDecimal(p.UnrealizedPL, p.Currency),
		)
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "Equity US\t%s\n", MoneyDecimal(o.EquityUS, base))
	fmt.Fprintf(tw, "Equity TW\t%s\n", MoneyDecimal(o.EquityTW, base))
	fmt.Fprintf(tw, "Equity futures\t%s\n", MoneyDecimal(o.EquityFutures, base))
	fmt.Fprintf(tw, "Cash\t%s\n", MoneyDecimal(o.CashBalance, base))
	fmt.Fprintf(tw, "Unrealized P/L\t%s\n", MoneyDecimal(o.UnrealizedPL, base))
	fmt.Fprintf(tw, "Net worth\t%s\n", MoneyDecimal(o.TotalNetWorth, base))
	return tw.Flush()
}

func Holdings(w io.Writer, holdings []model.HoldingView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tMARKET\tQTY\tAVG COST\tPRICE\tUPDATED")
	for _, h := range holdings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			h.Symbol, h.Market, h.Quantity,
			MoneyDecimal(h.AverageCost, h.Currency),
			MoneyDecimal(h.CurrentPrice, h.Currency),
			h.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	return tw.Flush()
}

func Transactions(w io.Writer, currency string, txs []model.Transaction) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EXECUTED\tSIDE\tQTY\tPRICE\tREASON\tTAGS")
	for _, t := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%v\n",
			t.ExecutedAt.Format("2006-01-02 15:04:05"), t.Side, t.Quantity,
			MoneyDecimal(t.Price, currency), t.Reason, t.Tags,
		)
	}
	return tw.Flush()
}

func History(w io.Writer, currency string, snaps []model.DailySnapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tNET WORTH\tUS\tTW\tFUTURES\tCASH")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Date.Format(model.DateLayout),
			MoneyDecimal(s.TotalNetWorth, currency),
			MoneyDecimal(s.EquityUS, currency),
			MoneyDecimal(s.EquityTW, currency),
			MoneyDecimal(s.EquityFutures, currency),
			MoneyDecimal(s.CashBalance, currency),
		)
	}
	return tw.Flush()
}
