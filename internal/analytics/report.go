package analytics

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/STTM-NSU/portfolio-tracker/internal/model"
	"github.com/STTM-NSU/portfolio-tracker/internal/tools"
)

// Ratio is a float that may legitimately be infinite. JSON has no infinity, so it is written
// as the string "Infinity" or "-Infinity".
type Ratio float64

func (r Ratio) MarshalJSON() ([]byte, error) {
	f := float64(r)
	switch {
	case math.IsInf(f, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Infinity"`), nil
	case math.IsNaN(f):
		return []byte(`null`), nil
	}
	return strconv.AppendFloat(nil, f, 'f', -1, 64), nil
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	switch s {
	case "Infinity":
		*r = Ratio(math.Inf(1))
	case "-Infinity":
		*r = Ratio(math.Inf(-1))
	case "null":
		*r = Ratio(math.NaN())
	default:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%w: can't parse ratio %q", err, s)
		}
		*r = Ratio(f)
	}
	return nil
}

func (r Ratio) String() string {
	return strconv.FormatFloat(float64(r), 'f', 2, 64)
}

type Overview struct {
	InitialCash    float64 `json:"initial_cash"`
	FinalValue     float64 `json:"final_value"`
	NetProfit      float64 `json:"net_profit"`
	TotalNetPoints float64 `json:"total_net_points"`
	TotalReturnPct float64 `json:"total_return_pct"`
	CAGRPct        Ratio   `json:"cagr_pct"`
	TotalTrades    int     `json:"total_trades"`
	OpenTrades     int     `json:"open_trades"`
	ExposurePct    float64 `json:"exposure_pct"`
}

type ReturnsAnalysis struct {
	WeeklyReturns  map[string]float64 `json:"weekly_returns"`
	MonthlyReturns map[string]float64 `json:"monthly_returns"`
	AnnualReturns  map[string]float64 `json:"annual_returns"`
}

type RiskDrawdown struct {
	MaxDrawdownPct     float64 `json:"mdd_pct"`
	MaxDrawdownMoney   float64 `json:"mdd_money"`
	MaxDrawdownBars    int     `json:"mdd_duration_bars"`
	LargestLosingTrade float64 `json:"largest_losing_trade"`
}

type RiskAdjustedReturns struct {
	Sharpe  Ratio `json:"sharpe_ratio"`
	Sortino Ratio `json:"sortino_ratio"`
	Calmar  Ratio `json:"calmar_ratio"`
}

type TradeStatistics struct {
	WinRatePct      float64 `json:"win_rate_pct"`
	Won             int     `json:"won"`
	Lost            int     `json:"lost"`
	GrossProfit     float64 `json:"gross_profit"`
	GrossLoss       float64 `json:"gross_loss"`
	AverageWin      float64 `json:"average_win"`
	AverageLoss     float64 `json:"average_loss"`
	RiskRewardRatio Ratio   `json:"risk_reward_ratio"`
	ProfitFactor    Ratio   `json:"profit_factor"`
	Expectancy      float64 `json:"expectancy"`
}

type ConsecutiveMetrics struct {
	MaxConsecutiveWins   int `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int `json:"max_consecutive_losses"`
}

type FrictionCosts struct {
	TotalCommission          float64 `json:"total_commission"`
	CommissionToNetProfitPct float64 `json:"commission_to_net_profit_pct"`
	SlippagePtsPerTrade      float64 `json:"slippage_pts_per_trade"`
}

// Metrics is the unrounded result of Compute. Its layout matches Report section by section.
type Metrics struct {
	Overview            Overview            `json:"overview"`
	Returns             ReturnsAnalysis     `json:"returns_analysis"`
	RiskDrawdown        RiskDrawdown        `json:"risk_drawdown"`
	RiskAdjustedReturns RiskAdjustedReturns `json:"risk_adjusted_returns"`
	TradeStatistics     TradeStatistics     `json:"trade_statistics"`
	ConsecutiveMetrics  ConsecutiveMetrics  `json:"consecutive_metrics"`
	FrictionCosts       FrictionCosts       `json:"friction_costs"`
	// Unavailable names the inputs that were empty, leaving their sections at documented fallbacks.
	Unavailable []string `json:"unavailable,omitempty"`
}

// Report is Metrics rounded to two decimals for presentation.
type Report Metrics

func (m Metrics) Report() Report {
	r := Report(m)
	round := tools.Round2

	r.Overview.InitialCash = round(m.Overview.InitialCash)
	r.Overview.FinalValue = round(m.Overview.FinalValue)
	r.Overview.NetProfit = round(m.Overview.NetProfit)
	r.Overview.TotalNetPoints = round(m.Overview.TotalNetPoints)
	r.Overview.TotalReturnPct = round(m.Overview.TotalReturnPct)
	r.Overview.CAGRPct = roundRatio(m.Overview.CAGRPct)
	r.Overview.ExposurePct = round(m.Overview.ExposurePct)

	r.Returns.WeeklyReturns = roundMap(m.Returns.WeeklyReturns)
	r.Returns.MonthlyReturns = roundMap(m.Returns.MonthlyReturns)
	r.Returns.AnnualReturns = roundMap(m.Returns.AnnualReturns)

	r.RiskDrawdown.MaxDrawdownPct = round(m.RiskDrawdown.MaxDrawdownPct)
	r.RiskDrawdown.MaxDrawdownMoney = round(m.RiskDrawdown.MaxDrawdownMoney)
	r.RiskDrawdown.LargestLosingTrade = round(m.RiskDrawdown.LargestLosingTrade)

	r.RiskAdjustedReturns.Sharpe = roundRatio(m.RiskAdjustedReturns.Sharpe)
	r.RiskAdjustedReturns.Sortino = roundRatio(m.RiskAdjustedReturns.Sortino)
	r.RiskAdjustedReturns.Calmar = roundRatio(m.RiskAdjustedReturns.Calmar)

	r.TradeStatistics.WinRatePct = round(m.TradeStatistics.WinRatePct)
	r.TradeStatistics.GrossProfit = round(m.TradeStatistics.GrossProfit)
	r.TradeStatistics.GrossLoss = round(m.TradeStatistics.GrossLoss)
	r.TradeStatistics.AverageWin = round(m.TradeStatistics.AverageWin)
	r.TradeStatistics.AverageLoss = round(m.TradeStatistics.AverageLoss)
	r.TradeStatistics.RiskRewardRatio = roundRatio(m.TradeStatistics.RiskRewardRatio)
	r.TradeStatistics.ProfitFactor = roundRatio(m.TradeStatistics.ProfitFactor)
	r.TradeStatistics.Expectancy = round(m.TradeStatistics.Expectancy)

	r.FrictionCosts.TotalCommission = round(m.FrictionCosts.TotalCommission)
	r.FrictionCosts.CommissionToNetProfitPct = round(m.FrictionCosts.CommissionToNetProfitPct)
	r.FrictionCosts.SlippagePtsPerTrade = round(m.FrictionCosts.SlippagePtsPerTrade)

	return r
}

// Err reports model.DataUnavailableError when some input was empty. The report itself stays usable.
func (r Report) Err() error {
	if len(r.Unavailable) == 0 {
		return nil
	}
	return fmt.Errorf("%w: empty %s", model.DataUnavailableError, strings.Join(r.Unavailable, ", "))
}

// IsDataUnavailable is a shortcut for callers that only warn on partial reports.
func IsDataUnavailable(err error) bool {
	return errors.Is(err, model.DataUnavailableError)
}

func roundRatio(r Ratio) Ratio {
	return Ratio(tools.Round2(float64(r)))
}

func roundMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = tools.Round2(v)
	}
	return out
}
