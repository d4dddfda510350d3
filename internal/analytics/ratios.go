package analytics

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const daysPerYear = 365.25

// cagr annualizes the growth from initialCash to the last value over the whole days spanned by
// the curve. A curve of one sample, or one spanning less than a day, has no growth rate. A large
// gain over a few days overflows to +Inf.
func cagr(curve []EquityPoint, initialCash float64) float64 {
	if len(curve) <= 1 {
		return 0
	}
	years := float64(spanDays(curve[0].Ts, curve[len(curve)-1].Ts)) / daysPerYear
	if years <= 0 {
		return 0
	}
	ratio := curve[len(curve)-1].Value / initialCash
	if ratio <= 0 {
		return -100
	}
	return (math.Pow(ratio, 1/years) - 1) * 100
}

// sharpe is the annualized mean excess return over its population standard deviation. The annual
// risk-free rate is first converted to the per-period rate that compounds to it.
func sharpe(returns []float64, riskFree float64, periodsPerYear int) float64 {
	if len(returns) == 0 {
		return 0
	}
	rate := math.Pow(1+riskFree, 1/float64(periodsPerYear)) - 1

	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - rate
	}
	mean, std := stat.PopMeanStdDev(excess, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std * math.Sqrt(float64(periodsPerYear))
}

// sortino measures annualized return against downside deviation, the root mean square of the
// returns that fall below riskFree. With no downside at all the ratio is +Inf.
func sortino(returns []float64, riskFree float64, periodsPerYear int) float64 {
	if len(returns) < 2 {
		return 0
	}
	annualized := stat.Mean(returns, nil) * float64(periodsPerYear)

	var downside []float64
	for _, r := range returns {
		if r < riskFree {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return math.Inf(1)
	}

	downsideStd := math.Sqrt(floats.Dot(downside, downside)/float64(len(downside))) * math.Sqrt(float64(periodsPerYear))
	if downsideStd == 0 {
		return 0
	}
	return (annualized - riskFree) / downsideStd
}

func calmar(cagrPct, maxDrawdownPct float64) float64 {
	if maxDrawdownPct > 0 {
		return cagrPct / maxDrawdownPct
	}
	return math.Inf(1)
}

// returnsFromCurve derives per-bar simple returns, the first bar measured against initialCash.
func returnsFromCurve(curve []EquityPoint, initialCash float64) []ReturnPoint {
	out := make([]ReturnPoint, 0, len(curve))
	prev := initialCash
	for _, p := range curve {
		r := 0.0
		if prev != 0 {
			r = p.Value/prev - 1
		}
		out = append(out, ReturnPoint{Ts: p.Ts, Value: r})
		prev = p.Value
	}
	return out
}

func exposure(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	exposed := 0
	for _, p := range curve {
		if p.Exposed {
			exposed++
		}
	}
	return float64(exposed) / float64(len(curve)) * 100
}

func values(returns []ReturnPoint) []float64 {
	out := make([]float64, len(returns))
	for i, r := range returns {
		out[i] = r.Value
	}
	return out
}

// spanDays counts whole days between from and to.
func spanDays(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
