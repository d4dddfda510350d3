package analytics

import "math"

type drawdown struct {
	maxPct   float64
	maxMoney float64
	maxBars  int
}

// computeDrawdown walks the curve with a running high-water mark. The percentage and money maxima
// are tracked independently and need not come from the same trough. An episode lasts while the
// value stays below the mark.
func computeDrawdown(curve []EquityPoint) drawdown {
	var (
		dd   drawdown
		peak = math.Inf(-1)
		bars int
	)
	for _, p := range curve {
		peak = math.Max(peak, p.Value)
		money := peak - p.Value

		pct := 0.0
		if peak > 0 {
			pct = 100 * money / peak
		}

		dd.maxMoney = math.Max(dd.maxMoney, money)
		dd.maxPct = math.Max(dd.maxPct, pct)

		if money > 0 {
			bars++
		} else {
			bars = 0
		}
		dd.maxBars = max(dd.maxBars, bars)
	}
	return dd
}
