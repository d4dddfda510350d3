package analytics

import (
	"time"

	"github.com/STTM-NSU/portfolio-tracker/internal/model"
)

const (
	monthKeyLayout = "2006-01"
	yearKeyLayout  = "2006"
	weekKeyLayout  = "2006-01-02"
)

// compound groups returns by key and chains them: (1+r1)(1+r2)...-1, in percent.
func compound(returns []ReturnPoint, key func(time.Time) string) map[string]float64 {
	growth := make(map[string]float64)
	for _, r := range returns {
		k := key(r.Ts)
		g, ok := growth[k]
		if !ok {
			g = 1
		}
		growth[k] = g * (1 + r.Value)
	}

	out := make(map[string]float64, len(growth))
	for k, g := range growth {
		out[k] = (g - 1) * 100
	}
	return out
}

func monthlyReturns(returns []ReturnPoint) map[string]float64 {
	return compound(returns, func(t time.Time) string { return t.UTC().Format(monthKeyLayout) })
}

func annualReturns(returns []ReturnPoint) map[string]float64 {
	return compound(returns, func(t time.Time) string { return t.UTC().Format(yearKeyLayout) })
}

// weeklyReturns keys each Monday-to-Sunday week by its Monday. A series starting mid-week keys
// its first week by the day of the first return.
func weeklyReturns(returns []ReturnPoint) map[string]float64 {
	if len(returns) == 0 {
		return map[string]float64{}
	}
	first := model.Day(returns[0].Ts.UTC())

	return compound(returns, func(t time.Time) string {
		start := weekStart(t)
		if start.Before(first) {
			start = first
		}
		return start.Format(weekKeyLayout)
	})
}

// weekStart is the Monday of t's week at UTC midnight.
func weekStart(t time.Time) time.Time {
	d := model.Day(t.UTC())
	return d.AddDate(0, 0, -(int(d.Weekday())+6)%7)
}
