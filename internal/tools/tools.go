package tools

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round2 rounds half away from zero to two decimals through decimal arithmetic, so that 2.675
// becomes 2.68 rather than the binary-float 2.67. Infinities and NaN pass through.
func Round2(v float64) float64 {
	return RoundTo(v, 2)
}

func RoundTo(v float64, places int32) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Float converts a money value for the statistical code paths.
func Float(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

// SumDecimals adds values exactly.
func SumDecimals(values ...decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(values[0], values[1:]...)
}

// ConvertToBase converts amount held in currency into the base currency. rates maps a currency to
// the number of base units per one unit of it. An unknown currency yields ok=false.
func ConvertToBase(amount decimal.Decimal, currency, base string, rates map[string]decimal.Decimal) (decimal.Decimal, bool) {
	if currency == base {
		return amount, true
	}
	rate, ok := rates[currency]
	if !ok {
		return decimal.Zero, false
	}
	return amount.Mul(rate), true
}
