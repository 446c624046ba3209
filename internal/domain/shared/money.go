package shared

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round2 rounds a currency amount to cents, half away from zero.
// Non-finite values round to 0.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// NonNegative maps negative and non-finite inputs to 0
func NonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Cents converts a currency amount to a decimal rounded to cents
func Cents(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(2)
}
