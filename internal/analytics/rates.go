package analytics

import (
	"strconv"

	"github.com/shopspring/decimal"
)

const zeroRate = "0.0"

// percent formats part/whole*100 with one decimal place. A zero whole yields "0.0".
func percent(part, whole int) string {
	if whole <= 0 {
		return zeroRate
	}
	return strconv.FormatFloat(float64(part)/float64(whole)*100, 'f', 1, 64)
}

// safeDiv returns num/den, or zero when den is zero.
func safeDiv(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}

// round2 converts d to a float rounded to two decimal places for output.
func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
