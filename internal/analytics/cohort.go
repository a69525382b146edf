package analytics

import (
	"time"

	"github.com/radiusdt/recovery-analytics/internal/models"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type cohortAcc struct {
	week      string
	total     int
	recovered int
	value     decimal.Decimal
	recValue  decimal.Decimal
}

// WeekStart returns the Sunday that starts the week containing t, as a
// calendar date in loc.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d-int(local.Weekday()), 0, 0, 0, 0, loc)
}

// BuildCohorts buckets carts into weekly cohorts. Cohorts are returned in
// the order their week was first seen in carts, which is not necessarily
// chronological.
func BuildCohorts(carts []models.AbandonedCart, loc *time.Location) []models.Cohort {
	index := make(map[string]int)
	accs := make([]*cohortAcc, 0)

	for i := range carts {
		c := &carts[i]
		week := WeekStart(c.AbandonedAt, loc).Format(dateLayout)

		pos, ok := index[week]
		if !ok {
			pos = len(accs)
			index[week] = pos
			accs = append(accs, &cohortAcc{week: week})
		}
		acc := accs[pos]
		acc.total++
		if c.IsRecovered() {
			acc.recovered++
		}
		acc.value = acc.value.Add(c.TotalValue)
		acc.recValue = acc.recValue.Add(c.RecoveredOrZero())
	}

	out := make([]models.Cohort, 0, len(accs))
	for _, acc := range accs {
		out = append(out, models.Cohort{
			Week:           acc.week,
			TotalCarts:     acc.total,
			RecoveredCarts: acc.recovered,
			TotalValue:     round2(acc.value),
			RecoveredValue: round2(acc.recValue),
			RecoveryRate:   percent(acc.recovered, acc.total),
			AvgCartValue:   safeDiv(acc.value, decimal.NewFromInt(int64(acc.total))).StringFixed(2),
		})
	}
	return out
}
