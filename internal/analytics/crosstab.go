package analytics

import (
	"sort"
	"time"

	"github.com/radiusdt/recovery-analytics/internal/models"
	"github.com/shopspring/decimal"
)

const (
	directLabel   = "(direct)"
	topUTMBuckets = 10
)

var weekdayLabels = [7]string{"Dom", "Seg", "Ter", "Qua", "Qui", "Sex", "Sáb"}

type bracketDef struct {
	label string
	min   decimal.Decimal
	max   *decimal.Decimal // nil = no upper bound
}

func bound(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// valueBrackets partition [0, inf) into half-open ranges.
var valueBrackets = []bracketDef{
	{label: "R$ 0-100", min: decimal.Zero, max: bound(100)},
	{label: "R$ 100-300", min: decimal.NewFromInt(100), max: bound(300)},
	{label: "R$ 300-500", min: decimal.NewFromInt(300), max: bound(500)},
	{label: "R$ 500-1000", min: decimal.NewFromInt(500), max: bound(1000)},
	{label: "R$ 1000+", min: decimal.NewFromInt(1000)},
}

// BracketFor returns the index into the value brackets for a cart value.
// Values below zero are counted in the first bracket.
func BracketFor(v decimal.Decimal) int {
	for i, b := range valueBrackets {
		if b.max == nil || v.LessThan(*b.max) {
			return i
		}
	}
	return len(valueBrackets) - 1
}

// BuildCrossTab runs the UTM, hour, weekday and value-bracket groupings
// over one cart set. Hour, weekday and bracket outputs always have every
// bucket, even when no cart falls in it.
func BuildCrossTab(carts []models.AbandonedCart, loc *time.Location) models.CrossTab {
	return models.CrossTab{
		UTM: models.UTMBreakdown{
			Sources:   groupUTM(carts, func(c *models.AbandonedCart) *string { return c.UTM.Source }),
			Mediums:   groupUTM(carts, func(c *models.AbandonedCart) *string { return c.UTM.Medium }),
			Campaigns: groupUTM(carts, func(c *models.AbandonedCart) *string { return c.UTM.Campaign }),
		},
		TimeOfDay: models.TimeOfDay{
			ByHour:      byHour(carts, loc),
			ByDayOfWeek: byWeekday(carts, loc),
		},
		CartValue: byValue(carts),
	}
}

type utmAcc struct {
	name      string
	carts     int
	recovered int
	value     decimal.Decimal
	recValue  decimal.Decimal
}

func groupUTM(carts []models.AbandonedCart, field func(*models.AbandonedCart) *string) []models.UTMBucket {
	index := make(map[string]int)
	accs := make([]*utmAcc, 0)

	for i := range carts {
		c := &carts[i]
		name := directLabel
		if v := field(c); v != nil && *v != "" {
			name = *v
		}

		pos, ok := index[name]
		if !ok {
			pos = len(accs)
			index[name] = pos
			accs = append(accs, &utmAcc{name: name})
		}
		acc := accs[pos]
		acc.carts++
		if c.IsRecovered() {
			acc.recovered++
		}
		acc.value = acc.value.Add(c.TotalValue)
		acc.recValue = acc.recValue.Add(c.RecoveredOrZero())
	}

	// stable: ties keep first-seen order
	sort.SliceStable(accs, func(i, j int) bool { return accs[i].carts > accs[j].carts })
	if len(accs) > topUTMBuckets {
		accs = accs[:topUTMBuckets]
	}

	out := make([]models.UTMBucket, 0, len(accs))
	for _, acc := range accs {
		out = append(out, models.UTMBucket{
			Name:           acc.name,
			Carts:          acc.carts,
			Recovered:      acc.recovered,
			TotalValue:     round2(acc.value),
			RecoveredValue: round2(acc.recValue),
			RecoveryRate:   percent(acc.recovered, acc.carts),
		})
	}
	return out
}

func byHour(carts []models.AbandonedCart, loc *time.Location) []models.HourBucket {
	out := make([]models.HourBucket, 24)
	for h := range out {
		out[h].Hour = h
	}
	for i := range carts {
		h := carts[i].AbandonedAt.In(loc).Hour()
		out[h].Carts++
		if carts[i].IsRecovered() {
			out[h].Recovered++
		}
	}
	for h := range out {
		out[h].RecoveryRate = percent(out[h].Recovered, out[h].Carts)
	}
	return out
}

func byWeekday(carts []models.AbandonedCart, loc *time.Location) []models.WeekdayBucket {
	out := make([]models.WeekdayBucket, len(weekdayLabels))
	for d := range out {
		out[d].Day = d
		out[d].Label = weekdayLabels[d]
	}
	for i := range carts {
		d := int(carts[i].AbandonedAt.In(loc).Weekday())
		out[d].Carts++
		if carts[i].IsRecovered() {
			out[d].Recovered++
		}
	}
	for d := range out {
		out[d].RecoveryRate = percent(out[d].Recovered, out[d].Carts)
	}
	return out
}

func byValue(carts []models.AbandonedCart) []models.ValueBracket {
	values := make([]decimal.Decimal, len(valueBrackets))
	recValues := make([]decimal.Decimal, len(valueBrackets))
	out := make([]models.ValueBracket, len(valueBrackets))
	for i, b := range valueBrackets {
		out[i].Range = b.label
		out[i].Min = b.min.InexactFloat64()
		if b.max != nil {
			hi := b.max.InexactFloat64()
			out[i].Max = &hi
		}
	}

	for i := range carts {
		c := &carts[i]
		b := BracketFor(c.TotalValue)
		out[b].Carts++
		if c.IsRecovered() {
			out[b].Recovered++
		}
		values[b] = values[b].Add(c.TotalValue)
		recValues[b] = recValues[b].Add(c.RecoveredOrZero())
	}

	for i := range out {
		out[i].TotalValue = round2(values[i])
		out[i].RecoveredValue = round2(recValues[i])
		out[i].RecoveryRate = percent(out[i].Recovered, out[i].Carts)
	}
	return out
}
