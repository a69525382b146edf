package analytics

import "github.com/radiusdt/recovery-analytics/internal/models"

// BuildFunnel counts sent recovery emails through each stage.
//
// Open, click and conversion rates are all relative to sent. Only
// ClickToConversion uses clicked as its denominator.
func BuildFunnel(actions []models.EmailAction) models.Funnel {
	var f models.Funnel
	for i := range actions {
		a := &actions[i]
		f.Sent++
		if a.Opened {
			f.Opened++
		}
		if a.Clicked {
			f.Clicked++
		}
		if a.Converted {
			f.Converted++
		}
	}

	f.OpenRate = percent(f.Opened, f.Sent)
	f.ClickRate = percent(f.Clicked, f.Sent)
	f.ConversionRate = percent(f.Converted, f.Sent)
	f.ClickToConversion = percent(f.Converted, f.Clicked)
	return f
}
