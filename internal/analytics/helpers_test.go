package analytics

import (
	"time"

	"github.com/radiusdt/recovery-analytics/internal/models"
	"github.com/shopspring/decimal"
)

func strPtr(s string) *string { return &s }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func abandoned(id string, at time.Time, value string) models.AbandonedCart {
	return models.AbandonedCart{
		ID:          id,
		UserID:      "u1",
		AbandonedAt: at,
		Status:      models.CartStatusAbandoned,
		TotalValue:  dec(value),
	}
}

func recovered(id string, at time.Time, value, recValue string) models.AbandonedCart {
	c := abandoned(id, at, value)
	c.Status = models.CartStatusRecovered
	if recValue != "" {
		c.RecoveredValue = decimal.NewNullDecimal(dec(recValue))
	}
	return c
}

func withCampaign(c models.AbandonedCart, campaign string) models.AbandonedCart {
	c.UTM.Campaign = strPtr(campaign)
	return c
}

func date(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}
