package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CartStatus is the lifecycle state of an abandoned cart.
// A cart only moves from abandoned to recovered, never back.
type CartStatus string

const (
	CartStatusAbandoned CartStatus = "abandoned"
	CartStatusRecovered CartStatus = "recovered"
)

// ParseCartStatus maps a stored status string onto the closed set of statuses.
func ParseCartStatus(s string) (CartStatus, error) {
	switch CartStatus(s) {
	case CartStatusAbandoned, CartStatusRecovered:
		return CartStatus(s), nil
	default:
		return "", fmt.Errorf("unknown cart status %q", s)
	}
}

// UTM holds the marketing parameters captured when the cart was abandoned.
// Nil means the parameter was absent.
type UTM struct {
	Source   *string `json:"utm_source"`
	Medium   *string `json:"utm_medium"`
	Campaign *string `json:"utm_campaign"`
	Term     *string `json:"utm_term"`
	Content  *string `json:"utm_content"`
}

// AbandonedCart is a checkout seen abandoned on the store platform.
type AbandonedCart struct {
	ID          string     `json:"id"` // e.g. shopify_<checkout_id>
	UserID      string     `json:"user_id"`
	AbandonedAt time.Time  `json:"abandoned_at"`
	Status      CartStatus `json:"status"`

	// TotalValue never changes after creation.
	TotalValue decimal.Decimal `json:"total_value"`
	// RecoveredValue is only meaningful when Status is recovered.
	RecoveredValue decimal.NullDecimal `json:"recovered_value"`

	UTM
}

// IsRecovered reports whether the cart reached the recovered state.
func (c *AbandonedCart) IsRecovered() bool {
	return c.Status == CartStatusRecovered
}

// RecoveredOrZero returns the recovered value, or zero when it was never set.
func (c *AbandonedCart) RecoveredOrZero() decimal.Decimal {
	if c.RecoveredValue.Valid {
		return c.RecoveredValue.Decimal
	}
	return decimal.Zero
}

// RecoveredOrTotal returns the recovered value, falling back to the full
// cart value when no recovered amount was recorded.
func (c *AbandonedCart) RecoveredOrTotal() decimal.Decimal {
	if c.RecoveredValue.Valid {
		return c.RecoveredValue.Decimal
	}
	return c.TotalValue
}
