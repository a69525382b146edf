package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DatePreset names a reporting window understood by the ROI calculator.
type DatePreset string

const (
	PresetLast7Days  DatePreset = "last_7d"
	PresetLast30Days DatePreset = "last_30d"
	PresetThisMonth  DatePreset = "this_month"
	PresetLastMonth  DatePreset = "last_month"
)

// Known reports whether p is one of the supported presets.
func (p DatePreset) Known() bool {
	switch p {
	case PresetLast7Days, PresetLast30Days, PresetThisMonth, PresetLastMonth:
		return true
	}
	return false
}

// InsightsPreset returns the preset to send to the ads platform. Calendar
// month presets are not accepted there and are queried as last_30d.
func (p DatePreset) InsightsPreset() DatePreset {
	switch p {
	case PresetLast7Days, PresetLast30Days:
		return p
	default:
		return PresetLast30Days
	}
}

// CampaignInsight is per-campaign delivery data for a date range, as
// reported by the ads platform. It has no identity in this system.
type CampaignInsight struct {
	CampaignID   string          `json:"campaign_id"`
	CampaignName string          `json:"campaign_name"`
	Spend        decimal.Decimal `json:"spend"`
	Impressions  int64           `json:"impressions"`
	Clicks       int64           `json:"clicks"`
	CPC          float64         `json:"cpc"`
	CTR          float64         `json:"ctr"`
}

// AdsConnection is a tenant's link to an ads account.
type AdsConnection struct {
	UserID      string     `json:"user_id"`
	AccountID   string     `json:"account_id"` // primary ad account, without the act_ prefix
	AccessToken string     `json:"-"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the access token is past its expiry at now.
// A connection without an expiry never expires.
func (c *AdsConnection) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}
