package models

import "time"

// ===========================================
// COHORTS
// ===========================================

// Cohort aggregates carts abandoned in the same calendar week.
type Cohort struct {
	Week           string  `json:"week"` // week start date, YYYY-MM-DD
	TotalCarts     int     `json:"totalCarts"`
	RecoveredCarts int     `json:"recoveredCarts"`
	TotalValue     float64 `json:"totalValue"`
	RecoveredValue float64 `json:"recoveredValue"`
	RecoveryRate   string  `json:"recoveryRate"`
	AvgCartValue   string  `json:"avgCartValue"`
}

// ===========================================
// FUNNEL
// ===========================================

// Funnel counts recovery emails through sent, opened, clicked and converted.
type Funnel struct {
	Sent              int    `json:"sent"`
	Opened            int    `json:"opened"`
	Clicked           int    `json:"clicked"`
	Converted         int    `json:"converted"`
	OpenRate          string `json:"openRate"`
	ClickRate         string `json:"clickRate"`
	ConversionRate    string `json:"conversionRate"`
	ClickToConversion string `json:"clickToConversion"`
}

// ===========================================
// CROSS-TABULATION
// ===========================================

// UTMBucket is one value of a UTM parameter and the carts carrying it.
type UTMBucket struct {
	Name           string  `json:"name"`
	Carts          int     `json:"carts"`
	Recovered      int     `json:"recovered"`
	TotalValue     float64 `json:"totalValue"`
	RecoveredValue float64 `json:"recoveredValue"`
	RecoveryRate   string  `json:"recoveryRate"`
}

// UTMBreakdown groups carts by each UTM parameter independently.
type UTMBreakdown struct {
	Sources   []UTMBucket `json:"sources"`
	Mediums   []UTMBucket `json:"mediums"`
	Campaigns []UTMBucket `json:"campaigns"`
}

type HourBucket struct {
	Hour         int    `json:"hour"`
	Carts        int    `json:"carts"`
	Recovered    int    `json:"recovered"`
	RecoveryRate string `json:"recoveryRate"`
}

type WeekdayBucket struct {
	Day          int    `json:"day"` // 0 = Sunday
	Label        string `json:"label"`
	Carts        int    `json:"carts"`
	Recovered    int    `json:"recovered"`
	RecoveryRate string `json:"recoveryRate"`
}

// TimeOfDay holds the fixed-size hour and weekday distributions.
type TimeOfDay struct {
	ByHour      []HourBucket    `json:"byHour"`
	ByDayOfWeek []WeekdayBucket `json:"byDayOfWeek"`
}

// ValueBracket is a half-open cart value range [Min, Max). Max is nil for the
// open-ended top bracket.
type ValueBracket struct {
	Range          string   `json:"range"`
	Min            float64  `json:"min"`
	Max            *float64 `json:"max"`
	Carts          int      `json:"carts"`
	Recovered      int      `json:"recovered"`
	TotalValue     float64  `json:"totalValue"`
	RecoveredValue float64  `json:"recoveredValue"`
	RecoveryRate   string   `json:"recoveryRate"`
}

// CrossTab is the output of every dimensional grouping over one cart set.
type CrossTab struct {
	UTM       UTMBreakdown
	TimeOfDay TimeOfDay
	CartValue []ValueBracket
}

// ===========================================
// ROI
// ===========================================

// CampaignROI joins one ads campaign to the carts it brought in.
type CampaignROI struct {
	CampaignID   string  `json:"campaign_id"`
	CampaignName string  `json:"campaign_name"`
	UTMCampaign  string  `json:"utm_campaign"` // match key derived from the name
	AdSpend      float64 `json:"ad_spend"`
	Impressions  int64   `json:"impressions"`
	Clicks       int64   `json:"clicks"`
	CPC          float64 `json:"cpc"`
	CTR          float64 `json:"ctr"`

	TotalCarts     int     `json:"total_carts"`
	AbandonedCarts int     `json:"abandoned_carts"`
	RecoveredCarts int     `json:"recovered_carts"`
	TotalCartValue float64 `json:"total_cart_value"`
	RecoveredValue float64 `json:"recovered_value"`

	ROIPercentage float64 `json:"roi_percentage"`
	ROAS          float64 `json:"roas"`
	CostPerCart   float64 `json:"cost_per_cart"`
	RecoveryRate  float64 `json:"recovery_rate"`
}

// ROISummary is the per-campaign list plus totals built from summed components.
type ROISummary struct {
	DatePreset DatePreset    `json:"date_preset"`
	DateStart  time.Time     `json:"date_start"`
	DateStop   time.Time     `json:"date_stop"`
	Campaigns  []CampaignROI `json:"campaigns"`

	TotalAdSpend        float64 `json:"total_ad_spend"`
	TotalCarts          int     `json:"total_carts"`
	TotalAbandonedCarts int     `json:"total_abandoned_carts"`
	TotalRecoveredCarts int     `json:"total_recovered_carts"`
	TotalCartValue      float64 `json:"total_cart_value"`
	TotalRecoveredValue float64 `json:"total_recovered_value"`

	OverallROI          float64 `json:"overall_roi"`
	OverallROAS         float64 `json:"overall_roas"`
	OverallCostPerCart  float64 `json:"overall_cost_per_cart"`
	OverallRecoveryRate float64 `json:"overall_recovery_rate"`
}

// ===========================================
// REPORT
// ===========================================

// Report is the combined analytics payload for one tenant and window.
// A nil section means it could not be computed; its name is then listed
// in Degraded.
type Report struct {
	Success   bool           `json:"success"`
	Period    int            `json:"period"`
	StartDate time.Time      `json:"startDate"`
	Cohorts   []Cohort       `json:"cohorts"`
	Funnel    *Funnel        `json:"funnel"`
	UTM       *UTMBreakdown  `json:"utm"`
	TimeOfDay *TimeOfDay     `json:"timeOfDay"`
	CartValue []ValueBracket `json:"cartValue"`
	ROI       *ROISummary    `json:"roi"`
	Degraded  []string       `json:"degraded,omitempty"`
}
