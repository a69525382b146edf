package analytics

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/radiusdt/recovery-analytics/internal/models"
	"github.com/radiusdt/recovery-analytics/internal/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

var hundred = decimal.NewFromInt(100)

// InsightsFetcher returns per-campaign ads data for a connection and preset.
type InsightsFetcher interface {
	FetchCampaignInsights(ctx context.Context, conn *models.AdsConnection, preset models.DatePreset) ([]models.CampaignInsight, error)
}

// DateRange resolves a preset to the [start, stop] window it covers at now.
// Calendar boundaries are taken in loc. Unknown presets behave as last_30d.
func DateRange(preset models.DatePreset, now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	y, m, _ := local.Date()

	switch preset {
	case models.PresetLast7Days:
		return local.AddDate(0, 0, -7), local
	case models.PresetThisMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc), local
	case models.PresetLastMonth:
		// day 0 of the current month is the last day of the previous one
		return time.Date(y, m-1, 1, 0, 0, 0, 0, loc), time.Date(y, m, 0, 0, 0, 0, 0, loc)
	default:
		return local.AddDate(0, 0, -30), local
	}
}

// MatchKey derives the utm_campaign value a campaign is expected to carry:
// the lowercased name with every whitespace run replaced by "-".
func MatchKey(campaignName string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(campaignName), "-")
}

// CampaignCarts selects the carts attributed to key: utm_campaign contains
// key case-insensitively and abandoned_at lies within [start, stop].
// Matching is by substring, so one cart can be attributed to several campaigns.
func CampaignCarts(carts []models.AbandonedCart, key string, start, stop time.Time) []models.AbandonedCart {
	key = strings.ToLower(key)
	var out []models.AbandonedCart
	for i := range carts {
		c := &carts[i]
		if c.UTM.Campaign == nil {
			continue
		}
		if c.AbandonedAt.Before(start) || c.AbandonedAt.After(stop) {
			continue
		}
		if strings.Contains(strings.ToLower(*c.UTM.Campaign), key) {
			out = append(out, *c)
		}
	}
	return out
}

type campaignTotals struct {
	roi       models.CampaignROI
	spend     decimal.Decimal
	cartValue decimal.Decimal
	recValue  decimal.Decimal
}

func computeCampaign(in models.CampaignInsight, carts []models.AbandonedCart) campaignTotals {
	t := campaignTotals{spend: in.Spend}
	r := models.CampaignROI{
		CampaignID:   in.CampaignID,
		CampaignName: in.CampaignName,
		UTMCampaign:  MatchKey(in.CampaignName),
		Impressions:  in.Impressions,
		Clicks:       in.Clicks,
		CPC:          in.CPC,
		CTR:          in.CTR,
		TotalCarts:   len(carts),
	}

	for i := range carts {
		c := &carts[i]
		t.cartValue = t.cartValue.Add(c.TotalValue)
		switch c.Status {
		case models.CartStatusAbandoned:
			r.AbandonedCarts++
		case models.CartStatusRecovered:
			r.RecoveredCarts++
			t.recValue = t.recValue.Add(c.RecoveredOrTotal())
		}
	}

	r.AdSpend = round2(t.spend)
	r.TotalCartValue = round2(t.cartValue)
	r.RecoveredValue = round2(t.recValue)
	r.ROIPercentage = round2(safeDiv(t.recValue.Sub(t.spend), t.spend).Mul(hundred))
	r.ROAS = round2(safeDiv(t.recValue, t.spend))
	r.CostPerCart = round2(safeDiv(t.spend, decimal.NewFromInt(int64(r.TotalCarts))))
	r.RecoveryRate = round2(safeDiv(decimal.NewFromInt(int64(r.RecoveredCarts)), decimal.NewFromInt(int64(r.AbandonedCarts))).Mul(hundred))

	t.roi = r
	return t
}

// BuildROISummary joins every campaign insight to the carts attributed to
// it. Overall figures are derived from summed spend, carts and values, not
// from averaging per-campaign ratios.
func BuildROISummary(preset models.DatePreset, start, stop time.Time, insights []models.CampaignInsight, carts []models.AbandonedCart) models.ROISummary {
	s := models.ROISummary{
		DatePreset: preset,
		DateStart:  start,
		DateStop:   stop,
		Campaigns:  make([]models.CampaignROI, 0, len(insights)),
	}

	var spend, cartValue, recValue decimal.Decimal
	for _, in := range insights {
		t := computeCampaign(in, CampaignCarts(carts, MatchKey(in.CampaignName), start, stop))
		s.Campaigns = append(s.Campaigns, t.roi)

		spend = spend.Add(t.spend)
		cartValue = cartValue.Add(t.cartValue)
		recValue = recValue.Add(t.recValue)
		s.TotalCarts += t.roi.TotalCarts
		s.TotalAbandonedCarts += t.roi.AbandonedCarts
		s.TotalRecoveredCarts += t.roi.RecoveredCarts
	}

	sort.SliceStable(s.Campaigns, func(i, j int) bool {
		return s.Campaigns[i].RecoveredValue > s.Campaigns[j].RecoveredValue
	})

	s.TotalAdSpend = round2(spend)
	s.TotalCartValue = round2(cartValue)
	s.TotalRecoveredValue = round2(recValue)
	s.OverallROI = round2(safeDiv(recValue.Sub(spend), spend).Mul(hundred))
	s.OverallROAS = round2(safeDiv(recValue, spend))
	s.OverallCostPerCart = round2(safeDiv(spend, decimal.NewFromInt(int64(s.TotalCarts))))
	s.OverallRecoveryRate = round2(safeDiv(decimal.NewFromInt(int64(s.TotalRecoveredCarts)), decimal.NewFromInt(int64(s.TotalAbandonedCarts))).Mul(hundred))
	return s
}

// ROICalculator cross-references a tenant's ads spend with recovered carts.
type ROICalculator struct {
	conns    storage.AdsConnectionRepo
	insights InsightsFetcher
	carts    storage.CartRepo
	loc      *time.Location
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewROICalculator creates a calculator. A zero timeout disables the
// per-call deadline.
func NewROICalculator(conns storage.AdsConnectionRepo, insights InsightsFetcher, carts storage.CartRepo, loc *time.Location, timeout time.Duration, logger *zap.Logger) *ROICalculator {
	return &ROICalculator{
		conns:    conns,
		insights: insights,
		carts:    carts,
		loc:      loc,
		timeout:  timeout,
		now:      time.Now,
		logger:   logger,
	}
}

// Calculate builds the ROI summary for userID over preset. Errors matching
// ErrROIUnavailable mean the tenant has no usable ads connection or the ads
// platform did not answer in time; any other error is an infrastructure fault.
func (r *ROICalculator) Calculate(ctx context.Context, userID string, preset models.DatePreset) (*models.ROISummary, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	conn, err := r.connection(ctx, userID)
	if err != nil {
		return nil, err
	}

	start, stop := DateRange(preset, r.now(), r.loc)

	insights, err := r.insights.FetchCampaignInsights(ctx, conn, preset.InsightsPreset())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: ads insights timed out: %w", ErrROIUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrROIUnavailable, err)
	}

	carts, err := r.carts.ListAttributedCarts(ctx, userID, start, stop)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: cart lookup timed out: %w", ErrROIUnavailable, err)
		}
		return nil, fmt.Errorf("failed to list attributed carts: %w", err)
	}

	summary := BuildROISummary(preset, start, stop, insights, carts)

	r.logger.Debug("roi computed",
		zap.String("user_id", userID),
		zap.String("preset", string(preset)),
		zap.Int("campaigns", len(summary.Campaigns)),
		zap.Float64("total_ad_spend", summary.TotalAdSpend),
	)

	return &summary, nil
}

func (r *ROICalculator) connection(ctx context.Context, userID string) (*models.AdsConnection, error) {
	conn, err := r.conns.GetAdsConnection(ctx, userID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("%w: %w", ErrROIUnavailable, ErrAdsNotConnected)
	case err != nil:
		return nil, fmt.Errorf("failed to load ads connection: %w", err)
	}

	if conn.Expired(r.now()) {
		return nil, fmt.Errorf("%w: %w", ErrROIUnavailable, ErrAdsConnectionExpired)
	}
	if conn.AccountID == "" {
		return nil, fmt.Errorf("%w: %w", ErrROIUnavailable, ErrNoAdAccount)
	}
	return conn, nil
}
