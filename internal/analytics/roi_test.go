package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/radiusdt/recovery-analytics/internal/models"
	"github.com/radiusdt/recovery-analytics/internal/storage"
	"go.uber.org/zap"
)

func TestDateRange(t *testing.T) {
	now := time.Date(2024, time.March, 15, 13, 45, 0, 0, time.UTC)

	tests := []struct {
		preset    models.DatePreset
		wantStart time.Time
		wantStop  time.Time
	}{
		{models.PresetLast7Days, time.Date(2024, time.March, 8, 13, 45, 0, 0, time.UTC), now},
		{models.PresetLast30Days, time.Date(2024, time.February, 14, 13, 45, 0, 0, time.UTC), now},
		{models.PresetThisMonth, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), now},
		{models.PresetLastMonth, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)},
		{"lifetime", time.Date(2024, time.February, 14, 13, 45, 0, 0, time.UTC), now},
	}

	for _, tt := range tests {
		t.Run(string(tt.preset), func(t *testing.T) {
			start, stop := DateRange(tt.preset, now, time.UTC)
			if !start.Equal(tt.wantStart) || !stop.Equal(tt.wantStop) {
				t.Errorf("DateRange = [%s, %s], want [%s, %s]", start, stop, tt.wantStart, tt.wantStop)
			}
		})
	}
}

func TestDateRangeLastMonthInJanuary(t *testing.T) {
	now := time.Date(2025, time.January, 10, 8, 0, 0, 0, time.UTC)
	start, stop := DateRange(models.PresetLastMonth, now, time.UTC)
	if !start.Equal(time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %s", start)
	}
	if !stop.Equal(time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("stop = %s", stop)
	}
}

func TestInsightsPreset(t *testing.T) {
	tests := map[models.DatePreset]models.DatePreset{
		models.PresetLast7Days:  models.PresetLast7Days,
		models.PresetLast30Days: models.PresetLast30Days,
		models.PresetThisMonth:  models.PresetLast30Days,
		models.PresetLastMonth:  models.PresetLast30Days,
		"bogus":                 models.PresetLast30Days,
	}
	for in, want := range tests {
		if got := in.InsightsPreset(); got != want {
			t.Errorf("%s.InsightsPreset() = %s, want %s", in, got, want)
		}
	}
}

func TestMatchKey(t *testing.T) {
	tests := map[string]string{
		"Black Friday 2024":    "black-friday-2024",
		"Summer\t \nSale":      "summer-sale",
		"already-keyed":        "already-keyed",
		" Leading and trailing ": "-leading-and-trailing-",
		"":                     "",
	}
	for in, want := range tests {
		if got := MatchKey(in); got != want {
			t.Errorf("MatchKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCampaignCarts(t *testing.T) {
	start := date(2024, time.March, 1, 0)
	stop := date(2024, time.March, 31, 0)
	carts := []models.AbandonedCart{
		withCampaign(abandoned("in", date(2024, time.March, 5, 0), "10"), "BLACK-FRIDAY-2024-retarget"),
		withCampaign(abandoned("early", date(2024, time.February, 28, 0), "10"), "black-friday-2024"),
		withCampaign(abandoned("edge", stop, "10"), "black-friday-2024"),
		withCampaign(abandoned("other", date(2024, time.March, 5, 0), "10"), "cyber-monday"),
		abandoned("none", date(2024, time.March, 5, 0), "10"),
	}

	got := CampaignCarts(carts, "black-friday-2024", start, stop)
	if len(got) != 2 || got[0].ID != "in" || got[1].ID != "edge" {
		t.Errorf("CampaignCarts = %+v", got)
	}
}

func TestBuildROISummarySingleCampaign(t *testing.T) {
	start := date(2024, time.November, 1, 0)
	stop := date(2024, time.November, 30, 0)
	insights := []models.CampaignInsight{
		{CampaignID: "1", CampaignName: "Black Friday 2024", Spend: dec("100"), Impressions: 1000, Clicks: 50},
	}
	carts := []models.AbandonedCart{
		withCampaign(recovered("a", date(2024, time.November, 20, 10), "120", "100"), "black-friday-2024"),
		withCampaign(recovered("b", date(2024, time.November, 21, 10), "150", ""), "black-friday-2024"),
		withCampaign(abandoned("c", date(2024, time.November, 22, 10), "80"), "black-friday-2024"),
	}

	s := BuildROISummary(models.PresetLast30Days, start, stop, insights, carts)
	if len(s.Campaigns) != 1 {
		t.Fatalf("got %d campaigns", len(s.Campaigns))
	}
	c := s.Campaigns[0]
	if c.UTMCampaign != "black-friday-2024" {
		t.Errorf("utm_campaign = %q", c.UTMCampaign)
	}
	if c.RecoveredValue != 250 {
		t.Errorf("recovered value = %v, want 250", c.RecoveredValue)
	}
	if c.ROIPercentage != 150 || c.ROAS != 2.5 {
		t.Errorf("roi = %v, roas = %v, want 150 and 2.5", c.ROIPercentage, c.ROAS)
	}
	if c.TotalCarts != 3 || c.AbandonedCarts != 1 || c.RecoveredCarts != 2 {
		t.Errorf("counts = %+v", c)
	}
	if c.TotalCartValue != 350 || c.CostPerCart != 33.33 || c.RecoveryRate != 200 {
		t.Errorf("derived = %+v", c)
	}
}

func TestBuildROISummaryZeroSpend(t *testing.T) {
	start := date(2024, time.November, 1, 0)
	stop := date(2024, time.November, 30, 0)
	insights := []models.CampaignInsight{{CampaignID: "1", CampaignName: "Organic", Spend: dec("0")}}
	carts := []models.AbandonedCart{
		withCampaign(recovered("a", date(2024, time.November, 2, 0), "90", "90"), "organic"),
	}

	s := BuildROISummary(models.PresetLast30Days, start, stop, insights, carts)
	c := s.Campaigns[0]
	if c.ROIPercentage != 0 || c.ROAS != 0 || c.CostPerCart != 0 {
		t.Errorf("zero spend gave %+v", c)
	}
	// no abandoned carts
	if c.RecoveryRate != 0 {
		t.Errorf("recovery rate = %v", c.RecoveryRate)
	}
	if s.OverallROI != 0 || s.OverallROAS != 0 {
		t.Errorf("overall = %v / %v", s.OverallROI, s.OverallROAS)
	}
}

func TestBuildROISummaryTotalsFromComponents(t *testing.T) {
	start := date(2024, time.November, 1, 0)
	stop := date(2024, time.November, 30, 0)
	at := date(2024, time.November, 10, 0)
	insights := []models.CampaignInsight{
		{CampaignID: "small", CampaignName: "Tiny Test", Spend: dec("1")},
		{CampaignID: "big", CampaignName: "Main Push", Spend: dec("1000")},
	}
	carts := []models.AbandonedCart{
		withCampaign(recovered("a", at, "50", "50"), "tiny-test"),
		withCampaign(recovered("b", at, "500", "500"), "main-push"),
		withCampaign(abandoned("c", at, "300"), "main-push"),
	}

	s := BuildROISummary(models.PresetLast30Days, start, stop, insights, carts)

	if s.Campaigns[0].CampaignID != "big" {
		t.Errorf("campaigns not sorted by recovered value: %s first", s.Campaigns[0].CampaignID)
	}
	if s.TotalAdSpend != 1001 || s.TotalRecoveredValue != 550 {
		t.Fatalf("totals = %v / %v", s.TotalAdSpend, s.TotalRecoveredValue)
	}
	// 550 / 1001, not the mean of 50 and 0.5
	if s.OverallROAS != 0.55 {
		t.Errorf("overall roas = %v, want 0.55", s.OverallROAS)
	}
	if s.OverallROI != -45.05 {
		t.Errorf("overall roi = %v, want -45.05", s.OverallROI)
	}
	if s.TotalCarts != 3 || s.OverallCostPerCart != 333.67 {
		t.Errorf("carts = %d, cost per cart = %v", s.TotalCarts, s.OverallCostPerCart)
	}
	if s.OverallRecoveryRate != 200 {
		t.Errorf("overall recovery rate = %v", s.OverallRecoveryRate)
	}
}

func TestBuildROISummaryNoCampaigns(t *testing.T) {
	s := BuildROISummary(models.PresetLast7Days, time.Time{}, time.Time{}, nil, nil)
	if s.Campaigns == nil || len(s.Campaigns) != 0 {
		t.Errorf("campaigns = %#v", s.Campaigns)
	}
	if s.OverallROI != 0 || s.OverallCostPerCart != 0 {
		t.Errorf("summary = %+v", s)
	}
}

type stubInsights struct {
	got   models.DatePreset
	out   []models.CampaignInsight
	err   error
	block bool
}

func (s *stubInsights) FetchCampaignInsights(ctx context.Context, _ *models.AdsConnection, preset models.DatePreset) ([]models.CampaignInsight, error) {
	s.got = preset
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.out, s.err
}

func TestROICalculatorCalculate(t *testing.T) {
	now := time.Date(2024, time.November, 30, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	carts := storage.NewInMemoryCartRepo(
		withCampaign(recovered("a", date(2024, time.November, 20, 10), "300", "250"), "black-friday-2024"),
	)

	tests := []struct {
		name        string
		conn        *models.AdsConnection
		insights    *stubInsights
		preset      models.DatePreset
		wantPreset  models.DatePreset
		unavailable error
	}{
		{
			name:       "computes summary",
			conn:       &models.AdsConnection{UserID: "u1", AccountID: "1", ExpiresAt: &future},
			insights:   &stubInsights{out: []models.CampaignInsight{{CampaignName: "Black Friday 2024", Spend: dec("100")}}},
			preset:     models.PresetThisMonth,
			wantPreset: models.PresetLast30Days,
		},
		{
			name:        "not connected",
			insights:    &stubInsights{},
			preset:      models.PresetLast7Days,
			unavailable: ErrAdsNotConnected,
		},
		{
			name:        "expired",
			conn:        &models.AdsConnection{UserID: "u1", AccountID: "1", ExpiresAt: &past},
			insights:    &stubInsights{},
			preset:      models.PresetLast7Days,
			unavailable: ErrAdsConnectionExpired,
		},
		{
			name:        "no account",
			conn:        &models.AdsConnection{UserID: "u1"},
			insights:    &stubInsights{},
			preset:      models.PresetLast7Days,
			unavailable: ErrNoAdAccount,
		},
		{
			name:        "ads timeout",
			conn:        &models.AdsConnection{UserID: "u1", AccountID: "1"},
			insights:    &stubInsights{block: true},
			preset:      models.PresetLast7Days,
			unavailable: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conns := storage.NewInMemoryAdsConnectionRepo()
			conns.Upsert(tt.conn)

			calc := NewROICalculator(conns, tt.insights, carts, time.UTC, 20*time.Millisecond, zap.NewNop())
			calc.now = func() time.Time { return now }

			got, err := calc.Calculate(context.Background(), "u1", tt.preset)
			if tt.unavailable != nil {
				if !errors.Is(err, ErrROIUnavailable) || !errors.Is(err, tt.unavailable) {
					t.Fatalf("err = %v, want ROI unavailable wrapping %v", err, tt.unavailable)
				}
				return
			}
			if err != nil {
				t.Fatalf("Calculate: %v", err)
			}
			if tt.insights.got != tt.wantPreset {
				t.Errorf("queried preset %s, want %s", tt.insights.got, tt.wantPreset)
			}
			if got.DatePreset != tt.preset || len(got.Campaigns) != 1 || got.Campaigns[0].ROAS != 2.5 {
				t.Errorf("summary = %+v", got)
			}
		})
	}
}

type failingConns struct{ err error }

func (f failingConns) GetAdsConnection(context.Context, string) (*models.AdsConnection, error) {
	return nil, f.err
}

func TestROICalculatorInfrastructureError(t *testing.T) {
	calc := NewROICalculator(failingConns{err: errors.New("connection refused")}, &stubInsights{}, storage.NewInMemoryCartRepo(), time.UTC, 0, zap.NewNop())

	_, err := calc.Calculate(context.Background(), "u1", models.PresetLast7Days)
	if err == nil || errors.Is(err, ErrROIUnavailable) {
		t.Fatalf("err = %v, want infrastructure error", err)
	}
}
