package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/radiusdt/recovery-analytics/internal/models"
	"github.com/radiusdt/recovery-analytics/internal/storage"
	"go.uber.org/zap"
)

type stubROI struct {
	summary *models.ROISummary
	err     error
	panics  bool
	preset  models.DatePreset
}

func (s *stubROI) Calculate(_ context.Context, _ string, preset models.DatePreset) (*models.ROISummary, error) {
	if s.panics {
		panic("boom")
	}
	s.preset = preset
	return s.summary, s.err
}

type failingCarts struct{}

func (f *failingCarts) ListCartsSince(context.Context, string, time.Time) ([]models.AbandonedCart, error) {
	return nil, errors.New("carts: connection reset")
}

func (f *failingCarts) ListAttributedCarts(context.Context, string, time.Time, time.Time) ([]models.AbandonedCart, error) {
	return nil, errors.New("carts: connection reset")
}

type failingEmails struct{}

func (failingEmails) ListSentSince(context.Context, string, time.Time) ([]models.EmailAction, error) {
	return nil, errors.New("emails: connection reset")
}

type sectionRecorder struct {
	mu     sync.Mutex
	failed map[string]bool
	seen   map[string]bool
}

func newSectionRecorder() *sectionRecorder {
	return &sectionRecorder{failed: map[string]bool{}, seen: map[string]bool{}}
}

func (r *sectionRecorder) ObserveSection(section string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[section] = true
	if err != nil {
		r.failed[section] = true
	}
}

var serviceNow = time.Date(2024, time.May, 31, 12, 0, 0, 0, time.UTC)

func newTestService(carts storage.CartRepo, emails storage.EmailActionRepo, roi ROISource, obs SectionObserver) *Service {
	svc := NewService(carts, emails, roi, time.UTC, obs, zap.NewNop())
	svc.now = func() time.Time { return serviceNow }
	return svc
}

func TestParsePeriod(t *testing.T) {
	tests := map[string]int{
		"":    30,
		"7":   7,
		"90":  90,
		"0":   30,
		"-5":  30,
		"abc": 30,
		"7.5": 30,
	}
	for in, want := range tests {
		if got := ParsePeriod(in, DefaultPeriod); got != want {
			t.Errorf("ParsePeriod(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestGenerateEmpty(t *testing.T) {
	svc := newTestService(storage.NewInMemoryCartRepo(), storage.NewInMemoryEmailActionRepo(), nil, nil)

	r, err := svc.Generate(context.Background(), Query{UserID: "u1", Period: 30})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !r.Success || r.Period != 30 || !r.StartDate.Equal(serviceNow.AddDate(0, 0, -30)) {
		t.Errorf("header = %+v", r)
	}
	if r.Cohorts == nil || len(r.Cohorts) != 0 {
		t.Errorf("cohorts = %#v, want []", r.Cohorts)
	}
	if r.Funnel == nil || r.Funnel.Sent != 0 || r.Funnel.OpenRate != "0.0" || r.Funnel.ClickToConversion != "0.0" {
		t.Errorf("funnel = %+v", r.Funnel)
	}
	if len(r.CartValue) != 5 {
		t.Errorf("cart value has %d brackets", len(r.CartValue))
	}
	if r.ROI != nil || len(r.Degraded) != 0 {
		t.Errorf("roi = %v, degraded = %v", r.ROI, r.Degraded)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, frag := range []string{`"cohorts":[]`, `"roi":null`, `"byHour":[`, `"byDayOfWeek":[`} {
		if !bytes.Contains(b, []byte(frag)) {
			t.Errorf("json missing %s: %s", frag, b)
		}
	}
}

func TestGenerateFiltersByWindowAndTenant(t *testing.T) {
	carts := storage.NewInMemoryCartRepo(
		recovered("in", serviceNow.AddDate(0, 0, -3), "120", "120"),
		abandoned("old", serviceNow.AddDate(0, 0, -10), "80"),
	)
	other := abandoned("other-tenant", serviceNow.AddDate(0, 0, -1), "999")
	other.UserID = "u2"
	carts.Add(other)

	emails := storage.NewInMemoryEmailActionRepo()
	emails.Add("u1", models.EmailAction{ID: "e1", WebhookEventID: "w1", ActionType: models.EmailActionSent, CreatedAt: serviceNow.AddDate(0, 0, -2), Opened: true})
	emails.Add("u1", models.EmailAction{ID: "e2", WebhookEventID: "w2", ActionType: "email_scheduled", CreatedAt: serviceNow.AddDate(0, 0, -2)})
	emails.Add("u2", models.EmailAction{ID: "e3", WebhookEventID: "w3", ActionType: models.EmailActionSent, CreatedAt: serviceNow.AddDate(0, 0, -2)})

	roi := &stubROI{summary: &models.ROISummary{DatePreset: models.PresetLast7Days}}
	svc := newTestService(carts, emails, roi, nil)

	r, err := svc.Generate(context.Background(), Query{UserID: "u1", Period: 7})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(r.Cohorts) != 1 || r.Cohorts[0].TotalCarts != 1 || r.Cohorts[0].RecoveryRate != "100.0" {
		t.Errorf("cohorts = %+v", r.Cohorts)
	}
	if r.Funnel.Sent != 1 || r.Funnel.Opened != 1 {
		t.Errorf("funnel = %+v", r.Funnel)
	}
	if r.CartValue[1].Carts != 1 {
		t.Errorf("cart value = %+v", r.CartValue)
	}
	if roi.preset != models.PresetLast7Days || r.ROI == nil {
		t.Errorf("roi preset = %s, roi = %v", roi.preset, r.ROI)
	}
}

func TestGeneratePresetOverride(t *testing.T) {
	roi := &stubROI{summary: &models.ROISummary{}}
	svc := newTestService(storage.NewInMemoryCartRepo(), storage.NewInMemoryEmailActionRepo(), roi, nil)

	if _, err := svc.Generate(context.Background(), Query{UserID: "u1", Period: 30, Preset: models.PresetLastMonth}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if roi.preset != models.PresetLastMonth {
		t.Errorf("roi preset = %s", roi.preset)
	}
}

func TestGenerateROIUnavailable(t *testing.T) {
	obs := newSectionRecorder()
	roi := &stubROI{err: errors.Join(ErrROIUnavailable, ErrAdsNotConnected)}
	svc := newTestService(storage.NewInMemoryCartRepo(), storage.NewInMemoryEmailActionRepo(), roi, obs)

	r, err := svc.Generate(context.Background(), Query{UserID: "u1"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if r.ROI != nil || len(r.Degraded) != 0 || r.Period != DefaultPeriod {
		t.Errorf("report = %+v", r)
	}
	if obs.failed[SectionROI] || !obs.seen[SectionROI] {
		t.Errorf("observer = %+v", obs)
	}
}

func TestGenerateDegradesFailedSections(t *testing.T) {
	obs := newSectionRecorder()
	roi := &stubROI{err: errors.New("db: timeout")}
	svc := newTestService(&failingCarts{}, storage.NewInMemoryEmailActionRepo(), roi, obs)

	r, err := svc.Generate(context.Background(), Query{UserID: "u1", Period: 30})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !r.Success {
		t.Error("report should still succeed")
	}
	want := []string{SectionCohorts, SectionCrossTab, SectionROI}
	if strings.Join(r.Degraded, ",") != strings.Join(want, ",") {
		t.Errorf("degraded = %v, want %v", r.Degraded, want)
	}
	if r.Cohorts != nil || r.UTM != nil || r.TimeOfDay != nil || r.CartValue != nil || r.ROI != nil {
		t.Errorf("degraded sections should be nil: %+v", r)
	}
	if r.Funnel == nil {
		t.Error("funnel should survive")
	}
	if !obs.failed[SectionCohorts] || obs.failed[SectionFunnel] {
		t.Errorf("observer = %+v", obs.failed)
	}
}

func TestGenerateAllRowSectionsFail(t *testing.T) {
	svc := newTestService(&failingCarts{}, failingEmails{}, nil, nil)

	_, err := svc.Generate(context.Background(), Query{UserID: "u1"})
	if !errors.Is(err, ErrNoSections) {
		t.Fatalf("err = %v, want ErrNoSections", err)
	}
}

func TestGenerateSectionPanic(t *testing.T) {
	svc := newTestService(storage.NewInMemoryCartRepo(), storage.NewInMemoryEmailActionRepo(), &stubROI{panics: true}, nil)

	_, err := svc.Generate(context.Background(), Query{UserID: "u1"})
	var sp *sectionPanic
	if !errors.As(err, &sp) || sp.section != SectionROI {
		t.Fatalf("err = %v, want section panic", err)
	}
}

func TestServiceROIWithoutCalculator(t *testing.T) {
	svc := newTestService(storage.NewInMemoryCartRepo(), storage.NewInMemoryEmailActionRepo(), nil, nil)

	_, err := svc.ROI(context.Background(), "u1", models.PresetLast7Days)
	if !errors.Is(err, ErrROIUnavailable) {
		t.Fatalf("err = %v", err)
	}
}
