package analytics

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/radiusdt/recovery-analytics/internal/models"
	"github.com/radiusdt/recovery-analytics/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Report section names, as listed in Report.Degraded.
const (
	SectionCohorts  = "cohorts"
	SectionFunnel   = "funnel"
	SectionCrossTab = "crossTab"
	SectionROI      = "roi"
)

// DefaultPeriod is the window in days used when none or an invalid one is given.
const DefaultPeriod = 30

// ParsePeriod reads a period in days. Empty, non-numeric and non-positive
// values yield def.
func ParsePeriod(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// PresetForPeriod picks the ads preset closest to a report window.
func PresetForPeriod(days int) models.DatePreset {
	if days <= 7 {
		return models.PresetLast7Days
	}
	return models.PresetLast30Days
}

// Query identifies one report request.
type Query struct {
	UserID string
	Period int
	// Preset overrides the ROI window derived from Period when set.
	Preset models.DatePreset
}

// ROISource computes the ROI section. *ROICalculator implements it.
type ROISource interface {
	Calculate(ctx context.Context, userID string, preset models.DatePreset) (*models.ROISummary, error)
}

// SectionObserver is told how each section went.
type SectionObserver interface {
	ObserveSection(section string, d time.Duration, err error)
}

// Service assembles analytics reports from the row store and the ads platform.
type Service struct {
	carts    storage.CartRepo
	emails   storage.EmailActionRepo
	roi      ROISource
	loc      *time.Location
	now      func() time.Time
	observer SectionObserver
	logger   *zap.Logger
}

// NewService creates a report service. roi and observer may be nil.
func NewService(carts storage.CartRepo, emails storage.EmailActionRepo, roi ROISource, loc *time.Location, observer SectionObserver, logger *zap.Logger) *Service {
	return &Service{
		carts:    carts,
		emails:   emails,
		roi:      roi,
		loc:      loc,
		now:      time.Now,
		observer: observer,
		logger:   logger,
	}
}

type sectionPanic struct {
	section string
	value   any
}

func (p *sectionPanic) Error() string {
	return fmt.Sprintf("panic in %s section: %v", p.section, p.value)
}

// Generate builds the full report for q. The four sections run
// concurrently. A section whose data cannot be fetched is left nil and
// named in Degraded; a missing ads connection just leaves ROI nil. When
// none of the row-store sections succeed ErrNoSections is returned.
func (s *Service) Generate(ctx context.Context, q Query) (*models.Report, error) {
	if q.Period <= 0 {
		q.Period = DefaultPeriod
	}
	preset := q.Preset
	if preset == "" {
		preset = PresetForPeriod(q.Period)
	}

	startDate := s.now().AddDate(0, 0, -q.Period)
	report := &models.Report{Period: q.Period, StartDate: startDate}

	var (
		mu       sync.Mutex
		degraded = make(map[string]bool)
	)
	degrade := func(section string) {
		mu.Lock()
		degraded[section] = true
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)

	// Cohorts and cross-tab read the same cart set.
	loadCarts := sync.OnceValues(func() ([]models.AbandonedCart, error) {
		return s.carts.ListCartsSince(gctx, q.UserID, startDate)
	})

	g.Go(s.section(SectionCohorts, degrade, func() error {
		carts, err := loadCarts()
		if err != nil {
			return err
		}
		report.Cohorts = BuildCohorts(carts, s.loc)
		return nil
	}))

	g.Go(s.section(SectionCrossTab, degrade, func() error {
		carts, err := loadCarts()
		if err != nil {
			return err
		}
		ct := BuildCrossTab(carts, s.loc)
		report.UTM = &ct.UTM
		report.TimeOfDay = &ct.TimeOfDay
		report.CartValue = ct.CartValue
		return nil
	}))

	g.Go(s.section(SectionFunnel, degrade, func() error {
		actions, err := s.emails.ListSentSince(gctx, q.UserID, startDate)
		if err != nil {
			return err
		}
		f := BuildFunnel(actions)
		report.Funnel = &f
		return nil
	}))

	if s.roi != nil {
		g.Go(s.section(SectionROI, degrade, func() error {
			summary, err := s.roi.Calculate(gctx, q.UserID, preset)
			if errors.Is(err, ErrROIUnavailable) {
				s.logger.Debug("roi unavailable", zap.String("user_id", q.UserID), zap.Error(err))
				return nil
			}
			if err != nil {
				return err
			}
			report.ROI = summary
			return nil
		}))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if degraded[SectionCohorts] && degraded[SectionCrossTab] && degraded[SectionFunnel] {
		return nil, ErrNoSections
	}

	for _, name := range []string{SectionCohorts, SectionFunnel, SectionCrossTab, SectionROI} {
		if degraded[name] {
			report.Degraded = append(report.Degraded, name)
		}
	}
	report.Success = true
	return report, nil
}

// ROI computes the ROI section on its own.
func (s *Service) ROI(ctx context.Context, userID string, preset models.DatePreset) (*models.ROISummary, error) {
	if s.roi == nil {
		return nil, fmt.Errorf("%w: %w", ErrROIUnavailable, ErrAdsNotConnected)
	}
	if preset == "" {
		preset = models.PresetLast30Days
	}
	return s.roi.Calculate(ctx, userID, preset)
}

// section wraps fn so that a fetch error degrades the section instead of
// failing the group, and a panic fails the group instead of the process.
func (s *Service) section(name string, degrade func(string), fn func() error) func() error {
	return func() (err error) {
		start := time.Now()
		var failed error
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("analytics section panicked",
					zap.String("section", name),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				err = &sectionPanic{section: name, value: r}
				failed = err
			}
			if s.observer != nil {
				s.observer.ObserveSection(name, time.Since(start), failed)
			}
		}()

		if failed = fn(); failed != nil {
			s.logger.Error("analytics section failed", zap.String("section", name), zap.Error(failed))
			degrade(name)
		}
		return nil
	}
}
