package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/radiusdt/recovery-analytics/internal/ads"
	"github.com/radiusdt/recovery-analytics/internal/analytics"
	"github.com/radiusdt/recovery-analytics/internal/config"
	"github.com/radiusdt/recovery-analytics/internal/database"
	"github.com/radiusdt/recovery-analytics/internal/metrics"
	"github.com/radiusdt/recovery-analytics/internal/middleware"
	"github.com/radiusdt/recovery-analytics/internal/models"
	"github.com/radiusdt/recovery-analytics/internal/storage"
	"go.uber.org/zap"
)

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	DB      *database.PostgresDB
	Redis   *database.RedisDB
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	// Optional overrides for the data sources. When nil they are built
	// from DB, or from in-memory stores when DB is nil too.
	Carts    storage.CartRepo
	Emails   storage.EmailActionRepo
	Conns    storage.AdsConnectionRepo
	Insights analytics.InsightsFetcher

	RateLimiter *middleware.RateLimitMiddleware
}

// Server wraps HTTP handlers and analytics services.
type Server struct {
	service *analytics.Service
	db      *database.PostgresDB
	redis   *database.RedisDB
	logger  *zap.Logger
	config  *config.Config
	metrics *metrics.Metrics
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) (http.Handler, error) {
	cfg := deps.Config

	loc, err := cfg.Analytics.Location()
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone: %w", err)
	}

	// Initialize repositories
	carts, emails, conns := deps.Carts, deps.Emails, deps.Conns
	if deps.DB != nil {
		if carts == nil {
			carts = storage.NewPostgresCartRepo(deps.DB.Pool)
		}
		if emails == nil {
			emails = storage.NewPostgresEmailActionRepo(deps.DB.Pool)
		}
		if conns == nil {
			conns = storage.NewPostgresAdsConnectionRepo(deps.DB.Pool)
		}
	}
	if carts == nil {
		carts = storage.NewInMemoryCartRepo()
	}
	if emails == nil {
		emails = storage.NewInMemoryEmailActionRepo()
	}
	if conns == nil {
		conns = storage.NewInMemoryAdsConnectionRepo()
	}
	if cfg.Analytics.ConnCacheTTL > 0 {
		conns = storage.NewCachedAdsConnectionRepo(conns, cfg.Analytics.ConnCacheTTL)
	}

	// Observers stay nil interfaces when metrics are off.
	var (
		adsObs     ads.Observer
		sectionObs analytics.SectionObserver
	)
	if deps.Metrics != nil {
		adsObs = deps.Metrics
		sectionObs = deps.Metrics
	}

	insights := deps.Insights
	if insights == nil {
		insights = ads.NewClient(nil, cfg.Ads, adsObs, deps.Logger.Named("ads"))
	}

	roi := analytics.NewROICalculator(conns, insights, carts, loc, cfg.Analytics.ROITimeout, deps.Logger.Named("roi"))
	svc := analytics.NewService(carts, emails, roi, loc, sectionObs, deps.Logger.Named("analytics"))

	s := &Server{
		service: svc,
		db:      deps.DB,
		redis:   deps.Redis,
		logger:  deps.Logger,
		config:  cfg,
		metrics: deps.Metrics,
	}

	logging := middleware.NewLoggingMiddleware(deps.Logger)
	logging.SetMetrics(deps.Metrics)

	rateLimiter := deps.RateLimiter
	if rateLimiter == nil {
		rateLimiter = middleware.NewRateLimitMiddleware(cfg.RateLimit, deps.Logger)
		rateLimiter.SetMetrics(deps.Metrics)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger).Handler)
	r.Use(logging.Handler)
	r.Use(rateLimiter.Handler)
	r.Use(middleware.NewAuthMiddleware(cfg.Auth, deps.Logger).Handler)

	// Health check
	r.Get("/health", s.handleHealth)

	// Prometheus metrics
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	r.Route("/api/analytics", func(r chi.Router) {
		if cfg.Server.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
		}
		r.Use(middleware.RequireUser)
		if deps.Redis != nil && cfg.Analytics.DailyQuota > 0 {
			quota := middleware.NewTenantQuota(deps.Redis.Client, cfg.Analytics.DailyQuota, deps.Logger)
			quota.SetMetrics(deps.Metrics)
			r.Use(quota.Handler)
		}

		r.Get("/", s.handleReport)
		r.Get("/roi", s.handleROI)
		r.Get("/export.csv", s.handleExport)
	})

	return r, nil
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	code := http.StatusOK

	if s.db != nil {
		if err := s.db.Health(ctx); err != nil {
			status["postgres"] = "down"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			status["postgres"] = "up"
		}
	}
	if s.redis != nil {
		if err := s.redis.Health(ctx); err != nil {
			// only the quota depends on redis
			status["redis"] = "down"
		} else {
			status["redis"] = "up"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

// ---- Analytics ----

func (s *Server) query(r *http.Request) analytics.Query {
	q := r.URL.Query()
	return analytics.Query{
		UserID: middleware.GetUserID(r.Context()),
		Period: analytics.ParsePeriod(q.Get("period"), s.config.Analytics.DefaultPeriod),
		Preset: models.DatePreset(q.Get("date_preset")),
	}
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) (*models.Report, bool) {
	report, err := s.service.Generate(r.Context(), s.query(r))
	if err != nil {
		s.recordReport("failed")
		s.logger.Error("analytics report failed",
			zap.String("user_id", middleware.GetUserID(r.Context())),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err),
		)
		s.errorResponse(w, "failed to build analytics report", http.StatusInternalServerError)
		return nil, false
	}

	if len(report.Degraded) > 0 {
		s.recordReport("degraded")
	} else {
		s.recordReport("ok")
	}
	return report, true
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.generate(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, report)
}

type roiResponse struct {
	Success bool               `json:"success"`
	ROI     *models.ROISummary `json:"roi"`
	Reason  string             `json:"reason,omitempty"`
}

func (s *Server) handleROI(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	preset := models.DatePreset(r.URL.Query().Get("date_preset"))

	summary, err := s.service.ROI(r.Context(), userID, preset)
	switch {
	case errors.Is(err, analytics.ErrROIUnavailable):
		s.jsonResponse(w, roiResponse{Success: true, Reason: unavailableReason(err)})
	case err != nil:
		s.logger.Error("roi failed", zap.String("user_id", userID), zap.Error(err))
		s.errorResponse(w, "failed to compute roi", http.StatusInternalServerError)
	default:
		s.jsonResponse(w, roiResponse{Success: true, ROI: summary})
	}
}

func unavailableReason(err error) string {
	switch {
	case errors.Is(err, analytics.ErrAdsNotConnected):
		return "not_connected"
	case errors.Is(err, analytics.ErrAdsConnectionExpired), errors.Is(err, ads.ErrTokenRejected):
		return "connection_expired"
	case errors.Is(err, analytics.ErrNoAdAccount):
		return "no_ad_account"
	default:
		return "unavailable"
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sections := r.URL.Query()["section"]
	for _, name := range sections {
		if !analytics.ValidExportSection(name) {
			s.errorResponse(w, "unknown section: "+name, http.StatusBadRequest)
			return
		}
	}

	report, ok := s.generate(w, r)
	if !ok {
		return
	}

	filename := fmt.Sprintf("recovery-analytics-%s.csv", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := analytics.WriteCSV(w, report, sections...); err != nil {
		s.logger.Error("csv export failed", zap.Error(err))
	}
}

// ---- Helpers ----

func (s *Server) recordReport(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordReport(outcome)
	}
}

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
}
