package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/radiusdt/recovery-analytics/internal/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TenantQuota caps the number of requests each tenant may make per UTC day.
// Counters live in Redis so the cap holds across replicas.
type TenantQuota struct {
	client  *redis.Client
	limit   int64
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewTenantQuota creates a quota of limit requests per tenant per day.
func NewTenantQuota(client *redis.Client, limit int64, logger *zap.Logger) *TenantQuota {
	return &TenantQuota{
		client: client,
		limit:  limit,
		logger: logger,
		now:    time.Now,
	}
}

func (q *TenantQuota) SetMetrics(m *metrics.Metrics) {
	q.metrics = m
}

func (q *TenantQuota) key(userID string) string {
	return fmt.Sprintf("quota:%s:%s", userID, q.now().UTC().Format("20060102"))
}

// Consume counts one request for userID and returns the count for today.
func (q *TenantQuota) Consume(ctx context.Context, userID string) (int64, error) {
	key := q.key(userID)
	start := time.Now()

	pipe := q.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 25*time.Hour)
	_, err := pipe.Exec(ctx)

	if q.metrics != nil {
		q.metrics.ObserveRedis("quota_incr", time.Since(start))
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment quota: %w", err)
	}
	return incr.Val(), nil
}

// Handler must run after RequireUser. Redis errors let the request through.
func (q *TenantQuota) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := GetUserID(r.Context())
		if q.limit <= 0 || userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		count, err := q.Consume(r.Context(), userID)
		if err != nil {
			q.logger.Warn("quota check failed, allowing request",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			next.ServeHTTP(w, r)
			return
		}

		remaining := q.limit - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-Quota-Limit", strconv.FormatInt(q.limit, 10))
		w.Header().Set("X-Quota-Remaining", strconv.FormatInt(remaining, 10))

		if count > q.limit {
			q.logger.Warn("daily quota exceeded",
				zap.String("user_id", userID),
				zap.Int64("count", count),
			)
			if q.metrics != nil {
				q.metrics.RecordQuotaRejection()
			}
			writeError(w, http.StatusTooManyRequests, "daily quota exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
