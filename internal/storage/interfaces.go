package storage

import (
	"context"
	"errors"
	"time"

	"github.com/radiusdt/recovery-analytics/internal/models"
)

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("not found")

// =============================================
// CART REPOSITORY
// =============================================

// CartRepo reads a tenant's abandoned carts.
type CartRepo interface {
	// ListCartsSince returns every cart with abandoned_at >= since.
	ListCartsSince(ctx context.Context, userID string, since time.Time) ([]models.AbandonedCart, error)

	// ListAttributedCarts returns carts that carry a utm_campaign and were
	// abandoned within [start, stop].
	ListAttributedCarts(ctx context.Context, userID string, start, stop time.Time) ([]models.AbandonedCart, error)
}

// =============================================
// EMAIL ACTION REPOSITORY
// =============================================

// EmailActionRepo reads recovery email actions.
type EmailActionRepo interface {
	// ListSentSince returns email_sent actions created at or after since for
	// the tenant owning the originating webhook event.
	ListSentSince(ctx context.Context, userID string, since time.Time) ([]models.EmailAction, error)
}

// =============================================
// ADS CONNECTION REPOSITORY
// =============================================

// AdsConnectionRepo looks up a tenant's ads account link.
type AdsConnectionRepo interface {
	// GetAdsConnection returns ErrNotFound when the tenant never connected.
	GetAdsConnection(ctx context.Context, userID string) (*models.AdsConnection, error)
}
