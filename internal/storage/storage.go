package storage

import (
	"context"
	"sync"
	"time"

	"github.com/radiusdt/recovery-analytics/internal/models"
)

// In-memory implementations

// InMemoryCartRepo stores carts in memory.
type InMemoryCartRepo struct {
	mu    sync.RWMutex
	carts []models.AbandonedCart
}

func NewInMemoryCartRepo(carts ...models.AbandonedCart) *InMemoryCartRepo {
	return &InMemoryCartRepo{carts: append([]models.AbandonedCart(nil), carts...)}
}

// Add appends carts in the given order.
func (r *InMemoryCartRepo) Add(carts ...models.AbandonedCart) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts = append(r.carts, carts...)
}

func (r *InMemoryCartRepo) ListCartsSince(ctx context.Context, userID string, since time.Time) ([]models.AbandonedCart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]models.AbandonedCart, 0)
	for _, c := range r.carts {
		if c.UserID == userID && !c.AbandonedAt.Before(since) {
			res = append(res, c)
		}
	}
	return res, nil
}

func (r *InMemoryCartRepo) ListAttributedCarts(ctx context.Context, userID string, start, stop time.Time) ([]models.AbandonedCart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]models.AbandonedCart, 0)
	for _, c := range r.carts {
		if c.UserID != userID || c.UTM.Campaign == nil {
			continue
		}
		if c.AbandonedAt.Before(start) || c.AbandonedAt.After(stop) {
			continue
		}
		res = append(res, c)
	}
	return res, nil
}

// InMemoryEmailActionRepo stores email actions in memory, keyed to tenants
// through the webhook event that produced them.
type InMemoryEmailActionRepo struct {
	mu      sync.RWMutex
	actions []models.EmailAction
	owners  map[string]string // webhook event id -> user id
}

func NewInMemoryEmailActionRepo() *InMemoryEmailActionRepo {
	return &InMemoryEmailActionRepo{owners: make(map[string]string)}
}

// Add records actions as belonging to userID.
func (r *InMemoryEmailActionRepo) Add(userID string, actions ...models.EmailAction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range actions {
		r.owners[a.WebhookEventID] = userID
		r.actions = append(r.actions, a)
	}
}

func (r *InMemoryEmailActionRepo) ListSentSince(ctx context.Context, userID string, since time.Time) ([]models.EmailAction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]models.EmailAction, 0)
	for _, a := range r.actions {
		if r.owners[a.WebhookEventID] != userID {
			continue
		}
		if a.ActionType != models.EmailActionSent || a.CreatedAt.Before(since) {
			continue
		}
		res = append(res, a)
	}
	return res, nil
}

// InMemoryAdsConnectionRepo stores ads connections in memory.
type InMemoryAdsConnectionRepo struct {
	mu    sync.RWMutex
	conns map[string]*models.AdsConnection
}

func NewInMemoryAdsConnectionRepo() *InMemoryAdsConnectionRepo {
	return &InMemoryAdsConnectionRepo{conns: make(map[string]*models.AdsConnection)}
}

func (r *InMemoryAdsConnectionRepo) Upsert(c *models.AdsConnection) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.conns[c.UserID] = &cp
}

func (r *InMemoryAdsConnectionRepo) GetAdsConnection(ctx context.Context, userID string) (*models.AdsConnection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}
