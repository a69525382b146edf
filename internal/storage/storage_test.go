package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/radiusdt/recovery-analytics/internal/models"
	"github.com/shopspring/decimal"
)

func strPtr(s string) *string { return &s }

func testCart(id, user string, at time.Time, campaign *string) models.AbandonedCart {
	c := models.AbandonedCart{
		ID:          id,
		UserID:      user,
		AbandonedAt: at,
		Status:      models.CartStatusAbandoned,
		TotalValue:  decimal.NewFromInt(10),
	}
	c.UTM.Campaign = campaign
	return c
}

func ids(carts []models.AbandonedCart) []string {
	out := make([]string, 0, len(carts))
	for _, c := range carts {
		out = append(out, c.ID)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestInMemoryCartRepo(t *testing.T) {
	base := time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC)
	repo := NewInMemoryCartRepo(
		testCart("a", "u1", base, nil),
		testCart("b", "u1", base.Add(-time.Nanosecond), strPtr("spring")),
		testCart("c", "u2", base.Add(time.Hour), strPtr("spring")),
	)
	repo.Add(testCart("d", "u1", base.Add(48*time.Hour), strPtr("summer")))

	ctx := context.Background()

	got, err := repo.ListCartsSince(ctx, "u1", base)
	if err != nil {
		t.Fatal(err)
	}
	if !equal(ids(got), []string{"a", "d"}) {
		t.Errorf("ListCartsSince = %v", ids(got))
	}

	got, err = repo.ListAttributedCarts(ctx, "u1", base.Add(-time.Hour), base.Add(48*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if !equal(ids(got), []string{"b", "d"}) {
		t.Errorf("ListAttributedCarts = %v, want only campaign carts with inclusive bounds", ids(got))
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := repo.ListCartsSince(cancelled, "u1", base); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled ctx err = %v", err)
	}
}

func TestInMemoryEmailActionRepo(t *testing.T) {
	base := time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC)
	repo := NewInMemoryEmailActionRepo()
	repo.Add("u1",
		models.EmailAction{ID: "1", WebhookEventID: "w1", ActionType: models.EmailActionSent, CreatedAt: base},
		models.EmailAction{ID: "2", WebhookEventID: "w2", ActionType: "email_bounced", CreatedAt: base},
		models.EmailAction{ID: "3", WebhookEventID: "w3", ActionType: models.EmailActionSent, CreatedAt: base.Add(-time.Hour)},
	)
	repo.Add("u2", models.EmailAction{ID: "4", WebhookEventID: "w4", ActionType: models.EmailActionSent, CreatedAt: base})

	got, err := repo.ListSentSince(context.Background(), "u1", base)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "1" {
		t.Errorf("ListSentSince = %+v", got)
	}
}

func TestInMemoryAdsConnectionRepo(t *testing.T) {
	repo := NewInMemoryAdsConnectionRepo()
	repo.Upsert(nil)

	if _, err := repo.GetAdsConnection(context.Background(), "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	repo.Upsert(&models.AdsConnection{UserID: "u1", AccountID: "123"})
	c, err := repo.GetAdsConnection(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	c.AccountID = "changed"

	again, _ := repo.GetAdsConnection(context.Background(), "u1")
	if again.AccountID != "123" {
		t.Errorf("stored connection mutated through returned copy: %q", again.AccountID)
	}
}

type countingConns struct {
	calls int
	conn  *models.AdsConnection
	err   error
}

func (c *countingConns) GetAdsConnection(context.Context, string) (*models.AdsConnection, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	if c.conn == nil {
		return nil, ErrNotFound
	}
	cp := *c.conn
	return &cp, nil
}

func TestCachedAdsConnectionRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("hit", func(t *testing.T) {
		next := &countingConns{conn: &models.AdsConnection{UserID: "u1", AccountID: "123"}}
		repo := NewCachedAdsConnectionRepo(next, time.Minute)

		for i := 0; i < 3; i++ {
			c, err := repo.GetAdsConnection(ctx, "u1")
			if err != nil || c.AccountID != "123" {
				t.Fatalf("get %d = %+v, %v", i, c, err)
			}
		}
		if next.calls != 1 {
			t.Errorf("backend calls = %d, want 1", next.calls)
		}

		repo.Invalidate("u1")
		if _, err := repo.GetAdsConnection(ctx, "u1"); err != nil {
			t.Fatal(err)
		}
		if next.calls != 2 {
			t.Errorf("backend calls after invalidate = %d, want 2", next.calls)
		}
	})

	t.Run("miss is cached", func(t *testing.T) {
		next := &countingConns{}
		repo := NewCachedAdsConnectionRepo(next, time.Minute)

		for i := 0; i < 2; i++ {
			if _, err := repo.GetAdsConnection(ctx, "u1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("err = %v", err)
			}
		}
		if next.calls != 1 {
			t.Errorf("backend calls = %d, want 1", next.calls)
		}
	})

	t.Run("errors are not cached", func(t *testing.T) {
		next := &countingConns{err: errors.New("connection reset")}
		repo := NewCachedAdsConnectionRepo(next, time.Minute)

		for i := 0; i < 2; i++ {
			if _, err := repo.GetAdsConnection(ctx, "u1"); err == nil {
				t.Fatal("expected error")
			}
		}
		if next.calls != 2 {
			t.Errorf("backend calls = %d, want 2", next.calls)
		}
	})
}

func TestParseNullDecimal(t *testing.T) {
	got, err := parseNullDecimal(nil)
	if err != nil || got.Valid {
		t.Errorf("nil = %+v, %v", got, err)
	}

	got, err = parseNullDecimal(strPtr("12.50"))
	if err != nil || !got.Valid || !got.Decimal.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("12.50 = %+v, %v", got, err)
	}

	if _, err := parseNullDecimal(strPtr("abc")); err == nil {
		t.Error("expected parse error")
	}
}
