package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radiusdt/recovery-analytics/internal/models"
	"github.com/shopspring/decimal"
)

// Numeric columns are read as text and parsed into decimals so that no
// precision is lost on the way out of Postgres.
const cartColumns = `
	id, user_id, abandoned_at, status,
	total_value::text, recovered_value::text,
	utm_source, utm_medium, utm_campaign, utm_term, utm_content`

// PostgresCartRepo implements CartRepo using PostgreSQL.
type PostgresCartRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresCartRepo(pool *pgxpool.Pool) *PostgresCartRepo {
	return &PostgresCartRepo{pool: pool}
}

func (r *PostgresCartRepo) ListCartsSince(ctx context.Context, userID string, since time.Time) ([]models.AbandonedCart, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+cartColumns+`
		FROM abandoned_carts
		WHERE user_id = $1 AND abandoned_at >= $2
		ORDER BY abandoned_at
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list carts: %w", err)
	}
	defer rows.Close()

	return collectCarts(rows)
}

func (r *PostgresCartRepo) ListAttributedCarts(ctx context.Context, userID string, start, stop time.Time) ([]models.AbandonedCart, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+cartColumns+`
		FROM abandoned_carts
		WHERE user_id = $1
		  AND utm_campaign IS NOT NULL
		  AND abandoned_at >= $2 AND abandoned_at <= $3
		ORDER BY abandoned_at
	`, userID, start, stop)
	if err != nil {
		return nil, fmt.Errorf("failed to list attributed carts: %w", err)
	}
	defer rows.Close()

	return collectCarts(rows)
}

func collectCarts(rows pgx.Rows) ([]models.AbandonedCart, error) {
	carts := make([]models.AbandonedCart, 0)
	for rows.Next() {
		var (
			c         models.AbandonedCart
			status    string
			total     string
			recovered *string
		)
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.AbandonedAt, &status,
			&total, &recovered,
			&c.UTM.Source, &c.UTM.Medium, &c.UTM.Campaign, &c.UTM.Term, &c.UTM.Content,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cart: %w", err)
		}

		var err error
		if c.Status, err = models.ParseCartStatus(status); err != nil {
			return nil, fmt.Errorf("cart %s: %w", c.ID, err)
		}
		if c.TotalValue, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("cart %s: bad total_value: %w", c.ID, err)
		}
		if c.RecoveredValue, err = parseNullDecimal(recovered); err != nil {
			return nil, fmt.Errorf("cart %s: bad recovered_value: %w", c.ID, err)
		}

		carts = append(carts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate carts: %w", err)
	}
	return carts, nil
}

// PostgresEmailActionRepo implements EmailActionRepo using PostgreSQL.
type PostgresEmailActionRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresEmailActionRepo(pool *pgxpool.Pool) *PostgresEmailActionRepo {
	return &PostgresEmailActionRepo{pool: pool}
}

func (r *PostgresEmailActionRepo) ListSentSince(ctx context.Context, userID string, since time.Time) ([]models.EmailAction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ea.id, ea.webhook_event_id, ea.action_type, ea.created_at, ea.sent_at,
			   ea.opened, ea.opened_at, ea.clicked, ea.clicked_at,
			   ea.converted, ea.converted_at, ea.conversion_value::text
		FROM email_actions ea
		JOIN webhook_events we ON we.id = ea.webhook_event_id
		WHERE we.user_id = $1
		  AND ea.action_type = $2
		  AND ea.created_at >= $3
		ORDER BY ea.created_at
	`, userID, string(models.EmailActionSent), since)
	if err != nil {
		return nil, fmt.Errorf("failed to list email actions: %w", err)
	}
	defer rows.Close()

	actions := make([]models.EmailAction, 0)
	for rows.Next() {
		var (
			a          models.EmailAction
			actionType string
			convValue  *string
		)
		if err := rows.Scan(
			&a.ID, &a.WebhookEventID, &actionType, &a.CreatedAt, &a.SentAt,
			&a.Opened, &a.OpenedAt, &a.Clicked, &a.ClickedAt,
			&a.Converted, &a.ConvertedAt, &convValue,
		); err != nil {
			return nil, fmt.Errorf("failed to scan email action: %w", err)
		}
		a.ActionType = models.EmailActionType(actionType)

		var err error
		if a.ConversionValue, err = parseNullDecimal(convValue); err != nil {
			return nil, fmt.Errorf("email action %s: bad conversion_value: %w", a.ID, err)
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate email actions: %w", err)
	}
	return actions, nil
}

// PostgresAdsConnectionRepo implements AdsConnectionRepo using PostgreSQL.
type PostgresAdsConnectionRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresAdsConnectionRepo(pool *pgxpool.Pool) *PostgresAdsConnectionRepo {
	return &PostgresAdsConnectionRepo{pool: pool}
}

func (r *PostgresAdsConnectionRepo) GetAdsConnection(ctx context.Context, userID string) (*models.AdsConnection, error) {
	var (
		c         models.AdsConnection
		accountID *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, primary_ad_account_id, access_token, token_expires_at
		FROM ads_connections WHERE user_id = $1
	`, userID).Scan(&c.UserID, &accountID, &c.AccessToken, &c.ExpiresAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ads connection: %w", err)
	}
	if accountID != nil {
		c.AccountID = *accountID
	}
	return &c, nil
}

func parseNullDecimal(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
