package ads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/radiusdt/recovery-analytics/internal/config"
	"github.com/radiusdt/recovery-analytics/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const insightFields = "campaign_name,campaign_id,spend,impressions,clicks,cpc,ctr"

// HTTPClient is the subset of *http.Client the fetcher needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observer receives one call per HTTP attempt.
type Observer interface {
	ObserveAdsRequest(outcome string, d time.Duration)
}

// Client fetches campaign-level insights from the ads Graph API.
type Client struct {
	httpc      HTTPClient
	baseURL    string
	version    string
	maxRetries int
	pageLimit  int
	backoff    time.Duration
	observer   Observer
	logger     *zap.Logger
}

// NewClient builds a client from cfg. observer may be nil.
func NewClient(httpc HTTPClient, cfg config.AdsConfig, observer Observer, logger *zap.Logger) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: cfg.Timeout}
	}
	pageLimit := cfg.PageLimit
	if pageLimit <= 0 {
		pageLimit = 1
	}
	return &Client{
		httpc:      httpc,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		version:    cfg.APIVersion,
		maxRetries: cfg.MaxRetries,
		pageLimit:  pageLimit,
		backoff:    100 * time.Millisecond,
		observer:   observer,
		logger:     logger,
	}
}

type insightsPage struct {
	Data []struct {
		CampaignID   string `json:"campaign_id"`
		CampaignName string `json:"campaign_name"`
		Spend        string `json:"spend"`
		Impressions  string `json:"impressions"`
		Clicks       string `json:"clicks"`
		CPC          string `json:"cpc"`
		CTR          string `json:"ctr"`
	} `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// FetchCampaignInsights returns one record per campaign for conn's primary
// ad account over preset. Pages are followed until exhausted or the
// configured page limit is reached.
func (c *Client) FetchCampaignInsights(ctx context.Context, conn *models.AdsConnection, preset models.DatePreset) ([]models.CampaignInsight, error) {
	q := url.Values{}
	q.Set("level", "campaign")
	q.Set("fields", insightFields)
	q.Set("date_preset", string(preset))
	q.Set("access_token", conn.AccessToken)
	next := fmt.Sprintf("%s/%s/act_%s/insights?%s", c.baseURL, c.version, url.PathEscape(conn.AccountID), q.Encode())

	out := make([]models.CampaignInsight, 0)
	for page := 0; next != "" && page < c.pageLimit; page++ {
		var p insightsPage
		if err := c.getJSONWithRetry(ctx, next, &p); err != nil {
			return nil, err
		}
		for _, d := range p.Data {
			in, err := parseInsight(d.CampaignID, d.CampaignName, d.Spend, d.Impressions, d.Clicks, d.CPC, d.CTR)
			if err != nil {
				return nil, fmt.Errorf("campaign %s: %w", d.CampaignID, err)
			}
			out = append(out, in)
		}
		next = p.Paging.Next
	}

	if next != "" {
		c.logger.Warn("insights page limit reached",
			zap.String("account_id", conn.AccountID),
			zap.Int("page_limit", c.pageLimit),
		)
	}
	return out, nil
}

func parseInsight(id, name, spend, impressions, clicks, cpc, ctr string) (models.CampaignInsight, error) {
	in := models.CampaignInsight{CampaignID: id, CampaignName: name}
	var err error
	if in.Spend, err = decimalOrZero(spend); err != nil {
		return in, fmt.Errorf("bad spend %q: %w", spend, err)
	}
	if in.Impressions, err = intOrZero(impressions); err != nil {
		return in, fmt.Errorf("bad impressions %q: %w", impressions, err)
	}
	if in.Clicks, err = intOrZero(clicks); err != nil {
		return in, fmt.Errorf("bad clicks %q: %w", clicks, err)
	}
	if in.CPC, err = floatOrZero(cpc); err != nil {
		return in, fmt.Errorf("bad cpc %q: %w", cpc, err)
	}
	if in.CTR, err = floatOrZero(ctr); err != nil {
		return in, fmt.Errorf("bad ctr %q: %w", ctr, err)
	}
	return in, nil
}

// getJSONWithRetry retries transport errors and temporary API errors with
// exponential backoff plus jitter. Client errors fail immediately.
func (c *Client) getJSONWithRetry(ctx context.Context, u string, dst any) error {
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			sleep := time.Duration(1<<(i-1)) * c.backoff
			sleep += time.Duration(rand.Int63n(int64(c.backoff) + 1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}
		}

		start := time.Now()
		err := c.getJSON(ctx, u, dst)
		c.observe(err, time.Since(start))
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return err
		}
		c.logger.Debug("ads request failed, retrying", zap.Int("attempt", i+1), zap.Error(err))
	}
	return lastErr
}

func (c *Client) getJSON(ctx context.Context, u string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(b, &eb) == nil {
			apiErr.Code = eb.Error.Code
			apiErr.Message = eb.Error.Message
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode insights: %w", err)
	}
	return nil
}

func (c *Client) observe(err error, d time.Duration) {
	if c.observer == nil {
		return
	}
	outcome := "ok"
	var apiErr *APIError
	switch {
	case err == nil:
	case errors.As(err, &apiErr):
		outcome = strconv.Itoa(apiErr.StatusCode)
	default:
		outcome = "transport"
	}
	c.observer.ObserveAdsRequest(outcome, d)
}

func decimalOrZero(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func intOrZero(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func floatOrZero(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
