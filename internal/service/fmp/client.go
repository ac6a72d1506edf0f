// Package fmp is a batched quote client for the Financial Modeling Prep REST API.
package fmp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"MarketMinute/internal/domain/models"
	"MarketMinute/internal/domain/repository"
	"MarketMinute/internal/service/ratelimit"
	xhttp "MarketMinute/pkg/http"
	"MarketMinute/pkg/logger"
)

var (
	ErrMissingAPIKey   = errors.New("fmp: api key not configured")
	ErrBudgetExhausted = errors.New("fmp: upstream call budget exhausted")
)

const (
	budgetOperation = "upstream"
	budgetIdentity  = "fmp"

	maxRetryAfter = 2 * time.Second
)

// Config holds client settings.
type Config struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	CallsPerMinute int
	Attempts       int
}

// Client fetches quotes in one request per batch and spends one unit of a
// shared per-minute call budget per HTTP attempt.
type Client struct {
	baseURL  string
	apiKey   string
	attempts int
	http     *xhttp.Client
	budget   *ratelimit.Limiter
	limit    ratelimit.Limit
	l        *logger.Logger
}

var _ repository.SnapshotProvider = (*Client)(nil)

// New builds a client. budget may be shared with other limiters; nil disables the budget.
func New(cfg Config, budget *ratelimit.Limiter, l *logger.Logger, opts ...xhttp.ClientOption) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 2
	}
	calls := cfg.CallsPerMinute
	if calls <= 0 {
		calls = 300
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		attempts: attempts,
		http:     xhttp.NewClient(append([]xhttp.ClientOption{xhttp.WithTimeout(timeout)}, opts...)...),
		budget:   budget,
		limit:    ratelimit.Limit{MaxRequests: calls, WindowSeconds: 60},
		l:        l,
	}
}

type quote struct {
	Symbol               string   `json:"symbol"`
	Name                 string   `json:"name"`
	Price                float64  `json:"price"`
	ChangesPercentage    float64  `json:"changesPercentage"`
	Volume               float64  `json:"volume"`
	MarketCap            float64  `json:"marketCap"`
	YearHigh             *float64 `json:"yearHigh"`
	YearLow              *float64 `json:"yearLow"`
	EarningsAnnouncement *string  `json:"earningsAnnouncement"`
}

func (q quote) snapshot() models.TickerSnapshot {
	return models.TickerSnapshot{
		Symbol:       strings.ToUpper(q.Symbol),
		Name:         q.Name,
		Price:        q.Price,
		ChangePct:    q.ChangesPercentage,
		Volume:       int64(q.Volume),
		MarketCap:    q.MarketCap,
		High52w:      q.YearHigh,
		Low52w:       q.YearLow,
		EarningsDate: q.EarningsAnnouncement,
	}
}

// FetchSnapshots issues one batched quote request for symbols.
func (c *Client) FetchSnapshots(ctx context.Context, symbols []string) ([]models.TickerSnapshot, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	// The comma is FMP's batch separator and must reach the server unescaped.
	escaped := make([]string, len(symbols))
	for i, s := range symbols {
		escaped[i] = url.PathEscape(s)
	}
	path := "/quote/" + strings.Join(escaped, ",")
	var quotes []quote
	start := time.Now()
	if err := c.getJSONWithRetry(ctx, path, &quotes); err != nil {
		if c.l != nil {
			c.l.Error("fmp quote fetch failed",
				logger.Strings("symbols", symbols),
				logger.Duration("elapsed_ms", time.Since(start)),
				logger.Error(err))
		}
		return nil, err
	}

	out := make([]models.TickerSnapshot, 0, len(quotes))
	for _, q := range quotes {
		if q.Symbol == "" {
			continue
		}
		out = append(out, q.snapshot())
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dest interface{}) error {
	if c.budget != nil {
		if d := c.budget.Check(budgetOperation, budgetIdentity, c.limit); !d.Allowed {
			return fmt.Errorf("%w: retry in %ds", ErrBudgetExhausted, d.RetryAfterSeconds)
		}
	}
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: map[string][]string{"apikey": {c.apiKey}},
		Headers:     map[string]string{"Accept": "application/json"},
	}, dest)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	return nil
}

// getJSONWithRetry retries transient failures with linear backoff.
func (c *Client) getJSONWithRetry(ctx context.Context, path string, dest interface{}) error {
	var err error
	for i := 1; i <= c.attempts; i++ {
		err = c.getJSON(ctx, path, dest)
		if err == nil || !retryable(err) || i == c.attempts {
			return err
		}
		select {
		case <-time.After(retryDelay(err, i)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// retryDelay honors a short upstream Retry-After, else backs off linearly.
func retryDelay(err error, attempt int) time.Duration {
	d := time.Duration(attempt) * 100 * time.Millisecond
	var se *xhttp.StatusError
	if errors.As(err, &se) && se.RetryAfter > d && se.RetryAfter <= maxRetryAfter {
		d = se.RetryAfter
	}
	return d
}

func retryable(err error) bool {
	if errors.Is(err, ErrBudgetExhausted) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
