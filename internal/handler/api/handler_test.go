package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"MarketMinute/internal/domain/models"
	"MarketMinute/internal/service/marketclock"
	"MarketMinute/internal/service/ratelimit"
	"MarketMinute/internal/services/analytics"
	"MarketMinute/internal/usecase"
)

var fixedNow = time.Date(2025, 1, 6, 15, 0, 0, 0, time.UTC) // Monday 10:00 New York

type stubReader struct{}

func (stubReader) GetSnapshots(_ context.Context, symbols []string) ([]models.TickerSnapshot, models.CacheStats) {
	out := make([]models.TickerSnapshot, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, models.TickerSnapshot{Symbol: s, Price: 100})
	}
	return out, models.CacheStats{Hits: 1, Misses: len(symbols) - 1, Total: len(symbols)}
}

type stubSource struct{}

func (stubSource) Latest(context.Context, []string) ([]models.Prediction, error) {
	return []models.Prediction{
		{Ticker: "NVDA", Signal: models.SignalBuy, CurrentPrice: 100, ProbUp: 0.75, ProbNeutral: 0.10, ProbDown: 0.15, Confidence: 0.85},
		{Ticker: "AMD", Signal: models.SignalBuy, CurrentPrice: 100, ProbUp: 0.70, ProbNeutral: 0.15, ProbDown: 0.15, Confidence: 0.80},
		{Ticker: "KO", Signal: models.SignalNeutral, CurrentPrice: 60, ProbUp: 0.20, ProbNeutral: 0.65, ProbDown: 0.15, Confidence: 0.40},
		{Ticker: "TSLA", Signal: models.SignalSell, CurrentPrice: 250, ProbUp: 0.10, ProbNeutral: 0.15, ProbDown: 0.75, Confidence: 0.85},
	}, nil
}

type countingAccounts struct {
	calls    atomic.Int32
	accounts map[string]*models.Account
}

func (s *countingAccounts) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	s.calls.Add(1)
	return s.accounts[email], nil
}

type stubHousekeeper struct{}

func (stubHousekeeper) Stats(context.Context) models.CacheReport {
	return models.CacheReport{Backend: "memory", Entries: 2}
}

func (stubHousekeeper) Clear(context.Context) models.ClearResult {
	return models.ClearResult{Success: true, TotalCleared: 2}
}

type testServer struct {
	e        *echo.Echo
	limiter  *ratelimit.Limiter
	accounts *countingAccounts
}

func newTestServer(t *testing.T, overrides map[string]ratelimit.Limit) *testServer {
	t.Helper()
	now := func() time.Time { return fixedNow }

	limiter := ratelimit.New(ratelimit.WithClock(now), ratelimit.WithSweepInterval(0))
	t.Cleanup(limiter.Close)

	accounts := &countingAccounts{accounts: map[string]*models.Account{
		"pro@example.com":  {Email: "pro@example.com", SubscriptionTier: models.TierPro, SubscriptionStatus: "active"},
		"free@example.com": {Email: "free@example.com", SubscriptionTier: models.TierFree, SubscriptionStatus: "active"},
	}}
	guard := NewGuard(limiter, ratelimit.NewPresets(overrides), accounts, "X-User-Email", nil)

	snaps := usecase.NewSnapshotsUseCase(stubReader{}, 20)
	signals := usecase.NewSignalsUseCase(stubSource{}, analytics.NewQuantScorer(), nil, 2, nil)
	policy := marketclock.NewPolicy(marketclock.MustNew(marketclock.DefaultTimezone))
	session := usecase.NewSessionUseCase(policy, map[marketclock.DataClass]time.Duration{
		marketclock.Quote: time.Minute,
		marketclock.Chart: 5 * time.Minute,
	}, now)

	e := echo.New()
	NewMarketHandler(nil, guard, snaps, usecase.NewDashboardUseCase(snaps, signals, time.Second, nil), session).RegisterRoutes(e)
	NewSignalsHandler(nil, guard, signals, 20).RegisterRoutes(e)
	NewAdminHandler(nil, guard, usecase.NewCacheAdminUseCase(stubHousekeeper{}, limiter), "s3cret").RegisterRoutes(e)

	return &testServer{e: e, limiter: limiter, accounts: accounts}
}

func (s *testServer) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if data != nil {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("decode data: %v (%s)", err, env.Data)
		}
	}
	return env
}

func TestSnapshotsHeadersAndBody(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(http.MethodGet, "/api/snapshots?symbols=aapl,msft,AAPL", "", map[string]string{"X-User-Email": "Pro@Example.com"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res usecase.SnapshotsResult
	decode(t, rec, &res)
	if len(res.Symbols) != 2 || len(res.Snapshots) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}

	h := rec.Header()
	if h.Get("X-Cache-Hits") != "1" || h.Get("X-Cache-Misses") != "1" || h.Get("X-Symbols") != "2" {
		t.Fatalf("cache headers = %v", h)
	}
	if h.Get("X-RateLimit-Limit") != "30" || h.Get("X-RateLimit-Remaining") != "29" {
		t.Fatalf("rate limit headers = %v", h)
	}
	if h.Get("X-RateLimit-Reset") != "1736175660" {
		t.Fatalf("reset = %s", h.Get("X-RateLimit-Reset"))
	}
	if h.Get(echo.HeaderXRequestID) == "" {
		t.Fatalf("request id missing")
	}
}

func TestSnapshotsRequiresSymbols(t *testing.T) {
	s := newTestServer(t, nil)
	if rec := s.do(http.MethodGet, "/api/snapshots", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing param status = %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/api/snapshots?symbols=,,", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty list status = %d", rec.Code)
	}
}

func TestRateLimitDeniesWithRetryAfter(t *testing.T) {
	s := newTestServer(t, map[string]ratelimit.Limit{ratelimit.DataFetch: {MaxRequests: 2, WindowSeconds: 60}})

	// Anonymous callers get half: one request.
	if rec := s.do(http.MethodGet, "/api/snapshots?symbols=AAPL", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec := s.do(http.MethodGet, "/api/snapshots?symbols=AAPL", "", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" || rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("headers = %v", rec.Header())
	}
	if !strings.Contains(rec.Body.String(), `"retryAfter":60`) {
		t.Fatalf("body should carry retryAfter: %s", rec.Body.String())
	}

	// A named caller has its own window and the full count.
	headers := map[string]string{"X-User-Email": "pro@example.com"}
	for i := 0; i < 2; i++ {
		if rec := s.do(http.MethodGet, "/api/snapshots?symbols=AAPL", "", headers); rec.Code != http.StatusOK {
			t.Fatalf("named request %d status = %d", i, rec.Code)
		}
	}
}

func TestTopSignalsTierCap(t *testing.T) {
	s := newTestServer(t, nil)

	var list struct {
		Rows  []models.EnhancedSignal `json:"rows"`
		Total int64                   `json:"total"`
	}
	rec := s.do(http.MethodGet, "/api/signals?limit=10", "", map[string]string{"X-User-Email": "free@example.com"})
	decode(t, rec, &list)
	if list.Total != 2 {
		t.Fatalf("free tier rows = %d, want 2", list.Total)
	}

	rec = s.do(http.MethodGet, "/api/signals?limit=10", "", map[string]string{"X-User-Email": "pro@example.com"})
	decode(t, rec, &list)
	if list.Total != 4 {
		t.Fatalf("paid rows = %d, want 4", list.Total)
	}
	if list.Rows[0].QuantScore < list.Rows[len(list.Rows)-1].QuantScore {
		t.Fatalf("rows not sorted by score")
	}
	if got := s.accounts.calls.Load(); got != 2 {
		t.Fatalf("account lookups = %d, want one per request", got)
	}

	rec = s.do(http.MethodGet, "/api/signals?signal=SELL", "", map[string]string{"X-User-Email": "pro@example.com"})
	decode(t, rec, &list)
	if list.Total != 1 || list.Rows[0].Ticker != "TSLA" {
		t.Fatalf("SELL filter = %+v", list.Rows)
	}

	if rec := s.do(http.MethodGet, "/api/signals?signal=HOLD", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid signal filter status = %d", rec.Code)
	}
}

func TestScorePrediction(t *testing.T) {
	s := newTestServer(t, nil)
	body := `{"ticker":"NVDA","signal":"BUY","current_price":100,"prob_up":0.75,"prob_neutral":0.10,"prob_down":0.15,"confidence":0.85}`

	rec := s.do(http.MethodPost, "/api/signals/score", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var sig models.EnhancedSignal
	decode(t, rec, &sig)
	if sig.QuantScore != 100 || sig.Regime != models.RegimeTrending || !sig.IsTradeable {
		t.Fatalf("unexpected signal %+v", sig)
	}

	if rec := s.do(http.MethodPost, "/api/signals/score", `{"prob_up":0.5}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing ticker status = %d", rec.Code)
	}
}

func TestSessionReport(t *testing.T) {
	s := newTestServer(t, nil)
	var report models.SessionReport
	decode(t, s.do(http.MethodGet, "/api/session", "", nil), &report)

	if report.Phase != string(marketclock.Open) {
		t.Fatalf("phase = %s, want OPEN", report.Phase)
	}
	if report.TTLSeconds["quote"] != 60 || report.TTLSeconds["chart"] != 300 {
		t.Fatalf("ttls = %v", report.TTLSeconds)
	}
}

func TestDashboard(t *testing.T) {
	s := newTestServer(t, nil)
	var d models.Dashboard
	decode(t, s.do(http.MethodGet, "/api/dashboard?symbols=nvda,xyz", "", nil), &d)

	if len(d.Rows) != 2 || d.Rows[0].Signal == nil || d.Rows[1].Signal != nil {
		t.Fatalf("unexpected dashboard %+v", d)
	}
}

func TestAdminRequiresToken(t *testing.T) {
	s := newTestServer(t, nil)

	if rec := s.do(http.MethodGet, "/admin/cache/stats", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", rec.Code)
	}

	s.do(http.MethodGet, "/api/session", "", nil)
	var report models.CacheReport
	rec := s.do(http.MethodGet, "/admin/cache/stats", "", map[string]string{"X-Admin-Token": "s3cret"})
	decode(t, rec, &report)
	if report.Backend != "memory" || report.RateLimitKeys != 2 {
		t.Fatalf("report = %+v", report)
	}

	var res models.ClearResult
	decode(t, s.do(http.MethodPost, "/admin/cache/clear", "", map[string]string{"X-Admin-Token": "s3cret"}), &res)
	if !res.Success || res.TotalCleared != 2 {
		t.Fatalf("clear = %+v", res)
	}
}
