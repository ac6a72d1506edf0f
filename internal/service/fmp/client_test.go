package fmp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"MarketMinute/internal/service/ratelimit"
	xhttp "MarketMinute/pkg/http"
)

func TestFetchSnapshotsBatchesSymbols(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.EscapedPath() != "/quote/AAPL,MSFT" {
			t.Errorf("unexpected path %q", r.URL.EscapedPath())
		}
		if r.URL.Query().Get("apikey") != "k" {
			t.Errorf("missing api key")
		}
		_, _ = w.Write([]byte(`[
			{"symbol":"aapl","name":"Apple Inc.","price":190.5,"changesPercentage":1.25,"volume":5000000,"yearHigh":199.6,"yearLow":164.1,"earningsAnnouncement":"2025-01-30T21:00:00.000+0000"},
			{"symbol":"MSFT","price":412.0,"changesPercentage":-0.5}
		]`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/", APIKey: "k"}, nil, nil)
	got, err := c.FetchSnapshots(context.Background(), []string{"AAPL", "MSFT"})
	if err != nil {
		t.Fatalf("FetchSnapshots: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
	if len(got) != 2 || got[0].Symbol != "AAPL" || got[0].Price != 190.5 || got[0].Volume != 5000000 {
		t.Fatalf("unexpected snapshots %+v", got)
	}
	if got[0].High52w == nil || *got[0].High52w != 199.6 || got[0].EarningsDate == nil {
		t.Fatalf("optional fields not mapped: %+v", got[0])
	}
	if got[1].High52w != nil {
		t.Fatalf("absent yearHigh should stay nil")
	}
}

func TestFetchSnapshotsRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"symbol":"TSLA","price":250}]`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "k", Attempts: 3}, nil, nil)
	got, err := c.FetchSnapshots(context.Background(), []string{"TSLA"})
	if err != nil || len(got) != 1 {
		t.Fatalf("got %v, %v", got, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestFetchSnapshotsDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "bad", Attempts: 3}, nil, nil)
	if _, err := c.FetchSnapshots(context.Background(), []string{"TSLA"}); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestFetchSnapshotsBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	budget := ratelimit.New(ratelimit.WithSweepInterval(0))
	defer budget.Close()
	c := New(Config{BaseURL: srv.URL, APIKey: "k", CallsPerMinute: 2}, budget, nil)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := c.FetchSnapshots(ctx, []string{"A"}); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if _, err := c.FetchSnapshots(ctx, []string{"A"}); !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("expected ErrBudgetExhausted, got %v", err)
	}
}

func TestFetchSnapshotsGuards(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1"}, nil, nil)
	got, err := c.FetchSnapshots(context.Background(), nil)
	if err != nil || got != nil {
		t.Fatalf("empty input should be a no-op, got %v %v", got, err)
	}
	if _, err := c.FetchSnapshots(context.Background(), []string{"A"}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestFetchSnapshotsHonorsCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "k", Attempts: 3}, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.FetchSnapshots(ctx, []string{"A"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestRetryDelayHonorsShortRetryAfter(t *testing.T) {
	se := &xhttp.StatusError{Code: 429, RetryAfter: time.Second}
	if d := retryDelay(se, 1); d != time.Second {
		t.Fatalf("delay = %v, want 1s", d)
	}
	se.RetryAfter = time.Hour
	if d := retryDelay(se, 1); d != 100*time.Millisecond {
		t.Fatalf("long retry-after must fall back to linear backoff, got %v", d)
	}
	if d := retryDelay(errors.New("boom"), 3); d != 300*time.Millisecond {
		t.Fatalf("delay = %v", d)
	}
}
