package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSendAndParseDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("apikey"); got != "k" {
			t.Errorf("apikey = %q", got)
		}
		if ua := r.Header.Get("User-Agent"); ua != defaultUserAgent {
			t.Errorf("user-agent = %q", ua)
		}
		_, _ = w.Write([]byte(`{"symbol":"AAPL"}`))
	}))
	defer srv.Close()

	var out struct {
		Symbol string `json:"symbol"`
	}
	err := NewClient().SendAndParse(context.Background(), &RequestOptions{
		Method:      MethodGet,
		URL:         srv.URL,
		QueryParams: map[string][]string{"apikey": {"k"}},
	}, &out)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if out.Symbol != "AAPL" {
		t.Fatalf("symbol = %q", out.Symbol)
	}
}

func TestSendAndParseStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	err := NewClient().SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.Code != http.StatusTooManyRequests || !se.Temporary() {
		t.Fatalf("status error = %+v", se)
	}
	if se.RetryAfter != 7*time.Second || se.Body != "slow down" {
		t.Fatalf("retryAfter = %v body = %q", se.RetryAfter, se.Body)
	}
}

func TestStatusErrorTemporary(t *testing.T) {
	cases := map[int]bool{400: false, 401: false, 404: false, 429: true, 500: true, 503: true}
	for code, want := range cases {
		if got := (&StatusError{Code: code}).Temporary(); got != want {
			t.Fatalf("Temporary(%d) = %v, want %v", code, got, want)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d := parseRetryAfter(""); d != 0 {
		t.Fatalf("empty = %v", d)
	}
	if d := parseRetryAfter("3"); d != 3*time.Second {
		t.Fatalf("seconds = %v", d)
	}
	if d := parseRetryAfter("soon"); d != 0 {
		t.Fatalf("garbage = %v", d)
	}
	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	if d := parseRetryAfter(future); d <= 0 || d > time.Minute {
		t.Fatalf("date = %v", d)
	}
}

func TestSendAndParseJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewClient(WithUserAgent("mmctl")).SendAndParse(context.Background(), &RequestOptions{
		Method: MethodPost,
		URL:    srv.URL,
		Body:   map[string]string{"a": "b"},
	}, nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
}
