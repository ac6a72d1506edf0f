// Package ratelimit implements a fixed-window request counter keyed by operation and caller.
package ratelimit

import (
	"strings"
	"sync"
	"time"

	"MarketMinute/pkg/logger"
	"MarketMinute/pkg/sweeper"
	"MarketMinute/pkg/util"
)

// Anonymous is the identity used when a caller cannot be identified.
const Anonymous = "anonymous"

// Limit is a request budget per window.
type Limit struct {
	MaxRequests   int `json:"maxRequests"`
	WindowSeconds int `json:"windowSeconds"`
}

func (l Limit) window() time.Duration {
	if l.WindowSeconds <= 0 {
		return time.Second
	}
	return time.Duration(l.WindowSeconds) * time.Second
}

// Decision is the outcome of one Check. A denial is a value, not an error.
type Decision struct {
	Allowed            bool  `json:"allowed"`
	Limit              int   `json:"limit"`
	Remaining          int   `json:"remaining"`
	ResetAtEpochMillis int64 `json:"resetAt"`
	RetryAfterSeconds  int64 `json:"retryAfter,omitempty"`
}

// ResetAt is the end of the current window.
func (d Decision) ResetAt() time.Time {
	return time.UnixMilli(d.ResetAtEpochMillis)
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter holds one window per operation:identity key.
type Limiter struct {
	mu      sync.Mutex
	m       map[string]*window
	now     func() time.Time
	l       *logger.Logger
	observe func(op string, allowed bool)
	sweeper *sweeper.Sweeper
}

// Option configures a Limiter.
type Option func(*options)

type options struct {
	now           func() time.Time
	sweepInterval time.Duration
	l             *logger.Logger
	observe       func(op string, allowed bool)
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSweepInterval sets how often expired windows are dropped. Zero disables the background sweep.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) { o.sweepInterval = d }
}

// WithLogger logs denials at warn level.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.l = l }
}

// WithObserver is called after every decision.
func WithObserver(fn func(op string, allowed bool)) Option {
	return func(o *options) { o.observe = fn }
}

// New creates a limiter and starts its sweeper.
func New(opts ...Option) *Limiter {
	o := &options{now: time.Now, sweepInterval: 5 * time.Minute}
	for _, opt := range opts {
		opt(o)
	}
	lim := &Limiter{
		m:       make(map[string]*window),
		now:     o.now,
		l:       o.l,
		observe: o.observe,
	}
	lim.sweeper = sweeper.New("ratelimit", o.sweepInterval, lim.sweep,
		sweeper.WithClock(o.now), sweeper.WithLogger(o.l))
	lim.sweeper.Start()
	return lim
}

// Key joins operation and identity.
func Key(operation, identity string) string {
	return operation + ":" + identity
}

// Identity normalizes a caller identity; empty becomes Anonymous.
func Identity(raw string) string {
	id := strings.ToLower(strings.TrimSpace(raw))
	if id == "" {
		return Anonymous
	}
	return id
}

// Check counts one request for operation by identity against limit.
func (l *Limiter) Check(operation, identity string, limit Limit) Decision {
	key := Key(operation, identity)
	now := l.now()

	l.mu.Lock()
	w, ok := l.m[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(limit.window())}
		l.m[key] = w
	}

	d := Decision{Limit: limit.MaxRequests, ResetAtEpochMillis: w.resetAt.UnixMilli()}
	if w.count >= limit.MaxRequests {
		d.RetryAfterSeconds = util.CeilSeconds(w.resetAt.Sub(now))
	} else {
		w.count++
		d.Allowed = true
		d.Remaining = limit.MaxRequests - w.count
	}
	l.mu.Unlock()

	if l.observe != nil {
		l.observe(operation, d.Allowed)
	}
	if !d.Allowed && l.l != nil {
		l.l.Warn("rate limit exceeded",
			logger.String("operation", operation),
			logger.String("identity", identity),
			logger.Int64("retry_after_s", d.RetryAfterSeconds))
	}
	return d
}

// Allow is Check reduced to its verdict.
func (l *Limiter) Allow(operation, identity string, limit Limit) bool {
	return l.Check(operation, identity, limit).Allowed
}

// Reset forgets the window for operation:identity.
func (l *Limiter) Reset(operation, identity string) {
	l.mu.Lock()
	delete(l.m, Key(operation, identity))
	l.mu.Unlock()
}

// Len is the number of tracked windows, expired ones included until the next sweep.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// Sweep drops expired windows now.
func (l *Limiter) Sweep() int {
	return l.sweeper.RunOnce()
}

func (l *Limiter) sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, w := range l.m {
		if !now.Before(w.resetAt) {
			delete(l.m, key)
			removed++
		}
	}
	return removed
}

// Close stops the sweeper.
func (l *Limiter) Close() {
	l.sweeper.Stop()
}
