// Package sweeper runs a housekeeping function on a fixed interval until stopped.
package sweeper

import (
	"sync"
	"time"

	"MarketMinute/pkg/logger"
)

// Func removes stale state as of now and reports how many items it dropped.
type Func func(now time.Time) int

// Sweeper is a cancellable periodic task. Tests drive it with RunOnce instead of Start.
type Sweeper struct {
	name     string
	interval time.Duration
	fn       Func
	now      func() time.Time
	l        *logger.Logger

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the logger used for sweep summaries.
func WithLogger(l *logger.Logger) Option {
	return func(s *Sweeper) { s.l = l }
}

// WithClock overrides the time source passed to Func.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

func New(name string, interval time.Duration, fn Func, opts ...Option) *Sweeper {
	s := &Sweeper{
		name:     name,
		interval: interval,
		fn:       fn,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the background loop. Calling Start twice is a no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.interval <= 0 {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true
	go s.loop(s.stop, s.done)
}

// Stop ends the background loop and waits for an in-progress sweep.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stop)
	done := s.done
	s.running = false
	s.mu.Unlock()
	<-done
}

// RunOnce sweeps synchronously.
func (s *Sweeper) RunOnce() int {
	removed := s.fn(s.now())
	if removed > 0 && s.l != nil {
		s.l.Debug("sweep completed", logger.String("sweeper", s.name), logger.Int("removed", removed))
	}
	return removed
}

func (s *Sweeper) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.RunOnce()
		}
	}
}
