package cache

import (
	"errors"
	"sync"

	"MarketMinute/internal/domain/models"
)

// errLeaderGone resolves a flight whose fetching caller was cancelled.
var errLeaderGone = errors.New("snapshot cache: fetching caller cancelled")

// flight is one pending upstream lookup for a symbol.
type flight struct {
	done chan struct{}
	snap *models.TickerSnapshot
	err  error
}

// inflight tracks pending lookups so concurrent misses for the same symbol
// share one upstream call. singleflight cannot express this because the
// leader fetches many symbols in one batch.
type inflight struct {
	mu      sync.Mutex
	flights map[string]*flight
}

func newInflight() *inflight {
	return &inflight{flights: make(map[string]*flight)}
}

// claim splits symbols into those the caller must fetch and those already pending.
func (f *inflight) claim(symbols []string) (lead []string, wait map[string]*flight) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range symbols {
		if fl, ok := f.flights[s]; ok {
			if wait == nil {
				wait = make(map[string]*flight)
			}
			wait[s] = fl
			continue
		}
		f.flights[s] = &flight{done: make(chan struct{})}
		lead = append(lead, s)
	}
	return lead, wait
}

// resolve completes the lookups for symbols. found holds the snapshots that came back.
func (f *inflight) resolve(symbols []string, found map[string]models.TickerSnapshot, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range symbols {
		fl, ok := f.flights[s]
		if !ok {
			continue
		}
		delete(f.flights, s)
		if snap, ok := found[s]; ok {
			fl.snap = &snap
		}
		fl.err = err
		close(fl.done)
	}
}

func (f *inflight) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.flights)
}
