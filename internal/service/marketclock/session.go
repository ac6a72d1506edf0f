// Package marketclock maps wall-clock time onto US equity trading sessions
// and derives cache lifetimes from them.
package marketclock

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// Phase is the trading-session phase at an instant.
type Phase string

const (
	Open       Phase = "OPEN"
	PreMarket  Phase = "PRE_MARKET"
	AfterHours Phase = "AFTER_HOURS"
	Overnight  Phase = "OVERNIGHT"
	Weekend    Phase = "WEEKEND"
)

// DefaultTimezone is the exchange time zone.
const DefaultTimezone = "America/New_York"

// Session boundaries, minutes after local midnight.
// The regular session closes at 16:05 to let the closing print settle.
const (
	preMarketStart = 4 * 60
	regularOpen    = 9*60 + 30
	regularClose   = 16*60 + 5
	afterHoursEnd  = 20 * 60
)

var boundaryMinutes = [...]int{0, preMarketStart, regularOpen, regularClose, afterHoursEnd}

// Clock classifies instants in the exchange time zone.
type Clock struct {
	loc *time.Location
}

// New loads tz; an empty tz means DefaultTimezone.
func New(tz string) (*Clock, error) {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return &Clock{loc: loc}, nil
}

// MustNew is New for static configuration; it panics on an unknown zone.
func MustNew(tz string) *Clock {
	c, err := New(tz)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Clock) Location() *time.Location { return c.loc }

// Phase returns the session phase at t.
func (c *Clock) Phase(t time.Time) Phase {
	lt := t.In(c.loc)
	if isWeekend(lt.Weekday()) {
		return Weekend
	}
	m := lt.Hour()*60 + lt.Minute()
	switch {
	case m < preMarketStart:
		return Overnight
	case m < regularOpen:
		return PreMarket
	case m < regularClose:
		return Open
	case m < afterHoursEnd:
		return AfterHours
	default:
		return Overnight
	}
}

// NextBoundary returns the first instant after t at which the phase changes, and the phase entered.
func (c *Clock) NextBoundary(t time.Time) (time.Time, Phase) {
	current := c.Phase(t)
	lt := t.In(c.loc)
	y, mo, d := lt.Date()
	for day := 0; day <= 3; day++ {
		for _, m := range boundaryMinutes {
			b := time.Date(y, mo, d+day, m/60, m%60, 0, 0, c.loc)
			if !b.After(lt) {
				continue
			}
			if p := c.Phase(b); p != current {
				return b, p
			}
		}
	}
	// Unreachable with the fixed calendar: a weekend never spans more than two days.
	return lt.Add(24 * time.Hour), current
}

// UntilNextBoundary is the time remaining in the current phase.
func (c *Clock) UntilNextBoundary(t time.Time) time.Duration {
	b, _ := c.NextBoundary(t)
	return b.Sub(t)
}

// NextPreMarket returns the next weekday 04:00 strictly after t.
func (c *Clock) NextPreMarket(t time.Time) time.Time {
	lt := t.In(c.loc)
	y, mo, d := lt.Date()
	for day := 0; day <= 7; day++ {
		b := time.Date(y, mo, d+day, preMarketStart/60, preMarketStart%60, 0, 0, c.loc)
		if b.After(lt) && !isWeekend(b.Weekday()) {
			return b
		}
	}
	return lt.Add(24 * time.Hour)
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}
