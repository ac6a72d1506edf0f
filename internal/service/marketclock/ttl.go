package marketclock

import (
	"time"

	"MarketMinute/internal/domain/models"
)

// DataClass selects the minimum lifetime applied while the market is closed.
type DataClass string

const (
	Quote       DataClass = "quote"
	Chart       DataClass = "chart"
	Summary     DataClass = "summary"
	Explanation DataClass = "explanation"
)

const (
	ExtendedHoursMultiplier = 12
	ClosedCushion           = 5 * time.Minute
	MaxTTL                  = 7 * 24 * time.Hour
)

var classMinimums = map[DataClass]time.Duration{
	Quote:       5 * time.Second,
	Chart:       60 * time.Second,
	Summary:     time.Hour,
	Explanation: 30 * time.Minute,
}

// MinTTL is the floor for class. Unknown classes use the quote floor.
func MinTTL(class DataClass) time.Duration {
	if d, ok := classMinimums[class]; ok {
		return d
	}
	return classMinimums[Quote]
}

// Policy turns a default lifetime into a session-aware one.
type Policy struct {
	clock *Clock
}

func NewPolicy(clock *Clock) *Policy {
	return &Policy{clock: clock}
}

func (p *Policy) Clock() *Clock { return p.clock }

// TTLFor returns the lifetime, in whole seconds, for data of class cached at now.
func (p *Policy) TTLFor(class DataClass, def time.Duration, now time.Time) time.Duration {
	return p.TTLForPhase(class, def, p.clock.Phase(now), now)
}

// TTLForPhase applies the rule for phase regardless of what phase now falls in.
func (p *Policy) TTLForPhase(class DataClass, def time.Duration, phase Phase, now time.Time) time.Duration {
	min := MinTTL(class)
	if def <= 0 {
		def = min
	}

	var ttl time.Duration
	switch phase {
	case Open:
		ttl = def
	case PreMarket, AfterHours:
		ttl = def * ExtendedHoursMultiplier
		if ttl < def {
			ttl = def
		}
	default:
		ttl = p.clock.NextPreMarket(now).Sub(now) - ClosedCushion
		if ttl < min {
			ttl = min
		}
	}

	if ttl > MaxTTL {
		ttl = MaxTTL
	}
	ttl = ttl.Truncate(time.Second)
	if ttl <= 0 {
		ttl = min
	}
	return ttl
}

// Report describes the session at now and the lifetime each class would get.
func (p *Policy) Report(now time.Time, defaults map[DataClass]time.Duration) models.SessionReport {
	next, nextPhase := p.clock.NextBoundary(now)
	ttls := make(map[string]int64, len(defaults))
	for class, def := range defaults {
		ttls[string(class)] = int64(p.TTLFor(class, def, now) / time.Second)
	}
	return models.SessionReport{
		Phase:                 string(p.clock.Phase(now)),
		Now:                   now.In(p.clock.Location()),
		NextBoundary:          next,
		NextPhase:             string(nextPhase),
		SecondsToNextBoundary: int64(next.Sub(now) / time.Second),
		NextPreMarket:         p.clock.NextPreMarket(now),
		TTLSeconds:            ttls,
	}
}
