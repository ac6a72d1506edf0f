package ratelimit

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownPreset = errors.New("ratelimit: unknown preset")

// Preset names.
const (
	AIExplain         = "AI_EXPLAIN"
	AISentinel        = "AI_SENTINEL"
	AISummary         = "AI_SUMMARY"
	MarketData        = "MARKET_DATA"
	General           = "GENERAL"
	Auth              = "AUTH"
	AuthPasswordReset = "AUTH_PASSWORD_RESET"
	DataFetch         = "DATA_FETCH"
	Mutation          = "MUTATION"
	Subscription      = "SUBSCRIPTION"
)

// DefaultPresets: AI calls get few requests over minutes, bulk reads more over a
// minute, and auth-adjacent calls few over an hour.
var DefaultPresets = map[string]Limit{
	AIExplain:         {MaxRequests: 20, WindowSeconds: 60},
	AISentinel:        {MaxRequests: 3, WindowSeconds: 300},
	AISummary:         {MaxRequests: 15, WindowSeconds: 60},
	MarketData:        {MaxRequests: 30, WindowSeconds: 60},
	General:           {MaxRequests: 60, WindowSeconds: 60},
	Auth:              {MaxRequests: 5, WindowSeconds: 3600},
	AuthPasswordReset: {MaxRequests: 3, WindowSeconds: 3600},
	DataFetch:         {MaxRequests: 30, WindowSeconds: 60},
	Mutation:          {MaxRequests: 20, WindowSeconds: 60},
	Subscription:      {MaxRequests: 5, WindowSeconds: 3600},
}

// Presets resolves named limits, with a stricter variant for anonymous callers.
type Presets struct {
	limits map[string]Limit
}

// NewPresets copies DefaultPresets and applies overrides on top.
func NewPresets(overrides map[string]Limit) *Presets {
	limits := make(map[string]Limit, len(DefaultPresets)+len(overrides))
	for name, l := range DefaultPresets {
		limits[name] = l
	}
	for name, l := range overrides {
		limits[name] = l
	}
	return &Presets{limits: limits}
}

// Get returns the named preset.
func (p *Presets) Get(name string) (Limit, error) {
	l, ok := p.limits[name]
	if !ok {
		return Limit{}, fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}
	return l, nil
}

// For returns the preset for identity. Anonymous callers get half the count, at least one.
func (p *Presets) For(name, identity string) (Limit, error) {
	l, err := p.Get(name)
	if err != nil {
		return Limit{}, err
	}
	if identity == Anonymous {
		l.MaxRequests /= 2
		if l.MaxRequests < 1 {
			l.MaxRequests = 1
		}
	}
	return l, nil
}

// Names lists presets in sorted order.
func (p *Presets) Names() []string {
	names := make([]string, 0, len(p.limits))
	for name := range p.limits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
