package models

import "time"

// SessionReport describes the current trading session and the cache lifetimes it implies.
type SessionReport struct {
	Phase                 string           `json:"phase"`
	Now                   time.Time        `json:"now"`
	NextBoundary          time.Time        `json:"nextBoundary"`
	NextPhase             string           `json:"nextPhase"`
	SecondsToNextBoundary int64            `json:"secondsToNextBoundary"`
	NextPreMarket         time.Time        `json:"nextPreMarket"`
	TTLSeconds            map[string]int64 `json:"ttlSeconds"`
}
