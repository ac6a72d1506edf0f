package usecase

import (
	"time"

	"MarketMinute/internal/domain/models"
	"MarketMinute/internal/service/marketclock"
)

// SessionUseCase reports the current market phase and cache lifetimes.
type SessionUseCase struct {
	policy   *marketclock.Policy
	defaults map[marketclock.DataClass]time.Duration
	now      func() time.Time
}

func NewSessionUseCase(policy *marketclock.Policy, defaults map[marketclock.DataClass]time.Duration, now func() time.Time) *SessionUseCase {
	if now == nil {
		now = time.Now
	}
	return &SessionUseCase{policy: policy, defaults: defaults, now: now}
}

func (uc *SessionUseCase) Report() models.SessionReport {
	return uc.policy.Report(uc.now(), uc.defaults)
}
