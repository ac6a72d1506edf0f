package models

import "time"

// Subscription tiers.
const (
	TierFree    = "free"
	TierPro     = "pro"
	TierPremium = "premium"
)

// Account is the caller's account row, resolved at most once per request.
type Account struct {
	ID                 uint      `json:"id" gorm:"primaryKey"`
	Email              string    `json:"email" gorm:"uniqueIndex;size:320;not null"`
	SubscriptionTier   string    `json:"subscriptionTier" gorm:"size:32;default:free"`
	SubscriptionStatus string    `json:"subscriptionStatus" gorm:"size:32;default:active"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Paid reports whether the account has an active paid tier.
func (a *Account) Paid() bool {
	if a == nil {
		return false
	}
	return a.SubscriptionTier != TierFree && a.SubscriptionTier != "" && a.SubscriptionStatus == "active"
}
