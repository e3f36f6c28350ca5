// Package entitlement decides whether an account may run a metered action.
//
// Everything here is a pure function of an account snapshot and a clock
// reading; callers persist any Correction before responding.
package entitlement

import (
	"time"

	"github.com/Elyes-Bali/UniProfs-UI/app/models"
)

// DefaultFreeLimit is the number of metered actions an account without an
// active subscription may run.
const DefaultFreeLimit = 3

// Unlimited is reported as RemainingFree for subscribed accounts.
const Unlimited = -1

// Policy holds the free-tier allowance.
type Policy struct {
	FreeLimit int
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{FreeLimit: DefaultFreeLimit}
}

// Correction is the state change required to make a stored account
// consistent with the clock.
type Correction struct {
	ClearSubscription bool
}

// Verdict is the outcome of evaluating an account against a Policy.
type Verdict struct {
	// Entitled reports whether one more metered action may run now.
	Entitled bool
	// Subscribed is true when an unexpired subscription bypasses the free limit.
	Subscribed    bool
	RemainingFree int
	Correction    *Correction
}

// Exhausted reports a free-tier account with no allowance left.
func (v Verdict) Exhausted() bool {
	return !v.Subscribed && v.RemainingFree == 0
}

// Evaluate applies lazy expiry, then the subscription and free-tier rules.
func Evaluate(account models.Account, now time.Time, policy Policy) Verdict {
	var correction *Correction
	subscribed := account.HasActiveSubscription
	if subscribed && IsExpired(account, now) {
		subscribed = false
		correction = &Correction{ClearSubscription: true}
	}

	if subscribed {
		return Verdict{
			Entitled:      true,
			Subscribed:    true,
			RemainingFree: Unlimited,
		}
	}

	remaining := policy.FreeLimit - account.FreeUsageCount
	if remaining < 0 {
		remaining = 0
	}
	return Verdict{
		Entitled:      remaining > 0,
		RemainingFree: remaining,
		Correction:    correction,
	}
}

// IsExpired reports whether the stored expiry is at or before now.
// A subscription without an expiry never lapses.
func IsExpired(account models.Account, now time.Time) bool {
	if account.SubscriptionExpiresAt == nil {
		return false
	}
	return !account.SubscriptionExpiresAt.After(now)
}

// Apply returns the account with the correction applied in memory.
func Apply(account models.Account, c *Correction) models.Account {
	if c == nil {
		return account
	}
	if c.ClearSubscription {
		account.HasActiveSubscription = false
		account.SubscriptionExpiresAt = nil
	}
	return account
}

// DaysRemaining is the number of started days left on an active
// subscription, or 0 when there is none.
func DaysRemaining(account models.Account, now time.Time) int {
	if !account.HasActiveSubscription || account.SubscriptionExpiresAt == nil {
		return 0
	}
	left := account.SubscriptionExpiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	day := 24 * time.Hour
	return int((left + day - 1) / day)
}

// PlanAllows reports whether the account holds an unexpired subscription
// on the required plan. An empty plan allows everyone.
func PlanAllows(account models.Account, now time.Time, required models.Plan) bool {
	if required == "" {
		return true
	}
	if !account.HasActiveSubscription || IsExpired(account, now) {
		return false
	}
	if account.CurrentPlan == nil {
		return false
	}
	return planRank(*account.CurrentPlan) >= planRank(required)
}

func planRank(p models.Plan) int {
	switch p {
	case models.PlanPremiumPro:
		return 2
	case models.PlanPremium:
		return 1
	default:
		return 0
	}
}
