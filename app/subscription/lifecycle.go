// Package subscription applies completed payments to accounts and reports
// payment events that could not be applied.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Elyes-Bali/UniProfs-UI/app/logging"
	"github.com/Elyes-Bali/UniProfs-UI/app/models"
	"github.com/Elyes-Bali/UniProfs-UI/app/store"
)

var ErrInvalidMetadata = errors.New("invalid checkout metadata")

// Checkout metadata keys written at session creation and read back from the webhook.
const (
	MetaUserID   = "userId"
	MetaPlanName = "planName"
	MetaPrice    = "price"
)

// Prices is the configured charge per plan.
type Prices map[models.Plan]float64

// CheckoutCompleted is a verified, paid checkout for one account.
type CheckoutCompleted struct {
	EventID   string
	AccountID string
	Plan      models.Plan
	Amount    float64
}

// ParseCheckout reads the account, plan and price from checkout metadata.
// A missing or malformed price falls back to the configured plan price.
func ParseCheckout(eventID string, metadata map[string]string, prices Prices) (CheckoutCompleted, error) {
	accountID := strings.TrimSpace(metadata[MetaUserID])
	if _, err := uuid.Parse(accountID); err != nil {
		return CheckoutCompleted{}, fmt.Errorf("%w: userId %q", ErrInvalidMetadata, accountID)
	}
	plan, ok := models.ParsePlan(metadata[MetaPlanName])
	if !ok {
		return CheckoutCompleted{}, fmt.Errorf("%w: planName %q", ErrInvalidMetadata, metadata[MetaPlanName])
	}
	amount, err := strconv.ParseFloat(strings.TrimSpace(metadata[MetaPrice]), 64)
	if err != nil || amount < 0 {
		amount = prices[plan]
	}
	return CheckoutCompleted{
		EventID:   eventID,
		AccountID: accountID,
		Plan:      plan,
		Amount:    amount,
	}, nil
}

// Lifecycle grants subscriptions. Every grant is a flat period starting at
// the time the event is applied; remaining time is not extended.
type Lifecycle struct {
	store  store.AccountStore
	period time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewLifecycle grants subscriptions lasting period.
func NewLifecycle(accounts store.AccountStore, period time.Duration) *Lifecycle {
	return &Lifecycle{
		store:  accounts,
		period: period,
		now:    time.Now,
		logger: logging.Component("subscription"),
	}
}

// Activate sets the account's plan and expiry and records the payment in
// one step. A redelivered event returns store.ErrAlreadyApplied and
// changes nothing.
func (l *Lifecycle) Activate(ctx context.Context, ev CheckoutCompleted) error {
	now := l.now()
	err := l.store.ActivateSubscription(ctx, store.Activation{
		AccountID: ev.AccountID,
		Plan:      ev.Plan,
		Amount:    ev.Amount,
		PaidAt:    now,
		ExpiresAt: now.Add(l.period),
		EventID:   ev.EventID,
	})
	switch {
	case err == nil:
		l.logger.Info().
			Str("event_id", ev.EventID).
			Str("account_id", ev.AccountID).
			Str("plan", string(ev.Plan)).
			Time("expires_at", now.Add(l.period)).
			Msg("subscription activated")
		return nil
	case errors.Is(err, store.ErrAlreadyApplied):
		l.logger.Info().Str("event_id", ev.EventID).Msg("payment event already applied")
		return err
	default:
		return fmt.Errorf("activate subscription for %s: %w", ev.AccountID, err)
	}
}
