// Package store persists accounts and their payment history.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Elyes-Bali/UniProfs-UI/app/models"
)

var (
	ErrNotFound       = errors.New("account not found")
	ErrEmailTaken     = errors.New("email already registered")
	ErrAlreadyApplied = errors.New("payment event already applied")
)

// Activation grants a subscription and records the payment that paid for it.
type Activation struct {
	AccountID string
	Plan      models.Plan
	Amount    float64
	PaidAt    time.Time
	ExpiresAt time.Time
	// EventID is the payment provider's event id; a repeated id is rejected
	// with ErrAlreadyApplied and leaves the account untouched.
	EventID string
}

// AccountStore is implemented by Postgres and Memory.
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, id string) (models.Account, error)
	FindByEmail(ctx context.Context, email string) (models.Account, error)
	FindByVerificationCode(ctx context.Context, code string, now time.Time) (models.Account, error)
	FindByResetToken(ctx context.Context, token string, now time.Time) (models.Account, error)
	List(ctx context.Context) ([]models.Account, error)

	MarkVerified(ctx context.Context, id string) error
	SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateDisplayName(ctx context.Context, id, name string) (models.Account, error)
	TouchLogin(ctx context.Context, id string, at time.Time) error

	// ExpireSubscription clears the subscription flag and expiry only if the
	// stored expiry is still at or before now. It reports whether a row changed.
	ExpireSubscription(ctx context.Context, id string, now time.Time) (bool, error)
	// ConsumeFreeUsage increments the free usage counter only while it is
	// below limit, in one atomic step. ok is false when the limit was reached.
	ConsumeFreeUsage(ctx context.Context, id string, limit int) (count int, ok bool, err error)
	ActivateSubscription(ctx context.Context, a Activation) error

	PaymentHistory(ctx context.Context, id string) ([]models.PaymentRecord, error)
	FinanceSummary(ctx context.Context) (models.FinanceSummary, error)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
