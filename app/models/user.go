// Package models defines account, entitlement and payment fields.
package models

import (
	"strings"
	"time"
)

type Plan string

const (
	PlanPremium    Plan = "Premium"
	PlanPremiumPro Plan = "Premium Pro"
)

// ParsePlan accepts the display names used by checkout metadata.
func ParsePlan(raw string) (Plan, bool) {
	switch strings.ToLower(strings.Join(strings.Fields(raw), "")) {
	case "premium":
		return PlanPremium, true
	case "premiumpro":
		return PlanPremiumPro, true
	}
	return "", false
}

type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

type Account struct {
	ID           string `db:"id" json:"id"`
	Email        string `db:"email" json:"email"`
	PasswordHash string `db:"password_hash" json:"-"`
	DisplayName  string `db:"display_name" json:"name"`
	Role         Role   `db:"role" json:"role"`
	Verified     bool   `db:"verified" json:"isVerified"`

	VerificationCode      string     `db:"verification_code" json:"-"`
	VerificationExpiresAt *time.Time `db:"verification_expires_at" json:"-"`
	ResetToken            string     `db:"reset_token" json:"-"`
	ResetExpiresAt        *time.Time `db:"reset_expires_at" json:"-"`

	HasActiveSubscription bool       `db:"has_active_subscription" json:"hasActiveSubscription"`
	CurrentPlan           *Plan      `db:"current_plan" json:"currentPlan,omitempty"`
	SubscriptionExpiresAt *time.Time `db:"subscription_expires_at" json:"subscriptionExpiresAt,omitempty"`
	FreeUsageCount        int        `db:"free_usage_count" json:"freeUsageCount"`

	LastLoginAt *time.Time `db:"last_login_at" json:"lastLogin,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// PaymentRecord is one append-only entry of an account's payment history.
type PaymentRecord struct {
	ID        int64     `db:"id" json:"-"`
	AccountID string    `db:"account_id" json:"-"`
	Amount    float64   `db:"amount" json:"amount"`
	Plan      Plan      `db:"plan" json:"plan"`
	PaidAt    time.Time `db:"paid_at" json:"date"`
	EventID   string    `db:"event_id" json:"-"`
}

// FinanceSummary aggregates payment history for the admin dashboard.
type FinanceSummary struct {
	TotalRevenue float64          `json:"totalRevenue"`
	Payments     int              `json:"payments"`
	ByPlan       map[Plan]int     `json:"byPlan"`
	RevenueBy    map[Plan]float64 `json:"revenueByPlan"`
}
