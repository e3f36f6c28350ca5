package models

import "time"

// FailedPaymentEvent is queued for manual reconciliation when a verified
// payment event could not be applied to an account.
type FailedPaymentEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	AccountID  string    `json:"account_id,omitempty"`
	PlanName   string    `json:"plan_name,omitempty"`
	Price      string    `json:"price,omitempty"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}
