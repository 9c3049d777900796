package adapter

import (
	"context"
	"time"
)

type PaymentEventType string

const (
	EventPaymentVerified PaymentEventType = "payment.verified"
	EventPaymentExpired  PaymentEventType = "payment.expired"
	EventPaymentRejected PaymentEventType = "payment.rejected"
)

// PaymentEvent is published after a payment intent reaches a terminal state.
type PaymentEvent struct {
	Type           PaymentEventType `json:"type"`
	IntentID       string           `json:"intent_id"`
	ReferenceCode  string           `json:"reference_code"`
	UserID         int64            `json:"user_id"`
	Tier           string           `json:"tier"`
	Amount         string           `json:"amount"`
	ReferrerID     *int64           `json:"referrer_id,omitempty"`
	ReferralPayout string           `json:"referral_payout,omitempty"`
	AdminID        *int64           `json:"admin_id,omitempty"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

type EventPublisher interface {
	Publish(ctx context.Context, ev PaymentEvent) error
	Close()
}
