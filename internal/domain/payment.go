package domain

import (
	"time"
)

// PaymentIntentStatus is the lifecycle state of a payment intent.
type PaymentIntentStatus string

const (
	PaymentPending   PaymentIntentStatus = "pending"
	PaymentCompleted PaymentIntentStatus = "completed"
	PaymentFailed    PaymentIntentStatus = "failed"
)

// CanTransitionTo enforces the forward-only status flow: pending may move to
// completed or failed; terminal states never move.
func (s PaymentIntentStatus) CanTransitionTo(target PaymentIntentStatus) bool {
	if s == target {
		return false
	}
	return s == PaymentPending && (target == PaymentCompleted || target == PaymentFailed)
}

// Terminal reports whether the status is final.
func (s PaymentIntentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

// PaymentIntent is a server-issued payment record. The reference is the sole
// correlation key between client, gateway, and backend; it outlives any
// client flow that created it.
type PaymentIntent struct {
	ID        string              `json:"id"`
	Reference string              `json:"reference"`
	PlanID    string              `json:"plan_id"`
	Amount    int64               `json:"amount"`
	Currency  string              `json:"currency"`
	Status    PaymentIntentStatus `json:"status"`
	Gateway   string              `json:"gateway"`

	// Snapshot of the account draft at initialization time so the intent can
	// be matched to a registration later, even after the client flow is gone.
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`

	// ConsumedByUserID is set when a registration has used this intent as its
	// proof of payment. A consumed intent cannot fund a second registration.
	ConsumedByUserID string `json:"consumed_by_user_id,omitempty"`

	GatewayMetadata map[string]string `json:"gateway_metadata,omitempty"`
	PaidAt          *time.Time        `json:"paid_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// MinorAmount returns the amount in the gateway's minor units.
func (p *PaymentIntent) MinorAmount() int64 {
	return p.Amount * 100
}

// Consumed reports whether a registration already used this intent.
func (p *PaymentIntent) Consumed() bool {
	return p.ConsumedByUserID != ""
}
