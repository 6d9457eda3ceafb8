package domain

import "time"

// FlowState is the client-driven enrollment flow position. Flow state lives
// in Redis with a TTL and is never the source of truth for payment: intents
// are persisted independently and survive a discarded or expired flow.
type FlowState string

const (
	FlowDraftingAccount FlowState = "drafting_account"
	FlowSelectingPlan   FlowState = "selecting_plan"
	FlowAwaitingPayment FlowState = "awaiting_payment"
	FlowVerifying       FlowState = "verifying"
	FlowActivated       FlowState = "activated"
	FlowFailed          FlowState = "failed"
)

// FailureClass distinguishes why an enrollment flow ended in failed.
type FailureClass string

const (
	// FailurePayment means the gateway declined or the charge never succeeded.
	// The user may retry payment with a fresh reference.
	FailurePayment FailureClass = "payment_failed"

	// FailurePostPaymentRegistration means money was taken but account setup
	// failed afterward. This class is never auto-retried; support resolves it
	// against the completed intent.
	FailurePostPaymentRegistration FailureClass = "post_payment_registration_failed"
)

// AccountDraft holds the registration details collected before payment.
type AccountDraft struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Phone           string `json:"phone,omitempty"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// FullName joins the draft's name parts.
func (d AccountDraft) FullName() string {
	if d.FirstName == "" {
		return d.LastName
	}
	if d.LastName == "" {
		return d.FirstName
	}
	return d.FirstName + " " + d.LastName
}

// EnrollmentFlow is the ephemeral per-prospect state machine, keyed by flow
// ID in Redis.
type EnrollmentFlow struct {
	ID    string    `json:"id"`
	State FlowState `json:"state"`
	Draft AccountDraft `json:"draft"`

	// PlanID is immutable once payment has been initiated.
	PlanID string `json:"plan_id,omitempty"`

	// PaymentReference links the flow to its persisted intent.
	PaymentReference string `json:"payment_reference,omitempty"`

	Failure   FailureClass `json:"failure,omitempty"`
	UserID    string       `json:"user_id,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// flowTransitions enumerates the allowed forward edges. verifying->awaiting_payment
// covers a declined charge being retried with a new reference.
var flowTransitions = map[FlowState][]FlowState{
	FlowDraftingAccount: {FlowSelectingPlan},
	FlowSelectingPlan:   {FlowAwaitingPayment},
	FlowAwaitingPayment: {FlowVerifying},
	FlowVerifying:       {FlowActivated, FlowFailed, FlowAwaitingPayment},
	FlowFailed:          {FlowAwaitingPayment},
}

// CanTransitionTo reports whether the flow may move to target from its
// current state. Terminal activated flows never move; failed flows may
// re-enter awaiting_payment only for the payment failure class.
func (f *EnrollmentFlow) CanTransitionTo(target FlowState) bool {
	if f.State == FlowFailed && f.Failure == FailurePostPaymentRegistration {
		return false
	}
	for _, next := range flowTransitions[f.State] {
		if next == target {
			return true
		}
	}
	return false
}

// PlanLocked reports whether the chosen plan may no longer change.
func (f *EnrollmentFlow) PlanLocked() bool {
	switch f.State {
	case FlowAwaitingPayment, FlowVerifying, FlowActivated:
		return true
	}
	return f.State == FlowFailed && f.PaymentReference != ""
}
