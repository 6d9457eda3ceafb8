package gateway

import (
	"context"
	"time"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
)

// Charge statuses reported by Verify after mapping the provider's own
// vocabulary. Only StatusCompleted is success; StatusPending covers every
// not-yet-successful outcome that the caller may retry.
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusFailed    = "failed"
)

// IntentRequest holds what the gateway needs to initialize a charge.
// Amount is in major units; adapters convert to the provider's minor units.
type IntentRequest struct {
	Reference   string
	Email       string
	FullName    string
	Phone       string
	Amount      int64
	Currency    string
	PlanID      string
	CallbackURL string
}

// InitResult is the provider's answer to an initialize call.
type InitResult struct {
	Reference        string
	AuthorizationURL string
	AccessCode       string
}

// VerifyResult is the provider's view of a charge. Amount is in the
// provider's minor units.
type VerifyResult struct {
	Status   string
	Amount   int64
	Currency string
	PaidAt   *time.Time
	Channel  string
}

// Params is the hosted-checkout widget configuration for an intent.
type Params struct {
	PublicKey string            `json:"public_key"`
	Email     string            `json:"email"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Reference string            `json:"reference"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Gateway is the payment provider integration.
type Gateway interface {
	// Name returns the provider name (e.g. "mock", "paystack").
	Name() string

	// Initialize registers a pending charge with the provider.
	Initialize(ctx context.Context, req *IntentRequest) (*InitResult, error)

	// Verify fetches the provider's current view of the charge. A charge
	// that has not succeeded yet is a valid result, not an error; errors
	// mean the provider could not be asked.
	Verify(ctx context.Context, reference string) (*VerifyResult, error)

	// CheckoutParams builds the hosted-widget configuration for an intent.
	CheckoutParams(ctx context.Context, intent *domain.PaymentIntent) (*Params, error)
}
