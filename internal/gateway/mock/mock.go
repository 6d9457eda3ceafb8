package mock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	"github.com/Emperor1p/nclexkeysinternational/internal/gateway"
)

// Gateway is a mock payment gateway for development and tests. The outcome
// of Verify is configurable per reference; unknown references verify as
// pending.
type Gateway struct {
	mu       sync.Mutex
	outcomes map[string]string
	charges  map[string]chargeRecord
	defaults string
}

type chargeRecord struct {
	amount   int64
	currency string
}

// New creates a mock gateway whose charges verify as completed by default.
func New() *Gateway {
	return &Gateway{
		outcomes: make(map[string]string),
		charges:  make(map[string]chargeRecord),
		defaults: gateway.StatusCompleted,
	}
}

// SetDefaultOutcome changes the verify outcome for references without an
// explicit override.
func (g *Gateway) SetDefaultOutcome(status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.defaults = status
}

// SetOutcome fixes the verify outcome for one reference.
func (g *Gateway) SetOutcome(reference, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outcomes[reference] = status
}

// Name returns the provider name.
func (g *Gateway) Name() string {
	return "mock"
}

// Initialize returns a fake authorization URL for the given reference.
func (g *Gateway) Initialize(_ context.Context, req *gateway.IntentRequest) (*gateway.InitResult, error) {
	reference := req.Reference
	if reference == "" {
		reference = "mock_" + uuid.New().String()
	}

	g.mu.Lock()
	g.charges[reference] = chargeRecord{amount: req.Amount * 100, currency: req.Currency}
	g.mu.Unlock()

	return &gateway.InitResult{
		Reference:        reference,
		AuthorizationURL: "https://checkout.mock.local/" + reference,
		AccessCode:       "mock_access_" + reference,
	}, nil
}

// Verify reports the configured outcome for the reference.
func (g *Gateway) Verify(_ context.Context, reference string) (*gateway.VerifyResult, error) {
	g.mu.Lock()
	status, ok := g.outcomes[reference]
	if !ok {
		status = g.defaults
	}
	charge := g.charges[reference]
	g.mu.Unlock()

	result := &gateway.VerifyResult{
		Status:   status,
		Amount:   charge.amount,
		Currency: charge.currency,
		Channel:  "card",
	}
	if status == gateway.StatusCompleted {
		now := time.Now().UTC()
		result.PaidAt = &now
	}
	return result, nil
}

// CheckoutParams builds widget parameters with a test public key.
func (g *Gateway) CheckoutParams(_ context.Context, intent *domain.PaymentIntent) (*gateway.Params, error) {
	return &gateway.Params{
		PublicKey: "pk_test_mock",
		Email:     intent.Email,
		Amount:    intent.Amount * 100,
		Currency:  intent.Currency,
		Reference: intent.Reference,
	}, nil
}
