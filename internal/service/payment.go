package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	"github.com/Emperor1p/nclexkeysinternational/internal/event"
	"github.com/Emperor1p/nclexkeysinternational/internal/gateway"
	"github.com/Emperor1p/nclexkeysinternational/internal/repository"
	apperrors "github.com/Emperor1p/nclexkeysinternational/pkg/errors"
)

// PaymentService implements payment intent lifecycle operations. The intent
// table is the source of truth; the gateway is only ever consulted, never
// trusted to push state backwards.
type PaymentService struct {
	intentRepo repository.PaymentIntentRepository
	gateway    gateway.Gateway
	producer   *event.Producer
	logger     *slog.Logger
}

// NewPaymentService creates a new payment service.
func NewPaymentService(
	intentRepo repository.PaymentIntentRepository,
	gw gateway.Gateway,
	producer *event.Producer,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		intentRepo: intentRepo,
		gateway:    gw,
		producer:   producer,
		logger:     logger,
	}
}

// InitializePaymentInput holds the parameters for starting a payment.
type InitializePaymentInput struct {
	PlanID   string
	Email    string
	FullName string
	Phone    string
}

// InitializePaymentResult pairs the persisted intent with the gateway's
// redirect data.
type InitializePaymentResult struct {
	Intent           *domain.PaymentIntent
	AuthorizationURL string
	AccessCode       string
}

// InitializePayment validates the plan, registers the charge with the
// gateway under a server-issued reference, and persists the pending intent.
// A gateway failure aborts before anything is persisted or redirected to.
func (s *PaymentService) InitializePayment(ctx context.Context, input InitializePaymentInput) (*InitializePaymentResult, error) {
	if input.Email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}

	plan, ok := domain.PlanByID(input.PlanID)
	if !ok {
		return nil, apperrors.InvalidInput("unknown plan: " + input.PlanID)
	}

	reference := newReference()
	init, err := s.gateway.Initialize(ctx, &gateway.IntentRequest{
		Reference: reference,
		Email:     input.Email,
		FullName:  input.FullName,
		Phone:     input.Phone,
		Amount:    plan.Amount,
		Currency:  plan.Currency,
		PlanID:    plan.ID,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "gateway initialize failed",
			slog.String("plan_id", plan.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	if init.Reference != "" {
		reference = init.Reference
	}

	now := time.Now().UTC()
	intent := &domain.PaymentIntent{
		ID:        uuid.New().String(),
		Reference: reference,
		PlanID:    plan.ID,
		Amount:    plan.Amount,
		Currency:  plan.Currency,
		Status:    domain.PaymentPending,
		Gateway:   s.gateway.Name(),
		Email:     input.Email,
		FullName:  input.FullName,
		Phone:     input.Phone,
		GatewayMetadata: map[string]string{
			"access_code": init.AccessCode,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.intentRepo.Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	s.logger.InfoContext(ctx, "payment initialized",
		slog.String("reference", reference),
		slog.String("plan_id", plan.ID),
		slog.Int64("amount", plan.Amount),
		slog.String("currency", plan.Currency),
	)

	return &InitializePaymentResult{
		Intent:           intent,
		AuthorizationURL: init.AuthorizationURL,
		AccessCode:       init.AccessCode,
	}, nil
}

// VerifyPayment asks the gateway for the charge outcome and applies it
// forward-only. Verifying an already-terminal intent never calls the gateway
// and returns the stored state, which is what makes deep-link re-entry
// idempotent. A still-pending charge comes back as a pending intent, not an
// error.
func (s *PaymentService) VerifyPayment(ctx context.Context, reference string) (*domain.PaymentIntent, error) {
	intent, err := s.intentRepo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	if intent.Status.Terminal() {
		return intent, nil
	}

	result, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("verify with gateway: %w", err)
	}

	switch result.Status {
	case gateway.StatusCompleted:
		if result.Amount != intent.MinorAmount() || !strings.EqualFold(result.Currency, intent.Currency) {
			s.logger.ErrorContext(ctx, "gateway amount mismatch",
				slog.String("reference", reference),
				slog.Int64("expected_minor", intent.MinorAmount()),
				slog.Int64("got_minor", result.Amount),
				slog.String("expected_currency", intent.Currency),
				slog.String("got_currency", result.Currency),
			)
			return s.applyOutcome(ctx, intent, domain.PaymentFailed, nil)
		}
		paidAt := result.PaidAt
		if paidAt == nil {
			now := time.Now().UTC()
			paidAt = &now
		}
		return s.applyOutcome(ctx, intent, domain.PaymentCompleted, paidAt)

	case gateway.StatusFailed:
		return s.applyOutcome(ctx, intent, domain.PaymentFailed, nil)

	default:
		// Still pending or abandoned at the gateway. Nothing moves.
		return intent, nil
	}
}

// GetByReference returns the stored intent for a reference.
func (s *PaymentService) GetByReference(ctx context.Context, reference string) (*domain.PaymentIntent, error) {
	intent, err := s.intentRepo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	return intent, nil
}

// CheckoutParams returns the hosted-widget configuration for an intent.
func (s *PaymentService) CheckoutParams(ctx context.Context, reference string) (*gateway.Params, error) {
	intent, err := s.intentRepo.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if intent.Status != domain.PaymentPending {
		return nil, apperrors.Conflict("payment is already " + string(intent.Status))
	}
	return s.gateway.CheckoutParams(ctx, intent)
}

// ApplyGatewayOutcome applies a provider-pushed outcome (webhook) to an
// intent. The forward-only guard makes replayed webhooks no-ops.
func (s *PaymentService) ApplyGatewayOutcome(ctx context.Context, reference, status string, paidAt *time.Time) error {
	intent, err := s.intentRepo.GetByReference(ctx, reference)
	if err != nil {
		return err
	}

	if intent.Status.Terminal() {
		return nil
	}

	switch status {
	case gateway.StatusCompleted:
		if paidAt == nil {
			now := time.Now().UTC()
			paidAt = &now
		}
		_, err = s.applyOutcome(ctx, intent, domain.PaymentCompleted, paidAt)
	case gateway.StatusFailed:
		_, err = s.applyOutcome(ctx, intent, domain.PaymentFailed, nil)
	default:
		return nil
	}
	return err
}

// applyOutcome moves the intent to a terminal status and publishes the
// matching event. Losing the forward-only race means another caller already
// applied an outcome; the stored row wins.
func (s *PaymentService) applyOutcome(ctx context.Context, intent *domain.PaymentIntent, to domain.PaymentIntentStatus, paidAt *time.Time) (*domain.PaymentIntent, error) {
	moved, err := s.intentRepo.UpdateStatus(ctx, intent.Reference, intent.Status, to, paidAt)
	if err != nil {
		return nil, fmt.Errorf("update intent status: %w", err)
	}

	if !moved {
		current, err := s.intentRepo.GetByReference(ctx, intent.Reference)
		if err != nil {
			return nil, err
		}
		return current, nil
	}

	intent.Status = to
	intent.PaidAt = paidAt

	var publishErr error
	if to == domain.PaymentCompleted {
		publishErr = s.producer.PublishPaymentCompleted(ctx, intent)
	} else {
		publishErr = s.producer.PublishPaymentFailed(ctx, intent)
	}
	if publishErr != nil {
		s.logger.ErrorContext(ctx, "failed to publish payment event",
			slog.String("reference", intent.Reference),
			slog.String("status", string(to)),
			slog.String("error", publishErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "payment intent updated",
		slog.String("reference", intent.Reference),
		slog.String("status", string(to)),
	)

	return intent, nil
}

// newReference issues a server-side payment reference. Clients never invent
// references.
func newReference() string {
	return "nclex_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}
