package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	"github.com/Emperor1p/nclexkeysinternational/internal/event"
	"github.com/Emperor1p/nclexkeysinternational/internal/repository"
	apperrors "github.com/Emperor1p/nclexkeysinternational/pkg/errors"
)

// EnrollmentService drives the registration-to-payment flow state machine.
// The flow itself is ephemeral redis state; every durable fact (the intent,
// the account) lives behind PaymentService and UserService.
type EnrollmentService struct {
	flowRepo repository.FlowRepository
	payments *PaymentService
	users    *UserService
	producer *event.Producer
	logger   *slog.Logger
}

// NewEnrollmentService creates a new enrollment service.
func NewEnrollmentService(
	flowRepo repository.FlowRepository,
	payments *PaymentService,
	users *UserService,
	producer *event.Producer,
	logger *slog.Logger,
) *EnrollmentService {
	return &EnrollmentService{
		flowRepo: flowRepo,
		payments: payments,
		users:    users,
		producer: producer,
		logger:   logger,
	}
}

// ActivationResult is the outcome of VerifyAndActivate. Tokens are only set
// when this call performed the registration; a converged re-verify returns
// the activated flow without a fresh session.
type ActivationResult struct {
	Flow   *domain.EnrollmentFlow
	User   *domain.User
	Tokens *domain.TokenPair
}

// StartFlow validates the account draft and opens (or updates) a flow. A
// draft that fails validation keeps the flow in drafting_account with every
// entered field preserved, so the prospect never retypes the form.
func (s *EnrollmentService) StartFlow(ctx context.Context, flowID string, draft domain.AccountDraft) (*domain.EnrollmentFlow, error) {
	now := time.Now().UTC()

	flow, err := s.loadOrCreateFlow(ctx, flowID, now)
	if err != nil {
		return nil, err
	}
	if flow.State != domain.FlowDraftingAccount {
		return flow, apperrors.Conflict("account details are already collected for this flow")
	}

	flow.Draft = draft
	flow.UpdatedAt = now

	if validationErr := validateDraft(draft); validationErr != nil {
		if err := s.flowRepo.Save(ctx, flow); err != nil {
			return nil, fmt.Errorf("save flow: %w", err)
		}
		return flow, validationErr
	}

	flow.State = domain.FlowSelectingPlan
	if err := s.flowRepo.Save(ctx, flow); err != nil {
		return nil, fmt.Errorf("save flow: %w", err)
	}

	s.logger.InfoContext(ctx, "enrollment flow started",
		slog.String("flow_id", flow.ID),
		slog.String("email", draft.Email),
	)

	return flow, nil
}

// SelectPlan records the chosen plan. Once payment has been initiated the
// plan is frozen; changing it requires discarding the flow and starting
// over.
func (s *EnrollmentService) SelectPlan(ctx context.Context, flowID, planID string) (*domain.EnrollmentFlow, error) {
	flow, err := s.getFlow(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if flow.PlanLocked() {
		return flow, apperrors.Conflict("plan cannot change after payment is initiated; discard the flow to start over")
	}
	if flow.State != domain.FlowSelectingPlan {
		return flow, apperrors.Conflict("account details must be collected before choosing a plan")
	}

	if _, ok := domain.PlanByID(planID); !ok {
		return flow, apperrors.InvalidInput("unknown plan: " + planID)
	}

	flow.PlanID = planID
	flow.UpdatedAt = time.Now().UTC()
	if err := s.flowRepo.Save(ctx, flow); err != nil {
		return nil, fmt.Errorf("save flow: %w", err)
	}

	return flow, nil
}

// InitiatePayment registers the charge for the chosen plan and moves the
// flow to awaiting_payment. A gateway failure leaves the flow exactly where
// it was: the state never advances on a failed initialization. Re-initiating
// after a declined charge issues a fresh reference.
func (s *EnrollmentService) InitiatePayment(ctx context.Context, flowID string) (*domain.EnrollmentFlow, *InitializePaymentResult, error) {
	flow, err := s.getFlow(ctx, flowID)
	if err != nil {
		return nil, nil, err
	}

	if flow.PlanID == "" {
		return flow, nil, apperrors.Conflict("choose a plan before paying")
	}
	if flow.State != domain.FlowAwaitingPayment && !flow.CanTransitionTo(domain.FlowAwaitingPayment) {
		return flow, nil, apperrors.Conflict("payment cannot be initiated from the current step")
	}

	result, err := s.payments.InitializePayment(ctx, InitializePaymentInput{
		PlanID:   flow.PlanID,
		Email:    flow.Draft.Email,
		FullName: flow.Draft.FullName(),
		Phone:    flow.Draft.Phone,
	})
	if err != nil {
		return flow, nil, err
	}

	flow.State = domain.FlowAwaitingPayment
	flow.PaymentReference = result.Intent.Reference
	flow.Failure = ""
	flow.UpdatedAt = time.Now().UTC()
	if err := s.flowRepo.Save(ctx, flow); err != nil {
		return nil, nil, fmt.Errorf("save flow: %w", err)
	}

	s.logger.InfoContext(ctx, "enrollment payment initiated",
		slog.String("flow_id", flow.ID),
		slog.String("reference", result.Intent.Reference),
		slog.String("plan_id", flow.PlanID),
	)

	return flow, result, nil
}

// CompleteCollection records that control returned from the hosted payment
// UI. Returning says nothing about the charge outcome; the flow only moves
// to verifying.
func (s *EnrollmentService) CompleteCollection(ctx context.Context, flowID string) (*domain.EnrollmentFlow, error) {
	flow, err := s.getFlow(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if flow.State == domain.FlowVerifying {
		return flow, nil
	}
	if !flow.CanTransitionTo(domain.FlowVerifying) {
		return flow, apperrors.Conflict("no payment is awaiting collection for this flow")
	}

	flow.State = domain.FlowVerifying
	flow.UpdatedAt = time.Now().UTC()
	if err := s.flowRepo.Save(ctx, flow); err != nil {
		return nil, fmt.Errorf("save flow: %w", err)
	}

	return flow, nil
}

// VerifyAndActivate verifies the charge and, when it completed, registers
// the drafted account against the payment reference. The flow reaches
// activated only when payment and registration both succeed. Registration
// failure after a completed payment is the orphaned-payment class: it is
// surfaced to support and never retried here. Re-entering verification for
// an already-consumed reference converges to activated without a duplicate
// registration.
func (s *EnrollmentService) VerifyAndActivate(ctx context.Context, flowID string) (*ActivationResult, error) {
	flow, err := s.getFlow(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if flow.PaymentReference == "" {
		return nil, apperrors.Conflict("no payment reference on this flow")
	}
	if flow.State == domain.FlowFailed && flow.Failure == domain.FailurePostPaymentRegistration {
		return &ActivationResult{Flow: flow}, apperrors.EnrollmentOrphaned(flow.PaymentReference)
	}
	// A flow already failed on payment is settled; repeated status-page
	// verifies return the recorded outcome without re-querying the gateway
	// or republishing the failure event. Retrying takes a new initiate.
	if flow.State == domain.FlowFailed && flow.Failure == domain.FailurePayment {
		return &ActivationResult{Flow: flow}, apperrors.PaymentFailed("payment was not successful")
	}

	intent, err := s.payments.VerifyPayment(ctx, flow.PaymentReference)
	if err != nil {
		return nil, err
	}

	switch intent.Status {
	case domain.PaymentCompleted:
		if intent.Consumed() {
			return s.converge(ctx, flow, intent.ConsumedByUserID)
		}
		return s.activate(ctx, flow)

	case domain.PaymentFailed:
		return s.failPayment(ctx, flow)

	default:
		// Charge still pending at the gateway. The flow stays where it is
		// and the caller may verify again.
		return &ActivationResult{Flow: flow}, apperrors.PaymentPending("payment has not completed yet")
	}
}

// activate registers the drafted account and finishes the flow.
func (s *EnrollmentService) activate(ctx context.Context, flow *domain.EnrollmentFlow) (*ActivationResult, error) {
	user, tokens, err := s.users.Register(ctx, RegisterInput{
		Email:            flow.Draft.Email,
		Password:         flow.Draft.Password,
		FirstName:        flow.Draft.FirstName,
		LastName:         flow.Draft.LastName,
		Phone:            flow.Draft.Phone,
		PaymentReference: flow.PaymentReference,
	})
	if err != nil {
		return s.failRegistration(ctx, flow, err)
	}

	flow.State = domain.FlowActivated
	flow.UserID = user.ID
	flow.UpdatedAt = time.Now().UTC()

	if err := s.producer.PublishEnrollmentActivated(ctx, flow); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish enrollment.activated event",
			slog.String("flow_id", flow.ID),
			slog.String("error", err.Error()),
		)
	}

	// Activation clears the ephemeral state; the account and intent carry
	// everything durable.
	if err := s.flowRepo.Delete(ctx, flow.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear activated flow",
			slog.String("flow_id", flow.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "enrollment activated",
		slog.String("flow_id", flow.ID),
		slog.String("user_id", user.ID),
		slog.String("reference", flow.PaymentReference),
	)

	return &ActivationResult{Flow: flow, User: user, Tokens: tokens}, nil
}

// converge resolves a re-verification of an already-consumed intent: the
// registration exists, so the flow is activated with no new session.
func (s *EnrollmentService) converge(ctx context.Context, flow *domain.EnrollmentFlow, userID string) (*ActivationResult, error) {
	flow.State = domain.FlowActivated
	flow.UserID = userID
	flow.UpdatedAt = time.Now().UTC()

	if err := s.flowRepo.Delete(ctx, flow.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear converged flow",
			slog.String("flow_id", flow.ID),
			slog.String("error", err.Error()),
		)
	}

	return &ActivationResult{Flow: flow}, nil
}

// failPayment marks the flow failed with the retryable payment class.
func (s *EnrollmentService) failPayment(ctx context.Context, flow *domain.EnrollmentFlow) (*ActivationResult, error) {
	flow.State = domain.FlowFailed
	flow.Failure = domain.FailurePayment
	flow.UpdatedAt = time.Now().UTC()
	if err := s.flowRepo.Save(ctx, flow); err != nil {
		return nil, fmt.Errorf("save failed flow: %w", err)
	}

	if err := s.producer.PublishEnrollmentFailed(ctx, flow); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish enrollment.failed event",
			slog.String("flow_id", flow.ID),
			slog.String("error", err.Error()),
		)
	}

	return &ActivationResult{Flow: flow}, apperrors.PaymentFailed("payment was not successful")
}

// failRegistration handles a registration error after a completed payment.
// A conflict on the reference means another registration already claimed it;
// that converges. Anything else is the orphaned class: money taken, no
// account, support resolves it.
func (s *EnrollmentService) failRegistration(ctx context.Context, flow *domain.EnrollmentFlow, regErr error) (*ActivationResult, error) {
	intent, err := s.payments.GetByReference(ctx, flow.PaymentReference)
	if err == nil && intent.Consumed() {
		return s.converge(ctx, flow, intent.ConsumedByUserID)
	}

	flow.State = domain.FlowFailed
	flow.Failure = domain.FailurePostPaymentRegistration
	flow.UpdatedAt = time.Now().UTC()
	if err := s.flowRepo.Save(ctx, flow); err != nil {
		s.logger.ErrorContext(ctx, "failed to save orphaned flow",
			slog.String("flow_id", flow.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishEnrollmentFailed(ctx, flow); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish enrollment.failed event",
			slog.String("flow_id", flow.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.ErrorContext(ctx, "registration failed after completed payment",
		slog.String("flow_id", flow.ID),
		slog.String("reference", flow.PaymentReference),
		slog.String("error", regErr.Error()),
	)

	return &ActivationResult{Flow: flow}, apperrors.EnrollmentOrphaned(flow.PaymentReference)
}

// GetFlow returns the current flow state.
func (s *EnrollmentService) GetFlow(ctx context.Context, flowID string) (*domain.EnrollmentFlow, error) {
	return s.getFlow(ctx, flowID)
}

// DiscardFlow clears the ephemeral flow state. The server-side intent, if
// one was created, stays untouched and fetchable by reference.
func (s *EnrollmentService) DiscardFlow(ctx context.Context, flowID string) error {
	if err := s.flowRepo.Delete(ctx, flowID); err != nil {
		return fmt.Errorf("discard flow: %w", err)
	}

	s.logger.InfoContext(ctx, "enrollment flow discarded",
		slog.String("flow_id", flowID),
	)

	return nil
}

func (s *EnrollmentService) getFlow(ctx context.Context, flowID string) (*domain.EnrollmentFlow, error) {
	if flowID == "" {
		return nil, apperrors.InvalidInput("flow id is required")
	}
	return s.flowRepo.Get(ctx, flowID)
}

func (s *EnrollmentService) loadOrCreateFlow(ctx context.Context, flowID string, now time.Time) (*domain.EnrollmentFlow, error) {
	if flowID != "" {
		flow, err := s.flowRepo.Get(ctx, flowID)
		if err == nil {
			return flow, nil
		}
	}
	return &domain.EnrollmentFlow{
		ID:        uuid.New().String(),
		State:     domain.FlowDraftingAccount,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// validateDraft applies the account draft rules: required fields, minimum
// password length, matching confirmation.
func validateDraft(draft domain.AccountDraft) error {
	fields := map[string]string{}
	if draft.Email == "" {
		fields["email"] = "email is required"
	}
	if draft.Password == "" {
		fields["password"] = "password is required"
	} else if len(draft.Password) < minPasswordLength {
		fields["password"] = fmt.Sprintf("password must be at least %d characters", minPasswordLength)
	}
	if draft.ConfirmPassword == "" {
		fields["confirm_password"] = "password confirmation is required"
	} else if draft.Password != draft.ConfirmPassword {
		fields["confirm_password"] = "passwords do not match"
	}

	if len(fields) > 0 {
		return &DraftValidationError{FieldErrors: fields}
	}
	return nil
}

// DraftValidationError carries per-field messages for a rejected account
// draft.
type DraftValidationError struct {
	FieldErrors map[string]string
}

func (e *DraftValidationError) Error() string {
	return "account draft validation failed"
}
