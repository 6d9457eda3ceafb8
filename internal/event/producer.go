package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	pkgkafka "github.com/Emperor1p/nclexkeysinternational/pkg/kafka"
)

// Kafka topics for enrollment platform domain events.
var (
	TopicUserRegistered        = pkgkafka.Topic("user", "registered")
	TopicUserPasswordReset     = pkgkafka.Topic("user", "password_reset")
	TopicUserEmailVerification = pkgkafka.Topic("user", "email_verification")
	TopicPaymentCompleted      = pkgkafka.Topic("payment", "completed")
	TopicPaymentFailed         = pkgkafka.Topic("payment", "failed")
	TopicEnrollmentActivated   = pkgkafka.Topic("enrollment", "activated")
	TopicEnrollmentFailed      = pkgkafka.Topic("enrollment", "failed")
)

// Aggregate type constants.
const (
	AggregateTypeUser       = "user"
	AggregateTypePayment    = "payment"
	AggregateTypeEnrollment = "enrollment"
)

// Source identifier for events originating from this service.
const SourceEnrollmentPlatform = "nclex-enrollment"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	Role      string `json:"role"`
	PlanID    string `json:"plan_id,omitempty"`
	Reference string `json:"payment_reference,omitempty"`
}

// EmailTokenData is the payload for password reset and email verification
// events. The notification consumer turns it into an email.
type EmailTokenData struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// PaymentEventData is the payload for payment.completed and payment.failed
// events.
type PaymentEventData struct {
	Reference string `json:"reference"`
	PlanID    string `json:"plan_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Email     string `json:"email"`
	Gateway   string `json:"gateway"`
	Status    string `json:"status"`
}

// EnrollmentEventData is the payload for enrollment.activated and
// enrollment.failed events.
type EnrollmentEventData struct {
	FlowID    string `json:"flow_id"`
	UserID    string `json:"user_id,omitempty"`
	Email     string `json:"email"`
	PlanID    string `json:"plan_id"`
	Reference string `json:"payment_reference,omitempty"`
	Failure   string `json:"failure,omitempty"`
}

// Producer publishes enrollment platform domain events to Kafka. Publishing
// is best-effort from the caller's point of view: services log publish
// failures and carry on, because no user-facing operation depends on the bus.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		UserID:    user.ID,
		Email:     user.Email,
		FullName:  user.FullName(),
		Role:      user.Role,
		PlanID:    user.PlanID,
		Reference: user.PaymentReference,
	}

	return p.publish(ctx, TopicUserRegistered, user.ID, AggregateTypeUser, data)
}

// PublishPasswordReset publishes a user.password_reset event carrying the
// reset token for the notification consumer.
func (p *Producer) PublishPasswordReset(ctx context.Context, user *domain.User, token string, expiresAt string) error {
	data := EmailTokenData{
		UserID:    user.ID,
		Email:     user.Email,
		FullName:  user.FullName(),
		Token:     token,
		ExpiresAt: expiresAt,
	}

	return p.publish(ctx, TopicUserPasswordReset, user.ID, AggregateTypeUser, data)
}

// PublishEmailVerification publishes a user.email_verification event.
func (p *Producer) PublishEmailVerification(ctx context.Context, user *domain.User, token string, expiresAt string) error {
	data := EmailTokenData{
		UserID:    user.ID,
		Email:     user.Email,
		FullName:  user.FullName(),
		Token:     token,
		ExpiresAt: expiresAt,
	}

	return p.publish(ctx, TopicUserEmailVerification, user.ID, AggregateTypeUser, data)
}

// PublishPaymentCompleted publishes a payment.completed event.
func (p *Producer) PublishPaymentCompleted(ctx context.Context, intent *domain.PaymentIntent) error {
	return p.publish(ctx, TopicPaymentCompleted, intent.Reference, AggregateTypePayment, paymentData(intent))
}

// PublishPaymentFailed publishes a payment.failed event.
func (p *Producer) PublishPaymentFailed(ctx context.Context, intent *domain.PaymentIntent) error {
	return p.publish(ctx, TopicPaymentFailed, intent.Reference, AggregateTypePayment, paymentData(intent))
}

// PublishEnrollmentActivated publishes an enrollment.activated event.
func (p *Producer) PublishEnrollmentActivated(ctx context.Context, flow *domain.EnrollmentFlow) error {
	return p.publish(ctx, TopicEnrollmentActivated, flow.ID, AggregateTypeEnrollment, enrollmentData(flow))
}

// PublishEnrollmentFailed publishes an enrollment.failed event.
func (p *Producer) PublishEnrollmentFailed(ctx context.Context, flow *domain.EnrollmentFlow) error {
	return p.publish(ctx, TopicEnrollmentFailed, flow.ID, AggregateTypeEnrollment, enrollmentData(flow))
}

func paymentData(intent *domain.PaymentIntent) PaymentEventData {
	return PaymentEventData{
		Reference: intent.Reference,
		PlanID:    intent.PlanID,
		Amount:    intent.Amount,
		Currency:  intent.Currency,
		Email:     intent.Email,
		Gateway:   intent.Gateway,
		Status:    string(intent.Status),
	}
}

func enrollmentData(flow *domain.EnrollmentFlow) EnrollmentEventData {
	return EnrollmentEventData{
		FlowID:    flow.ID,
		UserID:    flow.UserID,
		Email:     flow.Draft.Email,
		PlanID:    flow.PlanID,
		Reference: flow.PaymentReference,
		Failure:   string(flow.Failure),
	}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	// A nil producer publishes nothing.
	if p == nil || p.kafka == nil {
		return nil
	}

	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceEnrollmentPlatform, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)

	return nil
}
