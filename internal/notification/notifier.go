package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Emperor1p/nclexkeysinternational/internal/event"
	pkgkafka "github.com/Emperor1p/nclexkeysinternational/pkg/kafka"
)

// Message is a rendered notification addressed to a single recipient.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of delivering them. It stands
// in until an SMTP or provider-backed mailer is configured.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a log-backed mailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs the message and reports success.
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "notification email",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}

// Notifier consumes user and payment events and mails the affected account.
// Events are deduplicated by event ID, so a redelivered message never sends
// a second email.
type Notifier struct {
	mailer Mailer
	seen   pkgkafka.IdempotencyStore
	logger *slog.Logger
}

// New creates a notifier over the given mailer and idempotency store.
func New(mailer Mailer, seen pkgkafka.IdempotencyStore, logger *slog.Logger) *Notifier {
	return &Notifier{
		mailer: mailer,
		seen:   seen,
		logger: logger,
	}
}

// Topics returns the topics the notifier subscribes to.
func Topics() []string {
	return []string{
		event.TopicUserRegistered,
		event.TopicUserEmailVerification,
		event.TopicUserPasswordReset,
		event.TopicPaymentCompleted,
	}
}

// Handle processes one event. A send failure is returned so the consumer's
// retry and dead-letter path take over; events on topics the notifier does
// not render are committed without a send.
func (n *Notifier) Handle(ctx context.Context, e *pkgkafka.Event) error {
	processed, err := n.seen.Contains(ctx, e.EventID)
	if err != nil {
		return fmt.Errorf("check event %s: %w", e.EventID, err)
	}
	if processed {
		n.logger.DebugContext(ctx, "skipping duplicate event",
			slog.String("event_id", e.EventID),
			slog.String("event_type", e.EventType),
		)
		return nil
	}

	msg, err := n.render(ctx, e)
	if err != nil {
		return err
	}
	if msg != nil {
		if err := n.mailer.Send(ctx, *msg); err != nil {
			return fmt.Errorf("send %s notification: %w", e.EventType, err)
		}
	}

	if err := n.seen.Add(ctx, e.EventID); err != nil {
		n.logger.ErrorContext(ctx, "failed to record processed event",
			slog.String("event_id", e.EventID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

func (n *Notifier) render(ctx context.Context, e *pkgkafka.Event) (*Message, error) {
	switch e.EventType {
	case event.TopicUserRegistered:
		var data event.UserRegisteredData
		if err := e.UnmarshalData(&data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.EventType, err)
		}
		return &Message{
			To:      data.Email,
			Subject: "Welcome to NCLEX Keys International",
			Body: fmt.Sprintf("Hi %s,\n\nYour account is ready. Your program: %s.\n",
				data.FullName, data.PlanID),
		}, nil

	case event.TopicUserEmailVerification:
		var data event.EmailTokenData
		if err := e.UnmarshalData(&data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.EventType, err)
		}
		return &Message{
			To:      data.Email,
			Subject: "Verify your email address",
			Body: fmt.Sprintf("Hi %s,\n\nUse this token to verify your email: %s\nIt expires at %s.\n",
				data.FullName, data.Token, data.ExpiresAt),
		}, nil

	case event.TopicUserPasswordReset:
		var data event.EmailTokenData
		if err := e.UnmarshalData(&data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.EventType, err)
		}
		return &Message{
			To:      data.Email,
			Subject: "Reset your password",
			Body: fmt.Sprintf("Hi %s,\n\nUse this token to reset your password: %s\nIt expires at %s.\nIf you did not request this, ignore this email.\n",
				data.FullName, data.Token, data.ExpiresAt),
		}, nil

	case event.TopicPaymentCompleted:
		var data event.PaymentEventData
		if err := e.UnmarshalData(&data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.EventType, err)
		}
		return &Message{
			To:      data.Email,
			Subject: "Payment received",
			Body: fmt.Sprintf("We received your payment of %d %s for the %s program.\nReference: %s\n",
				data.Amount, data.Currency, data.PlanID, data.Reference),
		}, nil

	default:
		n.logger.DebugContext(ctx, "no notification for event type",
			slog.String("event_type", e.EventType),
		)
		return nil, nil
	}
}
