package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Emperor1p/nclexkeysinternational/internal/event"
	pkgkafka "github.com/Emperor1p/nclexkeysinternational/pkg/kafka"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *captureMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

func newTestNotifier(mailer Mailer) *Notifier {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(mailer, pkgkafka.NewMemoryIdempotencyStore(time.Hour), logger)
}

func mustEvent(t *testing.T, eventType string, data any) *pkgkafka.Event {
	t.Helper()
	e, err := pkgkafka.NewEvent(eventType, "agg-1", "user", event.SourceEnrollmentPlatform, data)
	require.NoError(t, err)
	return e
}

func TestNotifier_EmailVerification(t *testing.T) {
	mailer := &captureMailer{}
	n := newTestNotifier(mailer)

	e := mustEvent(t, event.TopicUserEmailVerification, event.EmailTokenData{
		UserID:   "usr-001",
		Email:    "a@b.com",
		FullName: "Ada Obi",
		Token:    "tok_123",
	})

	require.NoError(t, n.Handle(context.Background(), e))

	sent := mailer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "a@b.com", sent[0].To)
	assert.Equal(t, "Verify your email address", sent[0].Subject)
	assert.Contains(t, sent[0].Body, "tok_123")
}

func TestNotifier_PaymentReceipt(t *testing.T) {
	mailer := &captureMailer{}
	n := newTestNotifier(mailer)

	e := mustEvent(t, event.TopicPaymentCompleted, event.PaymentEventData{
		Reference: "nclex_abc",
		PlanID:    "nigeria",
		Amount:    30000,
		Currency:  "NGN",
		Email:     "a@b.com",
	})

	require.NoError(t, n.Handle(context.Background(), e))

	sent := mailer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Payment received", sent[0].Subject)
	assert.Contains(t, sent[0].Body, "30000 NGN")
	assert.Contains(t, sent[0].Body, "nclex_abc")
}

func TestNotifier_DuplicateDeliverySendsOnce(t *testing.T) {
	mailer := &captureMailer{}
	n := newTestNotifier(mailer)

	e := mustEvent(t, event.TopicUserRegistered, event.UserRegisteredData{
		UserID: "usr-001", Email: "a@b.com", FullName: "Ada Obi", PlanID: "nigeria",
	})

	require.NoError(t, n.Handle(context.Background(), e))
	require.NoError(t, n.Handle(context.Background(), e))

	assert.Len(t, mailer.messages(), 1)
}

func TestNotifier_UnhandledTopicCommitsWithoutSend(t *testing.T) {
	mailer := &captureMailer{}
	n := newTestNotifier(mailer)

	e := mustEvent(t, event.TopicEnrollmentFailed, event.EnrollmentEventData{FlowID: "flow-1"})

	require.NoError(t, n.Handle(context.Background(), e))
	assert.Empty(t, mailer.messages())
}

func TestNotifier_SendFailureSurfacesForRetry(t *testing.T) {
	mailer := &captureMailer{err: errors.New("smtp down")}
	n := newTestNotifier(mailer)

	e := mustEvent(t, event.TopicUserRegistered, event.UserRegisteredData{
		UserID: "usr-001", Email: "a@b.com",
	})

	err := n.Handle(context.Background(), e)
	require.Error(t, err)

	// The failed event was not recorded as processed, so a retry still
	// attempts the send.
	mailer.err = nil
	require.NoError(t, n.Handle(context.Background(), e))
	assert.Len(t, mailer.messages(), 1)
}
