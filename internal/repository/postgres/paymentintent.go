package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	"github.com/Emperor1p/nclexkeysinternational/pkg/database"
	apperrors "github.com/Emperor1p/nclexkeysinternational/pkg/errors"
)

// PaymentIntentRepository implements repository.PaymentIntentRepository
// using PostgreSQL.
type PaymentIntentRepository struct {
	pool database.DBTX
}

// NewPaymentIntentRepository creates a new PostgreSQL-backed payment intent
// repository.
func NewPaymentIntentRepository(pool database.DBTX) *PaymentIntentRepository {
	return &PaymentIntentRepository{pool: pool}
}

// Create inserts a new pending intent.
func (r *PaymentIntentRepository) Create(ctx context.Context, p *domain.PaymentIntent) error {
	metadataJSON, err := json.Marshal(p.GatewayMetadata)
	if err != nil {
		return fmt.Errorf("marshal gateway metadata: %w", err)
	}

	query := `
		INSERT INTO payment_intents (id, reference, plan_id, amount, currency, status, gateway,
			email, full_name, phone, consumed_by_user_id, gateway_metadata, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = r.pool.Exec(ctx, query,
		p.ID,
		p.Reference,
		p.PlanID,
		p.Amount,
		p.Currency,
		p.Status,
		p.Gateway,
		p.Email,
		p.FullName,
		p.Phone,
		p.ConsumedByUserID,
		metadataJSON,
		p.PaidAt,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment intent: %w", err)
	}

	return nil
}

// GetByReference retrieves an intent by its gateway reference.
func (r *PaymentIntentRepository) GetByReference(ctx context.Context, reference string) (*domain.PaymentIntent, error) {
	query := `
		SELECT id, reference, plan_id, amount, currency, status, gateway,
		       email, full_name, phone, consumed_by_user_id, gateway_metadata, paid_at, created_at, updated_at
		FROM payment_intents
		WHERE reference = $1`

	var (
		p            domain.PaymentIntent
		metadataJSON []byte
	)

	err := r.pool.QueryRow(ctx, query, reference).Scan(
		&p.ID,
		&p.Reference,
		&p.PlanID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.Gateway,
		&p.Email,
		&p.FullName,
		&p.Phone,
		&p.ConsumedByUserID,
		&metadataJSON,
		&p.PaidAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan payment intent: %w", err)
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &p.GatewayMetadata); err != nil {
			return nil, fmt.Errorf("unmarshal gateway metadata: %w", err)
		}
	}

	return &p, nil
}

// UpdateStatus moves an intent from one status to another. The WHERE clause
// carries the expected current status, which is what makes the update
// forward-only and idempotent under concurrent verification: a second caller
// matches zero rows and gets moved=false.
func (r *PaymentIntentRepository) UpdateStatus(ctx context.Context, reference string, from, to domain.PaymentIntentStatus, paidAt *time.Time) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, apperrors.Conflict(fmt.Sprintf("payment intent cannot move from %s to %s", from, to))
	}

	query := `
		UPDATE payment_intents
		SET status = $1, paid_at = COALESCE($2, paid_at), updated_at = $3
		WHERE reference = $4 AND status = $5`

	ct, err := r.pool.Exec(ctx, query, to, paidAt, time.Now().UTC(), reference, from)
	if err != nil {
		return false, fmt.Errorf("update payment intent status: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// MarkConsumed records the user whose registration used the intent. The
// guard on consumed_by_user_id makes a second registration attempt against
// the same intent report false instead of double-consuming it.
func (r *PaymentIntentRepository) MarkConsumed(ctx context.Context, reference, userID string) (bool, error) {
	query := `
		UPDATE payment_intents
		SET consumed_by_user_id = $1, updated_at = $2
		WHERE reference = $3 AND status = $4 AND consumed_by_user_id = ''`

	ct, err := r.pool.Exec(ctx, query, userID, time.Now().UTC(), reference, domain.PaymentCompleted)
	if err != nil {
		return false, fmt.Errorf("mark payment intent consumed: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// ReleaseConsumption hands the intent back after a registration that
// consumed it could not complete. The consumed_by_user_id guard means a
// caller can only release its own hold.
func (r *PaymentIntentRepository) ReleaseConsumption(ctx context.Context, reference, userID string) error {
	query := `
		UPDATE payment_intents
		SET consumed_by_user_id = '', updated_at = $1
		WHERE reference = $2 AND consumed_by_user_id = $3`

	if _, err := r.pool.Exec(ctx, query, time.Now().UTC(), reference, userID); err != nil {
		return fmt.Errorf("release payment intent consumption: %w", err)
	}
	return nil
}
