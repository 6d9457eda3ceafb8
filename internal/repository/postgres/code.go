package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	"github.com/Emperor1p/nclexkeysinternational/pkg/database"
	apperrors "github.com/Emperor1p/nclexkeysinternational/pkg/errors"
)

// CodeRepository implements repository.CodeRepository using PostgreSQL.
type CodeRepository struct {
	pool database.DBTX
}

// NewCodeRepository creates a new PostgreSQL-backed registration code
// repository.
func NewCodeRepository(pool database.DBTX) *CodeRepository {
	return &CodeRepository{pool: pool}
}

const codeColumns = `id, code, program, amount, currency, created_by, used_by, used_at, expires_at, created_at`

// CreateBatch inserts a batch of generated codes in one transaction.
func (r *CodeRepository) CreateBatch(ctx context.Context, codes []domain.RegistrationCode) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin code batch: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO registration_codes (id, code, program, amount, currency, created_by, used_by, used_at, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for i := range codes {
		c := &codes[i]
		if _, err := tx.Exec(ctx, query,
			c.ID,
			c.Code,
			c.Program,
			c.Amount,
			c.Currency,
			c.CreatedBy,
			c.UsedBy,
			c.UsedAt,
			c.ExpiresAt,
			c.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert registration code: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit code batch: %w", err)
	}

	return nil
}

// GetByCode retrieves a code by its value.
func (r *CodeRepository) GetByCode(ctx context.Context, code string) (*domain.RegistrationCode, error) {
	query := `SELECT ` + codeColumns + ` FROM registration_codes WHERE code = $1`

	var c domain.RegistrationCode
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&c.ID,
		&c.Code,
		&c.Program,
		&c.Amount,
		&c.Currency,
		&c.CreatedBy,
		&c.UsedBy,
		&c.UsedAt,
		&c.ExpiresAt,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan registration code: %w", err)
	}

	return &c, nil
}

// Redeem marks a code used. The used_by guard keeps a code single-use under
// concurrent redemption.
func (r *CodeRepository) Redeem(ctx context.Context, code, userID string) (bool, error) {
	query := `
		UPDATE registration_codes
		SET used_by = $1, used_at = $2
		WHERE code = $3 AND used_by = '' AND expires_at > $2`

	ct, err := r.pool.Exec(ctx, query, userID, time.Now().UTC(), code)
	if err != nil {
		return false, fmt.Errorf("redeem registration code: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// ReleaseRedemption hands the code back after a registration that redeemed
// it could not complete. The used_by guard means a caller can only release
// its own hold.
func (r *CodeRepository) ReleaseRedemption(ctx context.Context, code, userID string) error {
	query := `
		UPDATE registration_codes
		SET used_by = '', used_at = NULL
		WHERE code = $1 AND used_by = $2`

	if _, err := r.pool.Exec(ctx, query, code, userID); err != nil {
		return fmt.Errorf("release registration code: %w", err)
	}
	return nil
}

// ListByProgram returns codes generated for a program, newest first.
func (r *CodeRepository) ListByProgram(ctx context.Context, program string) ([]domain.RegistrationCode, error) {
	query := `SELECT ` + codeColumns + ` FROM registration_codes WHERE program = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, program)
	if err != nil {
		return nil, fmt.Errorf("list registration codes: %w", err)
	}
	defer rows.Close()

	var codes []domain.RegistrationCode
	for rows.Next() {
		var c domain.RegistrationCode
		if err := rows.Scan(
			&c.ID,
			&c.Code,
			&c.Program,
			&c.Amount,
			&c.Currency,
			&c.CreatedBy,
			&c.UsedBy,
			&c.UsedAt,
			&c.ExpiresAt,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan registration code row: %w", err)
		}
		codes = append(codes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registration code rows: %w", err)
	}

	if codes == nil {
		codes = []domain.RegistrationCode{}
	}

	return codes, nil
}
