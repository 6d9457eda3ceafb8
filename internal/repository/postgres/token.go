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

// RefreshTokenRepository implements repository.RefreshTokenRepository using
// PostgreSQL.
type RefreshTokenRepository struct {
	pool database.DBTX
}

// NewRefreshTokenRepository creates a new PostgreSQL-backed refresh token
// repository.
func NewRefreshTokenRepository(pool database.DBTX) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: pool}
}

// Create stores a new refresh token record.
func (r *RefreshTokenRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		t.ID,
		t.UserID,
		t.TokenHash,
		t.ExpiresAt,
		t.CreatedAt,
		t.RevokedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// GetByID retrieves a token record by its ID.
func (r *RefreshTokenRepository) GetByID(ctx context.Context, id string) (*domain.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, created_at, revoked_at
		FROM refresh_tokens
		WHERE id = $1`

	var t domain.RefreshToken
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&t.ExpiresAt,
		&t.CreatedAt,
		&t.RevokedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	return &t, nil
}

// Revoke marks a token revoked. Already-revoked tokens are left untouched.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, id string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $1
		WHERE id = $2 AND revoked_at IS NULL`

	_, err := r.pool.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	return nil
}

// RevokeAllForUser revokes every live token for a user.
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $1
		WHERE user_id = $2 AND revoked_at IS NULL`

	_, err := r.pool.Exec(ctx, query, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("revoke refresh tokens for user: %w", err)
	}

	return nil
}

// EmailTokenRepository implements repository.EmailTokenRepository using
// PostgreSQL.
type EmailTokenRepository struct {
	pool database.DBTX
}

// NewEmailTokenRepository creates a new PostgreSQL-backed email token
// repository.
func NewEmailTokenRepository(pool database.DBTX) *EmailTokenRepository {
	return &EmailTokenRepository{pool: pool}
}

// Create stores a new email token.
func (r *EmailTokenRepository) Create(ctx context.Context, t *domain.EmailToken) error {
	query := `
		INSERT INTO email_tokens (id, user_id, token_hash, purpose, expires_at, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		t.ID,
		t.UserID,
		t.TokenHash,
		t.Purpose,
		t.ExpiresAt,
		t.UsedAt,
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert email token: %w", err)
	}

	return nil
}

// GetByHash retrieves a token by its hash and purpose.
func (r *EmailTokenRepository) GetByHash(ctx context.Context, hash, purpose string) (*domain.EmailToken, error) {
	query := `
		SELECT id, user_id, token_hash, purpose, expires_at, used_at, created_at
		FROM email_tokens
		WHERE token_hash = $1 AND purpose = $2`

	var t domain.EmailToken
	err := r.pool.QueryRow(ctx, query, hash, purpose).Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&t.Purpose,
		&t.ExpiresAt,
		&t.UsedAt,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan email token: %w", err)
	}

	return &t, nil
}

// MarkUsed records the token as consumed.
func (r *EmailTokenRepository) MarkUsed(ctx context.Context, id string) error {
	query := `
		UPDATE email_tokens
		SET used_at = $1
		WHERE id = $2 AND used_at IS NULL`

	ct, err := r.pool.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark email token used: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.Gone("token already used")
	}

	return nil
}
