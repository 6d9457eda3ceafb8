package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	"github.com/Emperor1p/nclexkeysinternational/pkg/database"
	apperrors "github.com/Emperor1p/nclexkeysinternational/pkg/errors"
)

func sampleUser() *domain.User {
	return &domain.User{
		ID:            "usr-001",
		Email:         "a@b.com",
		PasswordHash:  "$2a$04$hash",
		FirstName:     "Ada",
		LastName:      "Obi",
		Phone:         "+2348000000000",
		Role:          domain.RoleStudent,
		IsActive:      true,
		EmailVerified: false,
		PlanID:        "nigeria",
		PaymentReference: "ref_1",
		CreatedAt:     time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
	}
}

var userTestColumns = []string{
	"id", "email", "password_hash", "first_name", "last_name", "phone", "role", "is_active",
	"email_verified", "failed_logins", "locked_until", "two_factor_enabled", "two_factor_secret",
	"plan_id", "payment_reference", "created_at", "updated_at",
}

func userRow(u *domain.User) *pgxmock.Rows {
	return pgxmock.NewRows(userTestColumns).AddRow(
		u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, u.Role, u.IsActive,
		u.EmailVerified, u.FailedLogins, u.LockedUntil, u.TwoFactorEnabled, u.TwoFactorSecret,
		u.PlanID, u.PaymentReference, u.CreatedAt, u.UpdatedAt,
	)
}

func TestUserRepository_Create(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepository(mock)
	u := sampleUser()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(
			u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, u.Role, u.IsActive,
			u.EmailVerified, u.FailedLogins, u.LockedUntil, u.TwoFactorEnabled, u.TwoFactorSecret,
			u.PlanID, u.PaymentReference, u.CreatedAt, u.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), u)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByEmail(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepository(mock)
	u := sampleUser()

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
		WithArgs(u.Email).
		WillReturnRows(userRow(u))

	got, err := repo.GetByEmail(context.Background(), u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "ref_1", got.PaymentReference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
		WithArgs("missing").
		WillReturnError(errors.New("no rows in result set"))

	_, err = repo.GetByID(context.Background(), "missing")
	assert.Error(t, err)
}

func TestUserRepository_Update_NotFound(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepository(mock)
	u := sampleUser()

	mock.ExpectExec("UPDATE users").
		WithArgs(
			u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone,
			u.Role, u.IsActive, u.EmailVerified, u.TwoFactorEnabled,
			u.TwoFactorSecret, u.PlanID, u.PaymentReference, pgxmock.AnyArg(), u.ID,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.Update(context.Background(), u)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_RecordFailedLogin(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepository(mock)
	lockUntil := time.Now().UTC().Add(15 * time.Minute)

	mock.ExpectExec("UPDATE users").
		WithArgs(&lockUntil, pgxmock.AnyArg(), "usr-001").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.RecordFailedLogin(context.Background(), "usr-001", &lockUntil)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
