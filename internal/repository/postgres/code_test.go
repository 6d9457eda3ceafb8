package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	"github.com/Emperor1p/nclexkeysinternational/pkg/database"
)

func TestCodeRepository_CreateBatch(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCodeRepository(mock)
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	codes := []domain.RegistrationCode{
		{ID: "rc-1", Code: "NCLEX-AAAA", Program: "nigeria", Amount: 30000, Currency: "NGN", CreatedBy: "adm-1", ExpiresAt: now.Add(domain.CodeValidity), CreatedAt: now},
		{ID: "rc-2", Code: "NCLEX-BBBB", Program: "nigeria", Amount: 30000, Currency: "NGN", CreatedBy: "adm-1", ExpiresAt: now.Add(domain.CodeValidity), CreatedAt: now},
	}

	mock.ExpectBegin()
	for _, c := range codes {
		mock.ExpectExec("INSERT INTO registration_codes").
			WithArgs(c.ID, c.Code, c.Program, c.Amount, c.Currency, c.CreatedBy, c.UsedBy, c.UsedAt, c.ExpiresAt, c.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	assert.NoError(t, repo.CreateBatch(context.Background(), codes))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCodeRepository_Redeem_SingleUse(t *testing.T) {
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCodeRepository(mock)

	mock.ExpectExec("UPDATE registration_codes").
		WithArgs("usr-001", pgxmock.AnyArg(), "NCLEX-AAAA").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.Redeem(context.Background(), "NCLEX-AAAA", "usr-001")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec("UPDATE registration_codes").
		WithArgs("usr-002", pgxmock.AnyArg(), "NCLEX-AAAA").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err = repo.Redeem(context.Background(), "NCLEX-AAAA", "usr-002")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
