package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	apperrors "github.com/Emperor1p/nclexkeysinternational/pkg/errors"
)

var codeFormat = regexp.MustCompile(`^NCLEX-[A-Z2-9]{4}-[A-Z2-9]{4}$`)

func newTestCodeService(repo *mockCodeRepo) *CodeService {
	return &CodeService{
		codeRepo: repo,
		logger:   newTestLogger(),
	}
}

func TestGenerateCodes(t *testing.T) {
	repo := new(mockCodeRepo)
	svc := newTestCodeService(repo)

	repo.On("CreateBatch", mock.Anything, mock.AnythingOfType("[]domain.RegistrationCode")).Return(nil)

	codes, err := svc.GenerateCodes(context.Background(), GenerateCodesInput{
		Program:   "african",
		Count:     10,
		CreatedBy: "admin-1",
	})

	require.NoError(t, err)
	require.Len(t, codes, 10)

	seen := make(map[string]bool)
	for _, c := range codes {
		assert.Regexp(t, codeFormat, c.Code)
		assert.False(t, seen[c.Code], "duplicate code %s in batch", c.Code)
		seen[c.Code] = true

		// Codes are priced at the program's plan rate.
		assert.Equal(t, "african", c.Program)
		assert.Equal(t, int64(35000), c.Amount)
		assert.Equal(t, "NGN", c.Currency)
		assert.Equal(t, "admin-1", c.CreatedBy)
		assert.WithinDuration(t, time.Now().UTC().Add(domain.CodeValidity), c.ExpiresAt, time.Minute)
	}
	repo.AssertExpectations(t)
}

func TestGenerateCodes_CountBounds(t *testing.T) {
	repo := new(mockCodeRepo)
	svc := newTestCodeService(repo)

	_, err := svc.GenerateCodes(context.Background(), GenerateCodesInput{Program: "nigeria", Count: 0})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.GenerateCodes(context.Background(), GenerateCodesInput{Program: "nigeria", Count: domain.MaxCodesPerBatch + 1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	repo.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
}

func TestGenerateCodes_UnknownProgram(t *testing.T) {
	repo := new(mockCodeRepo)
	svc := newTestCodeService(repo)

	_, err := svc.GenerateCodes(context.Background(), GenerateCodesInput{Program: "antarctica", Count: 5})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestValidateCode(t *testing.T) {
	repo := new(mockCodeRepo)
	svc := newTestCodeService(repo)

	code := &domain.RegistrationCode{
		Code:      "NCLEX-X7K2-M9P4",
		Program:   "usa-canada",
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}
	repo.On("GetByCode", mock.Anything, "NCLEX-X7K2-M9P4").Return(code, nil)

	got, err := svc.ValidateCode(context.Background(), "NCLEX-X7K2-M9P4")

	require.NoError(t, err)
	assert.Equal(t, "usa-canada", got.Program)
}

func TestValidateCode_Redeemed(t *testing.T) {
	repo := new(mockCodeRepo)
	svc := newTestCodeService(repo)

	code := &domain.RegistrationCode{
		Code:      "NCLEX-X7K2-M9P4",
		Program:   "nigeria",
		UsedBy:    "someone",
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}
	repo.On("GetByCode", mock.Anything, "NCLEX-X7K2-M9P4").Return(code, nil)

	_, err := svc.ValidateCode(context.Background(), "NCLEX-X7K2-M9P4")

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "GONE", appErr.Code)
}

func TestValidateCode_Unknown(t *testing.T) {
	repo := new(mockCodeRepo)
	svc := newTestCodeService(repo)

	repo.On("GetByCode", mock.Anything, "NCLEX-NOPE-NOPE").Return(nil, apperrors.NotFound("registration code", "NCLEX-NOPE-NOPE"))

	_, err := svc.ValidateCode(context.Background(), "NCLEX-NOPE-NOPE")

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
