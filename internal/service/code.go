package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	"github.com/Emperor1p/nclexkeysinternational/internal/repository"
	apperrors "github.com/Emperor1p/nclexkeysinternational/pkg/errors"
)

// CodeService implements admin registration code operations.
type CodeService struct {
	codeRepo repository.CodeRepository
	logger   *slog.Logger
}

// NewCodeService creates a new registration code service.
func NewCodeService(codeRepo repository.CodeRepository, logger *slog.Logger) *CodeService {
	return &CodeService{
		codeRepo: codeRepo,
		logger:   logger,
	}
}

// GenerateCodesInput holds the parameters for a code generation batch.
type GenerateCodesInput struct {
	Program   string
	Count     int
	CreatedBy string
}

// GenerateCodes creates a batch of single-use codes priced at the program's
// plan rate, valid for 30 days.
func (s *CodeService) GenerateCodes(ctx context.Context, input GenerateCodesInput) ([]domain.RegistrationCode, error) {
	if input.Count < 1 {
		return nil, apperrors.InvalidInput("count must be at least 1")
	}
	if input.Count > domain.MaxCodesPerBatch {
		return nil, apperrors.InvalidInput(fmt.Sprintf("at most %d codes per batch", domain.MaxCodesPerBatch))
	}

	plan, ok := domain.PlanByID(input.Program)
	if !ok {
		return nil, apperrors.InvalidInput("unknown program: " + input.Program)
	}

	now := time.Now().UTC()
	codes := make([]domain.RegistrationCode, 0, input.Count)
	for i := 0; i < input.Count; i++ {
		value, err := randomCode()
		if err != nil {
			return nil, fmt.Errorf("generate code value: %w", err)
		}
		codes = append(codes, domain.RegistrationCode{
			ID:        uuid.New().String(),
			Code:      value,
			Program:   plan.ID,
			Amount:    plan.Amount,
			Currency:  plan.Currency,
			CreatedBy: input.CreatedBy,
			ExpiresAt: now.Add(domain.CodeValidity),
			CreatedAt: now,
		})
	}

	if err := s.codeRepo.CreateBatch(ctx, codes); err != nil {
		return nil, fmt.Errorf("store code batch: %w", err)
	}

	s.logger.InfoContext(ctx, "registration codes generated",
		slog.String("program", plan.ID),
		slog.Int("count", input.Count),
		slog.String("created_by", input.CreatedBy),
	)

	return codes, nil
}

// ValidateCode reports whether a code is currently redeemable and for which
// program, without consuming it.
func (s *CodeService) ValidateCode(ctx context.Context, value string) (*domain.RegistrationCode, error) {
	if value == "" {
		return nil, apperrors.InvalidInput("code is required")
	}

	code, err := s.codeRepo.GetByCode(ctx, value)
	if err != nil {
		return nil, apperrors.InvalidInput("unknown registration code")
	}

	if !code.Redeemable(time.Now().UTC()) {
		return nil, apperrors.Gone("registration code is expired or already used")
	}

	return code, nil
}

// ListCodes returns codes generated for a program.
func (s *CodeService) ListCodes(ctx context.Context, program string) ([]domain.RegistrationCode, error) {
	codes, err := s.codeRepo.ListByProgram(ctx, program)
	if err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	return codes, nil
}

// codeAlphabet avoids ambiguous characters in hand-typed codes.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// randomCode returns a code like NCLEX-X7K2-M9P4.
func randomCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, 8)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return fmt.Sprintf("NCLEX-%s-%s", out[:4], out[4:]), nil
}
