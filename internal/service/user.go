package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Emperor1p/nclexkeysinternational/internal/auth"
	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	"github.com/Emperor1p/nclexkeysinternational/internal/event"
	"github.com/Emperor1p/nclexkeysinternational/internal/repository"
	apperrors "github.com/Emperor1p/nclexkeysinternational/pkg/errors"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

const (
	maxFailedLogins   = 5
	lockoutDuration   = 15 * time.Minute
	verifyTokenExpiry = 24 * time.Hour
	resetTokenExpiry  = time.Hour
	otpExpiry         = 10 * time.Minute
)

// UserService implements the business logic for account and auth operations.
type UserService struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	emailTokenRepo   repository.EmailTokenRepository
	intentRepo       repository.PaymentIntentRepository
	codeRepo         repository.CodeRepository
	jwtManager       *auth.JWTManager
	producer         *event.Producer
	logger           *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(
	userRepo repository.UserRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	emailTokenRepo repository.EmailTokenRepository,
	intentRepo repository.PaymentIntentRepository,
	codeRepo repository.CodeRepository,
	jwtManager *auth.JWTManager,
	producer *event.Producer,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		emailTokenRepo:   emailTokenRepo,
		intentRepo:       intentRepo,
		codeRepo:         codeRepo,
		jwtManager:       jwtManager,
		producer:         producer,
		logger:           logger,
	}
}

// RegisterInput holds the parameters for registering a new student account.
// Exactly one of PaymentReference or RegistrationCode must prove payment.
type RegisterInput struct {
	Email            string
	Password         string
	FirstName        string
	LastName         string
	Phone            string
	PaymentReference string
	RegistrationCode string
}

// LoginInput holds the parameters for user login.
type LoginInput struct {
	Email          string
	Password       string
	TwoFactorToken string
}

// Register creates a student account backed by a completed payment intent or
// a valid registration code. No session is ever issued without one of them.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*domain.User, *domain.TokenPair, error) {
	if input.Email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if input.FirstName == "" && input.LastName == "" {
		return nil, nil, apperrors.InvalidInput("name is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, nil, err
	}
	if input.PaymentReference == "" && input.RegistrationCode == "" {
		return nil, nil, apperrors.InvalidInput("payment reference or registration code is required")
	}
	if input.PaymentReference != "" && input.RegistrationCode != "" {
		return nil, nil, apperrors.InvalidInput("provide either a payment reference or a registration code, not both")
	}

	var (
		intent *domain.PaymentIntent
		code   *domain.RegistrationCode
		err    error
	)
	if input.PaymentReference != "" {
		intent, err = s.checkPaymentProof(ctx, input.PaymentReference)
	} else {
		code, err = s.checkCodeProof(ctx, input.RegistrationCode)
	}
	if err != nil {
		return nil, nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
		Role:         domain.RoleStudent,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if intent != nil {
		user.PlanID = intent.PlanID
		user.PaymentReference = intent.Reference
	}
	if code != nil {
		user.PlanID = code.Program
	}

	// Consume the proof before creating the account. Losing the race to a
	// concurrent registration must not leave an orphaned user row behind.
	if intent != nil {
		consumed, err := s.intentRepo.MarkConsumed(ctx, intent.Reference, user.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("consume payment intent: %w", err)
		}
		if !consumed {
			return nil, nil, apperrors.Conflict("payment reference already used for another account")
		}
	}
	if code != nil {
		redeemed, err := s.codeRepo.Redeem(ctx, code.Code, user.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("redeem registration code: %w", err)
		}
		if !redeemed {
			return nil, nil, apperrors.Conflict("registration code already used")
		}
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		s.releaseProof(ctx, user.ID, intent, code)
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	tokens, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.issueEmailToken(ctx, user, domain.EmailTokenVerify, verifyTokenExpiry); err != nil {
		s.logger.ErrorContext(ctx, "failed to issue email verification token",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
		slog.String("plan_id", user.PlanID),
	)

	return user, tokens, nil
}

// releaseProof hands a consumed payment proof back when account creation
// fails after the consume. Release failures are logged, not returned; the
// user-facing error is the create failure.
func (s *UserService) releaseProof(ctx context.Context, userID string, intent *domain.PaymentIntent, code *domain.RegistrationCode) {
	if intent != nil {
		if err := s.intentRepo.ReleaseConsumption(ctx, intent.Reference, userID); err != nil {
			s.logger.ErrorContext(ctx, "failed to release payment intent after registration failure",
				slog.String("reference", intent.Reference),
				slog.String("error", err.Error()),
			)
		}
	}
	if code != nil {
		if err := s.codeRepo.ReleaseRedemption(ctx, code.Code, userID); err != nil {
			s.logger.ErrorContext(ctx, "failed to release registration code after registration failure",
				slog.String("code", code.Code),
				slog.String("error", err.Error()),
			)
		}
	}
}

// checkPaymentProof verifies the reference points at a completed, unconsumed
// intent.
func (s *UserService) checkPaymentProof(ctx context.Context, reference string) (*domain.PaymentIntent, error) {
	intent, err := s.intentRepo.GetByReference(ctx, reference)
	if err != nil {
		return nil, apperrors.InvalidInput("unknown payment reference")
	}

	switch intent.Status {
	case domain.PaymentCompleted:
	case domain.PaymentPending:
		return nil, apperrors.PaymentPending("payment has not completed yet")
	default:
		return nil, apperrors.PaymentFailed("payment was not successful")
	}

	if intent.Consumed() {
		return nil, apperrors.Conflict("payment reference already used for another account")
	}

	return intent, nil
}

// checkCodeProof verifies the registration code is redeemable.
func (s *UserService) checkCodeProof(ctx context.Context, codeValue string) (*domain.RegistrationCode, error) {
	code, err := s.codeRepo.GetByCode(ctx, codeValue)
	if err != nil {
		return nil, apperrors.InvalidInput("unknown registration code")
	}

	if !code.Redeemable(time.Now().UTC()) {
		return nil, apperrors.Gone("registration code is expired or already used")
	}

	return code, nil
}

// Login authenticates a user, classifying lockout, two-factor, and
// unverified-email outcomes so clients can react to each.
func (s *UserService) Login(ctx context.Context, input LoginInput) (*domain.User, *domain.TokenPair, error) {
	if input.Email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, nil, apperrors.InvalidInput("password is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	now := time.Now().UTC()
	if user.Locked(now) {
		return nil, nil, apperrors.AccountLocked("account is temporarily locked, try again later")
	}

	if !user.IsActive {
		return nil, nil, apperrors.Unauthorized("account is deactivated")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		s.recordFailedLogin(ctx, user, now)
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	if !user.EmailVerified {
		return nil, nil, apperrors.EmailVerificationRequired("please verify your email address before logging in")
	}

	if user.TwoFactorEnabled {
		if input.TwoFactorToken == "" {
			if err := s.issueEmailToken(ctx, user, domain.EmailTokenTwoFactor, otpExpiry); err != nil {
				s.logger.ErrorContext(ctx, "failed to issue two-factor code",
					slog.String("user_id", user.ID),
					slog.String("error", err.Error()),
				)
			}
			return nil, nil, apperrors.TwoFactorRequired("a verification code has been sent, submit it to complete login")
		}
		if err := s.consumeEmailToken(ctx, input.TwoFactorToken, domain.EmailTokenTwoFactor, user.ID); err != nil {
			return nil, nil, apperrors.TwoFactorRequired("invalid or expired verification code")
		}
	}

	if user.FailedLogins > 0 || user.LockedUntil != nil {
		if err := s.userRepo.ResetFailedLogins(ctx, user.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to reset login counter",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	tokens, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, tokens, nil
}

// recordFailedLogin bumps the counter, locking the account when the
// threshold is reached.
func (s *UserService) recordFailedLogin(ctx context.Context, user *domain.User, now time.Time) {
	var lockUntil *time.Time
	if user.FailedLogins+1 >= maxFailedLogins {
		until := now.Add(lockoutDuration)
		lockUntil = &until
	}
	if err := s.userRepo.RecordFailedLogin(ctx, user.ID, lockUntil); err != nil {
		s.logger.ErrorContext(ctx, "failed to record failed login",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
}

// RefreshToken validates a refresh token, revokes it, and issues a new pair.
// Rotation happens here and nowhere else.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.InvalidInput("refresh token is required")
	}

	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired refresh token")
	}

	stored, err := s.refreshTokenRepo.GetByID(ctx, claims.TokenID)
	if err != nil {
		return nil, apperrors.Unauthorized("refresh token not found")
	}

	if stored.TokenHash != hashToken(refreshToken) {
		return nil, apperrors.Unauthorized("refresh token mismatch")
	}
	if !stored.Valid(time.Now().UTC()) {
		return nil, apperrors.Unauthorized("refresh token is revoked or expired")
	}

	if err := s.refreshTokenRepo.Revoke(ctx, stored.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke old refresh token",
			slog.String("user_id", claims.UserID),
			slog.String("error", err.Error()),
		)
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user for token refresh: %w", err)
	}

	tokens, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "tokens refreshed",
		slog.String("user_id", user.ID),
	)

	return tokens, nil
}

// Logout revokes the presented refresh token. An already-invalid token is
// not an error: the session is gone either way.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil
	}

	if err := s.refreshTokenRepo.Revoke(ctx, claims.TokenID); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged out",
		slog.String("user_id", claims.UserID),
	)

	return nil
}

// ForgotPassword issues a reset token and hands it to the notification
// consumer via the event bus. Unknown emails are not revealed.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return apperrors.InvalidInput("email is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.InfoContext(ctx, "password reset requested for unknown email",
			slog.String("email", email),
		)
		return nil
	}

	if err := s.issueEmailToken(ctx, user, domain.EmailTokenReset, resetTokenExpiry); err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	s.logger.InfoContext(ctx, "password reset requested",
		slog.String("user_id", user.ID),
	)

	return nil
}

// ResetPassword resets a user's password using a single-use token, then
// revokes every live session.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return apperrors.InvalidInput("reset token is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	stored, err := s.emailTokenRepo.GetByHash(ctx, hashToken(token), domain.EmailTokenReset)
	if err != nil {
		return apperrors.Unauthorized("invalid or expired reset token")
	}
	if !stored.Usable(time.Now().UTC()) {
		return apperrors.Gone("reset token is expired or already used")
	}

	user, err := s.userRepo.GetByID(ctx, stored.UserID)
	if err != nil {
		return fmt.Errorf("get user for password reset: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	user.PasswordHash = string(hashedPassword)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("update user password: %w", err)
	}

	if err := s.emailTokenRepo.MarkUsed(ctx, stored.ID); err != nil {
		return fmt.Errorf("mark reset token used: %w", err)
	}

	if err := s.refreshTokenRepo.RevokeAllForUser(ctx, user.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke refresh tokens after password reset",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset completed",
		slog.String("user_id", user.ID),
	)

	return nil
}

// VerifyEmail confirms a verification token and marks the email verified.
func (s *UserService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return apperrors.InvalidInput("verification token is required")
	}

	stored, err := s.emailTokenRepo.GetByHash(ctx, hashToken(token), domain.EmailTokenVerify)
	if err != nil {
		return apperrors.Unauthorized("invalid or expired verification token")
	}
	if !stored.Usable(time.Now().UTC()) {
		return apperrors.Gone("verification token is expired or already used")
	}

	user, err := s.userRepo.GetByID(ctx, stored.UserID)
	if err != nil {
		return fmt.Errorf("get user for email verification: %w", err)
	}

	user.EmailVerified = true
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}

	if err := s.emailTokenRepo.MarkUsed(ctx, stored.ID); err != nil {
		return fmt.Errorf("mark verification token used: %w", err)
	}

	s.logger.InfoContext(ctx, "email verified",
		slog.String("user_id", user.ID),
	)

	return nil
}

// GetProfile retrieves a user by their ID.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return user, nil
}

// issueEmailToken creates a single-use token and publishes the matching
// event so the notification consumer can deliver it.
func (s *UserService) issueEmailToken(ctx context.Context, user *domain.User, purpose string, expiry time.Duration) error {
	raw, err := randomToken()
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	now := time.Now().UTC()
	stored := &domain.EmailToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: hashToken(raw),
		Purpose:   purpose,
		ExpiresAt: now.Add(expiry),
		CreatedAt: now,
	}
	if err := s.emailTokenRepo.Create(ctx, stored); err != nil {
		return fmt.Errorf("store email token: %w", err)
	}

	expiresAt := stored.ExpiresAt.Format(time.RFC3339)
	switch purpose {
	case domain.EmailTokenReset:
		err = s.producer.PublishPasswordReset(ctx, user, raw, expiresAt)
	default:
		err = s.producer.PublishEmailVerification(ctx, user, raw, expiresAt)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to publish email token event",
			slog.String("user_id", user.ID),
			slog.String("purpose", purpose),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// consumeEmailToken validates and burns a single-use token for the user.
func (s *UserService) consumeEmailToken(ctx context.Context, token, purpose, userID string) error {
	stored, err := s.emailTokenRepo.GetByHash(ctx, hashToken(token), purpose)
	if err != nil {
		return err
	}
	if stored.UserID != userID || !stored.Usable(time.Now().UTC()) {
		return apperrors.ErrUnauthorized
	}
	return s.emailTokenRepo.MarkUsed(ctx, stored.ID)
}

// generateTokenPair creates an access/refresh pair and stores the refresh
// token record under the token ID carried in its claims.
func (s *UserService) generateTokenPair(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	accessToken, err := s.jwtManager.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	tokenID := uuid.New().String()
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, tokenID)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := time.Now().UTC()
	record := &domain.RefreshToken{
		ID:        tokenID,
		UserID:    user.ID,
		TokenHash: hashToken(refreshToken),
		ExpiresAt: now.Add(s.jwtManager.RefreshExpiry()),
		CreatedAt: now,
	}
	if err := s.refreshTokenRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// hashToken returns the SHA256 hex digest of the given token string.
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// randomToken returns a 32-byte hex token.
func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// validatePassword checks the minimum length rule.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	return nil
}
