package repository

import (
	"context"
	"time"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
)

// UserRepository defines persistence for user accounts.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update modifies an existing user.
	Update(ctx context.Context, user *domain.User) error

	// RecordFailedLogin increments the failed-login counter and sets the
	// lockout deadline when the threshold is reached.
	RecordFailedLogin(ctx context.Context, userID string, lockUntil *time.Time) error

	// ResetFailedLogins clears the failed-login counter and lockout.
	ResetFailedLogins(ctx context.Context, userID string) error
}

// RefreshTokenRepository defines persistence for refresh token hashes.
type RefreshTokenRepository interface {
	// Create stores a new refresh token record.
	Create(ctx context.Context, token *domain.RefreshToken) error

	// GetByID retrieves a token record by its ID.
	GetByID(ctx context.Context, id string) (*domain.RefreshToken, error)

	// Revoke marks a token revoked. Revoking an already-revoked token is a
	// no-op.
	Revoke(ctx context.Context, id string) error

	// RevokeAllForUser revokes every live token for a user.
	RevokeAllForUser(ctx context.Context, userID string) error
}

// EmailTokenRepository defines persistence for verification and reset tokens.
type EmailTokenRepository interface {
	// Create stores a new email token.
	Create(ctx context.Context, token *domain.EmailToken) error

	// GetByHash retrieves a token by its hash and purpose.
	GetByHash(ctx context.Context, hash, purpose string) (*domain.EmailToken, error)

	// MarkUsed records the token as consumed.
	MarkUsed(ctx context.Context, id string) error
}

// PaymentIntentRepository defines persistence for payment intents. Intents
// outlive the client flows that create them.
type PaymentIntentRepository interface {
	// Create inserts a new pending intent.
	Create(ctx context.Context, intent *domain.PaymentIntent) error

	// GetByReference retrieves an intent by its gateway reference.
	GetByReference(ctx context.Context, reference string) (*domain.PaymentIntent, error)

	// UpdateStatus moves an intent to a new status. Implementations enforce
	// the forward-only rule: a terminal intent is never changed, and the
	// call reports whether a row actually moved.
	UpdateStatus(ctx context.Context, reference string, from, to domain.PaymentIntentStatus, paidAt *time.Time) (bool, error)

	// MarkConsumed records the user whose registration used the intent.
	// Returns false when the intent was already consumed.
	MarkConsumed(ctx context.Context, reference, userID string) (bool, error)

	// ReleaseConsumption undoes MarkConsumed for the given user, so a
	// registration that fails after consuming the intent can hand the
	// reference back. A no-op when the intent is held by someone else.
	ReleaseConsumption(ctx context.Context, reference, userID string) error
}

// CodeRepository defines persistence for registration codes.
type CodeRepository interface {
	// CreateBatch inserts a batch of generated codes.
	CreateBatch(ctx context.Context, codes []domain.RegistrationCode) error

	// GetByCode retrieves a code by its value.
	GetByCode(ctx context.Context, code string) (*domain.RegistrationCode, error)

	// Redeem marks a code used by a user. Returns false when the code was
	// already used.
	Redeem(ctx context.Context, code, userID string) (bool, error)

	// ReleaseRedemption undoes Redeem for the given user. A no-op when the
	// code was redeemed by someone else.
	ReleaseRedemption(ctx context.Context, code, userID string) error

	// ListByProgram returns codes generated for a program.
	ListByProgram(ctx context.Context, program string) ([]domain.RegistrationCode, error)
}

// CourseRepository defines persistence for courses.
type CourseRepository interface {
	// Create inserts a new course.
	Create(ctx context.Context, course *domain.Course) error

	// GetByID retrieves a course by ID.
	GetByID(ctx context.Context, id string) (*domain.Course, error)

	// List returns all courses, optionally filtered by program.
	List(ctx context.Context, program string) ([]domain.Course, error)
}

// FlowRepository defines storage for ephemeral enrollment flow state.
type FlowRepository interface {
	// Save writes the flow state with the store's TTL.
	Save(ctx context.Context, flow *domain.EnrollmentFlow) error

	// Get retrieves a flow by ID.
	Get(ctx context.Context, id string) (*domain.EnrollmentFlow, error)

	// Delete removes a flow. Deleting a missing flow is a no-op.
	Delete(ctx context.Context, id string) error
}
