package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Emperor1p/nclexkeysinternational/internal/auth"
	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	gatewaymock "github.com/Emperor1p/nclexkeysinternational/internal/gateway/mock"
	"github.com/Emperor1p/nclexkeysinternational/internal/gateway/paystack"
	"github.com/Emperor1p/nclexkeysinternational/internal/service"
	"github.com/Emperor1p/nclexkeysinternational/internal/storage/memory"
	apperrors "github.com/Emperor1p/nclexkeysinternational/pkg/errors"
	"github.com/Emperor1p/nclexkeysinternational/pkg/health"
	"github.com/Emperor1p/nclexkeysinternational/pkg/httputil"
	"github.com/Emperor1p/nclexkeysinternational/pkg/middleware"
)

const (
	testJWTSecret     = "test-secret-at-least-32-characters!!"
	testWebhookSecret = "sk_test_webhook_secret"
)

// --- In-memory repositories ---
//
// The router tests run full request cycles against real services, so the
// repositories are small map-backed stores with the same guard semantics as
// the postgres implementations.

type memUserRepo struct {
	mu      sync.Mutex
	byID    map[string]domain.User
	byEmail map[string]string
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		byID:    make(map[string]domain.User),
		byEmail: make(map[string]string),
	}
}

func (m *memUserRepo) put(user domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[user.ID] = user
	m.byEmail[user.Email] = user.ID
}

func (m *memUserRepo) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[user.Email]; exists {
		return apperrors.AlreadyExists("user", "email", user.Email)
	}
	m.byID[user.ID] = *user
	m.byEmail[user.Email] = user.ID
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id]
	if !ok {
		return nil, apperrors.NotFound("user", id)
	}
	return &user, nil
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, apperrors.NotFound("user", email)
	}
	user := m.byID[id]
	return &user, nil
}

func (m *memUserRepo) Update(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[user.ID]; !ok {
		return apperrors.NotFound("user", user.ID)
	}
	m.byID[user.ID] = *user
	return nil
}

func (m *memUserRepo) RecordFailedLogin(_ context.Context, userID string, lockUntil *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[userID]
	if !ok {
		return apperrors.NotFound("user", userID)
	}
	user.FailedLogins++
	user.LockedUntil = lockUntil
	m.byID[userID] = user
	return nil
}

func (m *memUserRepo) ResetFailedLogins(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[userID]
	if !ok {
		return apperrors.NotFound("user", userID)
	}
	user.FailedLogins = 0
	user.LockedUntil = nil
	m.byID[userID] = user
	return nil
}

type memRefreshTokenRepo struct {
	mu   sync.Mutex
	byID map[string]domain.RefreshToken
}

func newMemRefreshTokenRepo() *memRefreshTokenRepo {
	return &memRefreshTokenRepo{byID: make(map[string]domain.RefreshToken)}
}

func (m *memRefreshTokenRepo) Create(_ context.Context, token *domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[token.ID] = *token
	return nil
}

func (m *memRefreshTokenRepo) GetByID(_ context.Context, id string) (*domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.byID[id]
	if !ok {
		return nil, apperrors.NotFound("refresh token", id)
	}
	return &token, nil
}

func (m *memRefreshTokenRepo) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.byID[id]
	if !ok {
		return nil
	}
	if token.RevokedAt == nil {
		now := time.Now().UTC()
		token.RevokedAt = &now
		m.byID[id] = token
	}
	return nil
}

func (m *memRefreshTokenRepo) RevokeAllForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for id, token := range m.byID {
		if token.UserID == userID && token.RevokedAt == nil {
			token.RevokedAt = &now
			m.byID[id] = token
		}
	}
	return nil
}

type memEmailTokenRepo struct {
	mu     sync.Mutex
	tokens []domain.EmailToken
}

func newMemEmailTokenRepo() *memEmailTokenRepo {
	return &memEmailTokenRepo{}
}

func (m *memEmailTokenRepo) Create(_ context.Context, token *domain.EmailToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, *token)
	return nil
}

func (m *memEmailTokenRepo) GetByHash(_ context.Context, hash, purpose string) (*domain.EmailToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tokens {
		if m.tokens[i].TokenHash == hash && m.tokens[i].Purpose == purpose {
			token := m.tokens[i]
			return &token, nil
		}
	}
	return nil, apperrors.NotFound("email token", purpose)
}

func (m *memEmailTokenRepo) MarkUsed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for i := range m.tokens {
		if m.tokens[i].ID == id {
			m.tokens[i].UsedAt = &now
			return nil
		}
	}
	return apperrors.NotFound("email token", id)
}

type memIntentRepo struct {
	mu    sync.Mutex
	byRef map[string]domain.PaymentIntent
}

func newMemIntentRepo() *memIntentRepo {
	return &memIntentRepo{byRef: make(map[string]domain.PaymentIntent)}
}

func (m *memIntentRepo) put(intent domain.PaymentIntent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byRef[intent.Reference] = intent
}

func (m *memIntentRepo) get(t *testing.T, reference string) domain.PaymentIntent {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.byRef[reference]
	require.True(t, ok, "intent %s not stored", reference)
	return intent
}

func (m *memIntentRepo) Create(_ context.Context, intent *domain.PaymentIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byRef[intent.Reference]; exists {
		return apperrors.AlreadyExists("payment intent", "reference", intent.Reference)
	}
	m.byRef[intent.Reference] = *intent
	return nil
}

func (m *memIntentRepo) GetByReference(_ context.Context, reference string) (*domain.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.byRef[reference]
	if !ok {
		return nil, apperrors.NotFound("payment intent", reference)
	}
	return &intent, nil
}

func (m *memIntentRepo) UpdateStatus(_ context.Context, reference string, from, to domain.PaymentIntentStatus, paidAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.byRef[reference]
	if !ok {
		return false, apperrors.NotFound("payment intent", reference)
	}
	if !from.CanTransitionTo(to) {
		return false, apperrors.Conflict("invalid payment status transition")
	}
	if intent.Status != from {
		return false, nil
	}
	intent.Status = to
	if paidAt != nil {
		paid := *paidAt
		intent.PaidAt = &paid
	}
	intent.UpdatedAt = time.Now().UTC()
	m.byRef[reference] = intent
	return true, nil
}

func (m *memIntentRepo) MarkConsumed(_ context.Context, reference, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.byRef[reference]
	if !ok {
		return false, apperrors.NotFound("payment intent", reference)
	}
	if intent.Status != domain.PaymentCompleted || intent.ConsumedByUserID != "" {
		return false, nil
	}
	intent.ConsumedByUserID = userID
	intent.UpdatedAt = time.Now().UTC()
	m.byRef[reference] = intent
	return true, nil
}

func (m *memIntentRepo) ReleaseConsumption(_ context.Context, reference, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.byRef[reference]
	if !ok || intent.ConsumedByUserID != userID {
		return nil
	}
	intent.ConsumedByUserID = ""
	intent.UpdatedAt = time.Now().UTC()
	m.byRef[reference] = intent
	return nil
}

type memFlowRepo struct {
	mu   sync.Mutex
	byID map[string]domain.EnrollmentFlow
}

func newMemFlowRepo() *memFlowRepo {
	return &memFlowRepo{byID: make(map[string]domain.EnrollmentFlow)}
}

func (m *memFlowRepo) Save(_ context.Context, flow *domain.EnrollmentFlow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[flow.ID] = *flow
	return nil
}

func (m *memFlowRepo) Get(_ context.Context, id string) (*domain.EnrollmentFlow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	flow, ok := m.byID[id]
	if !ok {
		return nil, apperrors.NotFound("enrollment flow", id)
	}
	return &flow, nil
}

func (m *memFlowRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

type memCodeRepo struct {
	mu     sync.Mutex
	byCode map[string]domain.RegistrationCode
}

func newMemCodeRepo() *memCodeRepo {
	return &memCodeRepo{byCode: make(map[string]domain.RegistrationCode)}
}

func (m *memCodeRepo) CreateBatch(_ context.Context, codes []domain.RegistrationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, code := range codes {
		m.byCode[code.Code] = code
	}
	return nil
}

func (m *memCodeRepo) GetByCode(_ context.Context, value string) (*domain.RegistrationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.byCode[value]
	if !ok {
		return nil, apperrors.NotFound("registration code", value)
	}
	return &code, nil
}

func (m *memCodeRepo) Redeem(_ context.Context, value, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.byCode[value]
	if !ok || code.UsedBy != "" {
		return false, nil
	}
	now := time.Now().UTC()
	code.UsedBy = userID
	code.UsedAt = &now
	m.byCode[value] = code
	return true, nil
}

func (m *memCodeRepo) ReleaseRedemption(_ context.Context, value, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.byCode[value]
	if !ok || code.UsedBy != userID {
		return nil
	}
	code.UsedBy = ""
	code.UsedAt = nil
	m.byCode[value] = code
	return nil
}

func (m *memCodeRepo) ListByProgram(_ context.Context, program string) ([]domain.RegistrationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var codes []domain.RegistrationCode
	for _, code := range m.byCode {
		if program == "" || code.Program == program {
			codes = append(codes, code)
		}
	}
	return codes, nil
}

type memCourseRepo struct {
	mu   sync.Mutex
	byID map[string]domain.Course
}

func newMemCourseRepo() *memCourseRepo {
	return &memCourseRepo{byID: make(map[string]domain.Course)}
}

func (m *memCourseRepo) Create(_ context.Context, course *domain.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[course.ID] = *course
	return nil
}

func (m *memCourseRepo) GetByID(_ context.Context, id string) (*domain.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	course, ok := m.byID[id]
	if !ok {
		return nil, apperrors.NotFound("course", id)
	}
	return &course, nil
}

func (m *memCourseRepo) List(_ context.Context, program string) ([]domain.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var courses []domain.Course
	for _, course := range m.byID {
		if program == "" || course.Program == program {
			courses = append(courses, course)
		}
	}
	return courses, nil
}

// --- Router fixture ---

type routerFixture struct {
	router  http.Handler
	gw      *gatewaymock.Gateway
	users   *memUserRepo
	intents *memIntentRepo
	flows   *memFlowRepo
	codes   *memCodeRepo
	jwt     *auth.JWTManager
}

func newTestRouter(t *testing.T) *routerFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwtManager := auth.NewJWTManager(testJWTSecret, 15*time.Minute, 7*24*time.Hour)

	users := newMemUserRepo()
	refreshTokens := newMemRefreshTokenRepo()
	emailTokens := newMemEmailTokenRepo()
	intents := newMemIntentRepo()
	flows := newMemFlowRepo()
	codes := newMemCodeRepo()
	courses := newMemCourseRepo()
	gw := gatewaymock.New()

	paymentSvc := service.NewPaymentService(intents, gw, nil, logger)
	userSvc := service.NewUserService(users, refreshTokens, emailTokens, intents, codes, jwtManager, nil, logger)
	enrollmentSvc := service.NewEnrollmentService(flows, paymentSvc, userSvc, nil, logger)
	codeSvc := service.NewCodeService(codes, logger)
	courseSvc := service.NewCourseService(courses, memory.New("http://localhost:8080"), logger)

	// The signature check is the only thing exercised here, so the client
	// never talks to a live gateway.
	verifier := paystack.New(paystack.Config{
		SecretKey: testWebhookSecret,
		PublicKey: "pk_test_local",
	}, logger)

	router := NewRouter(RouterConfig{
		Users:           userSvc,
		Payments:        paymentSvc,
		Enrollments:     enrollmentSvc,
		Codes:           codeSvc,
		Courses:         courseSvc,
		JWTManager:      jwtManager,
		WebhookVerifier: verifier,
		Health:          health.NewHandler(),
		CORS:            middleware.DefaultCORSConfig(),
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
			TTL:               time.Minute,
		},
		Logger: logger,
	})

	return &routerFixture{
		router:  router,
		gw:      gw,
		users:   users,
		intents: intents,
		flows:   flows,
		codes:   codes,
		jwt:     jwtManager,
	}
}

func (f *routerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return f.doAuth(t, method, path, body, "")
}

func (f *routerFixture) doAuth(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *routerFixture) seedIntent(reference, planID string, amount int64, currency string, status domain.PaymentIntentStatus) {
	now := time.Now().UTC()
	intent := domain.PaymentIntent{
		ID:        uuid.New().String(),
		Reference: reference,
		PlanID:    planID,
		Amount:    amount,
		Currency:  currency,
		Status:    status,
		Gateway:   "mock",
		Email:     "prospect@example.com",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if status == domain.PaymentCompleted {
		intent.PaidAt = &now
	}
	f.intents.put(intent)
}

func (f *routerFixture) seedUser(t *testing.T, email, password, role string, verified bool) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	now := time.Now().UTC()
	user := domain.User{
		ID:            uuid.New().String(),
		Email:         email,
		PasswordHash:  string(hash),
		FirstName:     "Test",
		LastName:      "User",
		Role:          role,
		IsActive:      true,
		EmailVerified: verified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	f.users.put(user)
	return &user
}

func (f *routerFixture) accessToken(t *testing.T, user *domain.User) string {
	t.Helper()
	token, err := f.jwt.GenerateAccessToken(user.ID, user.Email, user.Role)
	require.NoError(t, err)
	return token
}

// --- Response decoding ---

type apiBody struct {
	Data  json.RawMessage         `json:"data"`
	Error *httputil.ErrorResponse `json:"error"`
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) apiBody {
	t.Helper()
	var body apiBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) apiBody {
	t.Helper()
	body := decodeBody(t, rec)
	require.NotNil(t, body.Data, "expected a data payload, got: %s", rec.Body.String())
	require.NoError(t, json.Unmarshal(body.Data, out))
	return body
}
