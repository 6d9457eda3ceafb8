package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
)

type authPayload struct {
	User   domain.User      `json:"user"`
	Tokens domain.TokenPair `json:"tokens"`
}

func TestRegisterEndpoint(t *testing.T) {
	f := newTestRouter(t)
	f.seedIntent("nclex_paid1", "nigeria", 30000, "NGN", domain.PaymentCompleted)

	rec := f.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email":             "ada@example.com",
		"password":          "sup3rsecret",
		"first_name":        "Ada",
		"last_name":         "Obi",
		"payment_reference": "nclex_paid1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var payload authPayload
	decodeData(t, rec, &payload)
	assert.Equal(t, "ada@example.com", payload.User.Email)
	assert.Equal(t, domain.RoleStudent, payload.User.Role)
	assert.Equal(t, "nigeria", payload.User.PlanID)
	assert.Equal(t, "nclex_paid1", payload.User.PaymentReference)
	assert.NotEmpty(t, payload.Tokens.AccessToken)
	assert.NotEmpty(t, payload.Tokens.RefreshToken)

	intent := f.intents.get(t, "nclex_paid1")
	assert.Equal(t, payload.User.ID, intent.ConsumedByUserID)
}

func TestRegisterEndpointValidation(t *testing.T) {
	f := newTestRouter(t)

	rec := f.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"password":          "sup3rsecret",
		"first_name":        "Ada",
		"payment_reference": "nclex_paid1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	require.NotNil(t, body.Error)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Contains(t, body.Error.Fields, "email")
}

func TestRegisterEndpointPendingPayment(t *testing.T) {
	f := newTestRouter(t)
	f.seedIntent("nclex_pending", "nigeria", 30000, "NGN", domain.PaymentPending)

	rec := f.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email":             "ada@example.com",
		"password":          "sup3rsecret",
		"first_name":        "Ada",
		"payment_reference": "nclex_pending",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	body := decodeBody(t, rec)
	require.NotNil(t, body.Error)
	assert.Equal(t, "PAYMENT_PENDING", body.Error.Code)
}

func TestLoginEndpoint(t *testing.T) {
	f := newTestRouter(t)
	f.seedUser(t, "student@example.com", "passw0rd!", domain.RoleStudent, true)

	rec := f.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "student@example.com",
		"password": "passw0rd!",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var payload authPayload
	decodeData(t, rec, &payload)
	assert.Equal(t, "student@example.com", payload.User.Email)
	require.NotEmpty(t, payload.Tokens.AccessToken)

	// The issued access token works against an authenticated route.
	me := f.doAuth(t, http.MethodGet, "/api/users/me", nil, payload.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, me.Code)

	var profile domain.User
	decodeData(t, me, &profile)
	assert.Equal(t, payload.User.ID, profile.ID)
}

func TestLoginEndpointWrongPassword(t *testing.T) {
	f := newTestRouter(t)
	f.seedUser(t, "student@example.com", "passw0rd!", domain.RoleStudent, true)

	rec := f.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "student@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginEndpointUnverifiedEmail(t *testing.T) {
	f := newTestRouter(t)
	f.seedUser(t, "fresh@example.com", "passw0rd!", domain.RoleStudent, false)

	rec := f.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "fresh@example.com",
		"password": "passw0rd!",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	require.NotNil(t, body.Error)
	assert.Equal(t, "EMAIL_VERIFICATION_REQUIRED", body.Error.Code)
}

func TestRefreshEndpointRotatesToken(t *testing.T) {
	f := newTestRouter(t)
	f.seedUser(t, "student@example.com", "passw0rd!", domain.RoleStudent, true)

	login := f.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "student@example.com",
		"password": "passw0rd!",
	})
	require.Equal(t, http.StatusOK, login.Code)

	var payload authPayload
	decodeData(t, login, &payload)

	rec := f.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{
		"refresh": payload.Tokens.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rotated domain.TokenPair
	decodeData(t, rec, &rotated)
	assert.NotEmpty(t, rotated.AccessToken)
	assert.NotEqual(t, payload.Tokens.RefreshToken, rotated.RefreshToken)

	// The old refresh token was revoked by the rotation.
	replay := f.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{
		"refresh": payload.Tokens.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, replay.Code)
}

func TestProfileRequiresToken(t *testing.T) {
	f := newTestRouter(t)

	rec := f.do(t, http.MethodGet, "/api/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthEndpointsRejectNonJSON(t *testing.T) {
	f := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader("email=student@example.com"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}
