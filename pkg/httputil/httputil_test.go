package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Emperor1p/nclexkeysinternational/pkg/errors"
	"github.com/Emperor1p/nclexkeysinternational/pkg/logger"
	"github.com/Emperor1p/nclexkeysinternational/pkg/validator"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, Response{Data: map[string]string{"reference": "ref_1"}})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decodeBody(t, rec)
	assert.Nil(t, resp.Error)
}

func TestWriteErrorAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/initialize/", nil)

	WriteError(rec, req, apperrors.PaymentFailed("charge declined"), newTestLogger())

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeBody(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "PAYMENT_FAILED", resp.Error.Code)
}

func TestWriteErrorIncludesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/payments/ref_1/", nil)
	req = req.WithContext(logger.WithCorrelationID(req.Context(), "corr-7"))

	WriteError(rec, req, apperrors.NotFound("payment", "ref_1"), newTestLogger())

	resp := decodeBody(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "corr-7", resp.Error.RequestID)
}

func TestWriteErrorUnknown(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteError(rec, req, errors.New("boom"), newTestLogger())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	// Internal details must not leak to the client.
	assert.NotContains(t, resp.Error.Message, "boom")
}

func TestWriteValidationError(t *testing.T) {
	type body struct {
		Email string `validate:"required,email"`
	}
	err := validator.Validate(body{Email: "nope"})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	WriteValidationError(rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "Email")
}

func TestNewPaginatedResponse(t *testing.T) {
	resp := NewPaginatedResponse([]int{1, 2, 3}, 7, 1, 3)
	assert.Equal(t, 3, resp.TotalPages)
	assert.True(t, resp.HasNext)

	last := NewPaginatedResponse([]int{7}, 7, 3, 3)
	assert.False(t, last.HasNext)

	empty := NewPaginatedResponse[int](nil, 0, 1, 10)
	assert.NotNil(t, empty.Data)
}
