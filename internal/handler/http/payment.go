package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	"github.com/Emperor1p/nclexkeysinternational/internal/gateway"
	"github.com/Emperor1p/nclexkeysinternational/internal/gateway/paystack"
	"github.com/Emperor1p/nclexkeysinternational/internal/service"
	apperrors "github.com/Emperor1p/nclexkeysinternational/pkg/errors"
	"github.com/Emperor1p/nclexkeysinternational/pkg/httputil"
	"github.com/Emperor1p/nclexkeysinternational/pkg/validator"
)

// WebhookVerifier authenticates a provider-pushed notification.
type WebhookVerifier interface {
	VerifyWebhookSignature(signature string, body []byte) bool
}

// PaymentHandler handles HTTP requests for payment endpoints.
type PaymentHandler struct {
	service  *service.PaymentService
	verifier WebhookVerifier
	logger   *slog.Logger
}

// NewPaymentHandler creates a new payment HTTP handler. The verifier may be
// nil, in which case the webhook endpoint rejects everything.
func NewPaymentHandler(svc *service.PaymentService, verifier WebhookVerifier, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service:  svc,
		verifier: verifier,
		logger:   logger,
	}
}

// --- Request DTOs ---

// InitializePaymentRequest is the JSON request body for starting a charge.
type InitializePaymentRequest struct {
	PlanID   string `json:"plan_id" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"omitempty,max=200"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
}

// InitializePaymentResponse pairs the intent with the gateway redirect.
type InitializePaymentResponse struct {
	Intent           *domain.PaymentIntent `json:"intent"`
	AuthorizationURL string                `json:"authorization_url"`
	AccessCode       string                `json:"access_code,omitempty"`
}

// --- Handlers ---

// Initialize handles POST /api/payments/initialize
func (h *PaymentHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req InitializePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.InitializePayment(r.Context(), service.InitializePaymentInput{
		PlanID:   req.PlanID,
		Email:    req.Email,
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{
		Data: InitializePaymentResponse{
			Intent:           result.Intent,
			AuthorizationURL: result.AuthorizationURL,
			AccessCode:       result.AccessCode,
		},
	})
}

// Verify handles POST /api/payments/verify/{reference}
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "payment reference is required"},
		})
		return
	}

	intent, err := h.service.VerifyPayment(r.Context(), reference)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: intent})
}

// Get handles GET /api/payments/{reference}. It returns the stored intent
// without consulting the gateway; clients poll via explicit Verify calls.
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	intent, err := h.service.GetByReference(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: intent})
}

// CheckoutParams handles GET /api/payments/{reference}/checkout
func (h *PaymentHandler) CheckoutParams(w http.ResponseWriter, r *http.Request) {
	params, err := h.service.CheckoutParams(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: params})
}

// PaystackWebhook handles POST /api/payments/webhook/paystack. Events with a
// bad signature are rejected; events for unknown references or non-terminal
// statuses are acknowledged and dropped, so Paystack does not keep retrying
// noise.
func (h *PaymentHandler) PaystackWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "unreadable webhook body"},
		})
		return
	}

	signature := r.Header.Get("x-paystack-signature")
	if h.verifier == nil || !h.verifier.VerifyWebhookSignature(signature, body) {
		h.logger.WarnContext(r.Context(), "rejected webhook with bad signature")
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "invalid webhook signature"},
		})
		return
	}

	event, err := paystack.ParseWebhookEvent(body)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "malformed webhook event"},
		})
		return
	}

	status := webhookStatus(event.Data.Status)
	if event.Data.Reference == "" || status == "" {
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{
			Data: map[string]string{"status": "ignored"},
		})
		return
	}

	err = h.service.ApplyGatewayOutcome(r.Context(), event.Data.Reference, status, event.Data.PaidAt)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Not our reference. Acknowledge so the provider stops retrying.
			httputil.WriteJSON(w, http.StatusOK, httputil.Response{
				Data: map[string]string{"status": "ignored"},
			})
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	h.logger.InfoContext(r.Context(), "webhook processed",
		slog.String("event", event.Event),
		slog.String("reference", event.Data.Reference),
		slog.String("status", status),
	)

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"status": "processed"},
	})
}

// webhookStatus maps Paystack's charge status vocabulary onto the gateway's.
// Anything not clearly terminal is empty, which the webhook handler drops.
func webhookStatus(status string) string {
	switch status {
	case "success":
		return gateway.StatusCompleted
	case "failed":
		return gateway.StatusFailed
	default:
		return ""
	}
}
