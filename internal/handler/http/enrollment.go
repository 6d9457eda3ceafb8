package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	"github.com/Emperor1p/nclexkeysinternational/internal/service"
	"github.com/Emperor1p/nclexkeysinternational/pkg/httputil"
)

// EnrollmentHandler handles HTTP requests for the enrollment flow. The flow
// ID is issued by the server on start and carried by the client through every
// subsequent call.
type EnrollmentHandler struct {
	service *service.EnrollmentService
	logger  *slog.Logger
}

// NewEnrollmentHandler creates a new enrollment HTTP handler.
func NewEnrollmentHandler(svc *service.EnrollmentService, logger *slog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// StartFlowRequest is the JSON request body for starting (or resubmitting)
// the account draft step. Field-level rules are enforced by the service so
// a rejected draft still lands in the flow.
type StartFlowRequest struct {
	FlowID          string `json:"flow_id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// SelectPlanRequest is the JSON request body for the plan step.
type SelectPlanRequest struct {
	FlowID string `json:"flow_id"`
	PlanID string `json:"plan_id"`
}

// FlowRequest is the JSON request body for steps that only need the flow.
type FlowRequest struct {
	FlowID string `json:"flow_id"`
}

// PaymentInitResponse pairs the updated flow with the gateway redirect.
type PaymentInitResponse struct {
	Flow             *domain.EnrollmentFlow `json:"flow"`
	Reference        string                 `json:"reference"`
	AuthorizationURL string                 `json:"authorization_url"`
	AccessCode       string                 `json:"access_code,omitempty"`
}

// ActivationResponse is the outcome of the verify step.
type ActivationResponse struct {
	Flow   *domain.EnrollmentFlow `json:"flow"`
	User   any                    `json:"user,omitempty"`
	Tokens any                    `json:"tokens,omitempty"`
}

// --- Handlers ---

// Start handles POST /api/enrollment/start
func (h *EnrollmentHandler) Start(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req StartFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	flow, err := h.service.StartFlow(r.Context(), req.FlowID, domain.AccountDraft{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Phone:           req.Phone,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		// A rejected draft keeps the flow alive with every field preserved,
		// so the response carries both the flow and the field errors.
		var vErr *service.DraftValidationError
		if errors.As(err, &vErr) {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Data: flow,
				Error: &httputil.ErrorResponse{
					Code:    "VALIDATION_ERROR",
					Message: "account details are incomplete",
					Fields:  vErr.FieldErrors,
				},
			})
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: flow})
}

// SelectPlan handles POST /api/enrollment/plan
func (h *EnrollmentHandler) SelectPlan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req SelectPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	flow, err := h.service.SelectPlan(r.Context(), req.FlowID, req.PlanID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: flow})
}

// InitiatePayment handles POST /api/enrollment/initiate
func (h *EnrollmentHandler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req FlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	flow, result, err := h.service.InitiatePayment(r.Context(), req.FlowID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: PaymentInitResponse{
			Flow:             flow,
			Reference:        result.Intent.Reference,
			AuthorizationURL: result.AuthorizationURL,
			AccessCode:       result.AccessCode,
		},
	})
}

// CompleteCollection handles POST /api/enrollment/collected
func (h *EnrollmentHandler) CompleteCollection(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req FlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	flow, err := h.service.CompleteCollection(r.Context(), req.FlowID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: flow})
}

// Verify handles POST /api/enrollment/verify
func (h *EnrollmentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req FlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	result, err := h.service.VerifyAndActivate(r.Context(), req.FlowID)
	if err != nil {
		// Terminal failures still describe the flow so the client can render
		// the right screen next to the error.
		if result != nil && result.Flow != nil {
			writeFlowError(w, r, result.Flow, err, h.logger)
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: ActivationResponse{
			Flow:   result.Flow,
			User:   result.User,
			Tokens: result.Tokens,
		},
	})
}

// GetFlow handles GET /api/enrollment?flow_id=
func (h *EnrollmentHandler) GetFlow(w http.ResponseWriter, r *http.Request) {
	flow, err := h.service.GetFlow(r.Context(), r.URL.Query().Get("flow_id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: flow})
}

// Discard handles DELETE /api/enrollment?flow_id=
func (h *EnrollmentHandler) Discard(w http.ResponseWriter, r *http.Request) {
	flowID := r.URL.Query().Get("flow_id")
	if flowID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "flow_id is required"},
		})
		return
	}

	if err := h.service.DiscardFlow(r.Context(), flowID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"flow_id": flowID, "status": "discarded"},
	})
}

// ListPlans handles GET /api/plans
func (h *EnrollmentHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: domain.Plans()})
}
