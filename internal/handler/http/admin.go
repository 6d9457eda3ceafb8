package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	"github.com/Emperor1p/nclexkeysinternational/internal/service"
	"github.com/Emperor1p/nclexkeysinternational/pkg/httputil"
	"github.com/Emperor1p/nclexkeysinternational/pkg/middleware"
	"github.com/Emperor1p/nclexkeysinternational/pkg/validator"
)

// CourseHandler handles HTTP requests for course content endpoints.
type CourseHandler struct {
	service *service.CourseService
	logger  *slog.Logger
}

// NewCourseHandler creates a new course HTTP handler.
func NewCourseHandler(svc *service.CourseService, logger *slog.Logger) *CourseHandler {
	return &CourseHandler{service: svc, logger: logger}
}

// Upload handles POST /api/courses (multipart/form-data).
func (h *CourseHandler) Upload(w http.ResponseWriter, r *http.Request) {
	maxSize := domain.MaxCourseFileSize + (1 << 20) // 1MB overhead for form fields
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "failed to parse multipart form: " + err.Error()},
		})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "file is required: " + err.Error()},
		})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	course, err := h.service.UploadCourse(r.Context(), &service.UploadCourseInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Program:     r.FormValue("program"),
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Data:        file,
		CreatedBy:   middleware.UserIDFromContext(r.Context()),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: course})
}

// List handles GET /api/courses?program=
func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	courses, err := h.service.ListCourses(r.Context(), r.URL.Query().Get("program"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: courses})
}

// Get handles GET /api/courses/{id}
func (h *CourseHandler) Get(w http.ResponseWriter, r *http.Request) {
	course, err := h.service.GetCourse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: course})
}

// CodeHandler handles HTTP requests for registration code endpoints.
type CodeHandler struct {
	service *service.CodeService
	logger  *slog.Logger
}

// NewCodeHandler creates a new registration code HTTP handler.
func NewCodeHandler(svc *service.CodeService, logger *slog.Logger) *CodeHandler {
	return &CodeHandler{service: svc, logger: logger}
}

// GenerateCodesRequest is the JSON request body for generating a batch.
type GenerateCodesRequest struct {
	Program string `json:"program" validate:"required,max=50"`
	Count   int    `json:"count" validate:"required,min=1,max=50"`
}

// ValidateCodeRequest is the JSON request body for checking a code.
type ValidateCodeRequest struct {
	Code string `json:"code" validate:"required,max=50"`
}

// Generate handles POST /api/codes/generate
func (h *CodeHandler) Generate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req GenerateCodesRequest
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

	codes, err := h.service.GenerateCodes(r.Context(), service.GenerateCodesInput{
		Program:   req.Program,
		Count:     req.Count,
		CreatedBy: middleware.UserIDFromContext(r.Context()),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: codes})
}

// Validate handles POST /api/codes/validate
func (h *CodeHandler) Validate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req ValidateCodeRequest
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

	code, err := h.service.ValidateCode(r.Context(), req.Code)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]any{
			"code":       code.Code,
			"program":    code.Program,
			"amount":     code.Amount,
			"currency":   code.Currency,
			"expires_at": code.ExpiresAt,
		},
	})
}

// ListCodes handles GET /api/codes?program=
func (h *CodeHandler) ListCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.service.ListCodes(r.Context(), r.URL.Query().Get("program"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: codes})
}
