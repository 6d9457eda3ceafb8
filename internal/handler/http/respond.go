package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	apperrors "github.com/Emperor1p/nclexkeysinternational/pkg/errors"
	"github.com/Emperor1p/nclexkeysinternational/pkg/httputil"
)

// writeFlowError renders a flow-step error together with the flow itself, so
// the client can show the right screen (failed, pending, support) without a
// second fetch.
func writeFlowError(w http.ResponseWriter, r *http.Request, flow *domain.EnrollmentFlow, err error, logger *slog.Logger) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		httputil.WriteError(w, r, err, logger)
		return
	}

	httputil.WriteJSON(w, appErr.Status, httputil.Response{
		Data: flow,
		Error: &httputil.ErrorResponse{
			Code:    appErr.Code,
			Message: appErr.Message,
		},
	})
}
