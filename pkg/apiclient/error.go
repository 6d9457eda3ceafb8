package apiclient

import (
	"fmt"
	"net/http"
	"strings"
)

// APIError is a classified error from the enrollment API. The boolean flags
// let callers branch on the error class without matching status codes or
// message text themselves.
type APIError struct {
	Status  int
	Code    string
	Message string

	// FieldErrors carries per-field validation messages from 400 responses.
	FieldErrors map[string]string

	// RateLimited is set on 429: back off before retrying.
	RateLimited bool

	// AccountLocked is set on 423: repeated failed logins locked the account.
	AccountLocked bool

	// Requires2FA is set when a login needs a second factor.
	Requires2FA bool

	// RequiresEmailVerification is set when a login is blocked until the
	// email address is confirmed.
	RequiresEmailVerification bool

	// RequiresReauth is set when the session could not be refreshed and the
	// user must log in again.
	RequiresReauth bool
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d (%s)", e.Status, e.Code)
}

// classify sets the flag fields from the status code, error code, and
// message of a parsed error response.
func (e *APIError) classify() *APIError {
	switch e.Status {
	case http.StatusTooManyRequests:
		e.RateLimited = true
	case http.StatusLocked:
		e.AccountLocked = true
	case http.StatusBadRequest:
		switch e.Code {
		case "TWO_FACTOR_REQUIRED":
			e.Requires2FA = true
		case "EMAIL_VERIFICATION_REQUIRED":
			e.RequiresEmailVerification = true
		default:
			lower := strings.ToLower(e.Message)
			if strings.Contains(lower, "requires_2fa") {
				e.Requires2FA = true
			}
			if strings.Contains(lower, "verify your email") {
				e.RequiresEmailVerification = true
			}
		}
	}
	return e
}
