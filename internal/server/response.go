package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	complianceservice "ciam-core/backend/internal/compliance/service"
	identityservice "ciam-core/backend/internal/identity/service"
	mfaservice "ciam-core/backend/internal/mfa/service"
	tokenservice "ciam-core/backend/internal/token/service"
)

// errorResponse is the JSON body for every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
	// RetryAfter is the back-off hint in seconds for retryable states.
	RetryAfter int `json:"retry_after,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("server: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Error: code})
}

// statusFor maps a service error to an HTTP status and a stable error code.
// Unknown errors map to 500/internal_error.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, identityservice.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, identityservice.ErrAccountLocked):
		return http.StatusLocked, "account_locked"
	case errors.Is(err, identityservice.ErrMfaLocked):
		return http.StatusLocked, "mfa_locked"
	case errors.Is(err, identityservice.ErrContextNotFound):
		return http.StatusNotFound, "context_not_found"
	case errors.Is(err, identityservice.ErrContextExpired):
		return http.StatusGone, "context_expired"
	case errors.Is(err, identityservice.ErrTransactionMismatch):
		return http.StatusConflict, "transaction_mismatch"
	case errors.Is(err, identityservice.ErrMfaNotApproved):
		return http.StatusConflict, "mfa_pending"
	case errors.Is(err, identityservice.ErrMfaRejected):
		return http.StatusForbidden, "mfa_rejected"
	case errors.Is(err, identityservice.ErrBindNotOffered):
		return http.StatusConflict, "bind_not_offered"

	case errors.Is(err, mfaservice.ErrInvalidCode):
		return http.StatusBadRequest, "invalid_code"
	case errors.Is(err, mfaservice.ErrTooManyAttempts):
		return http.StatusTooManyRequests, "too_many_attempts"
	case errors.Is(err, mfaservice.ErrTransactionExpired):
		return http.StatusGone, "transaction_expired"
	case errors.Is(err, mfaservice.ErrNoPendingTransaction):
		return http.StatusNotFound, "no_pending_transaction"
	case errors.Is(err, mfaservice.ErrTransactionNotFound):
		return http.StatusNotFound, "transaction_not_found"
	case errors.Is(err, mfaservice.ErrWrongMethod):
		return http.StatusConflict, "wrong_method"
	case errors.Is(err, mfaservice.ErrMethodUnavailable):
		return http.StatusBadRequest, "method_unavailable"
	case errors.Is(err, mfaservice.ErrAlreadyResolved):
		return http.StatusConflict, "already_resolved"

	case errors.Is(err, tokenservice.ErrInvalidRefreshToken):
		return http.StatusUnauthorized, "invalid_refresh_token"
	case errors.Is(err, tokenservice.ErrRefreshExpired):
		return http.StatusUnauthorized, "refresh_token_expired"
	case errors.Is(err, tokenservice.ErrRefreshReuse):
		return http.StatusUnauthorized, "refresh_token_reused"
	case errors.Is(err, tokenservice.ErrSessionGone):
		return http.StatusUnauthorized, "session_gone"

	case errors.Is(err, complianceservice.ErrDocumentNotFound):
		return http.StatusNotFound, "document_not_found"
	case errors.Is(err, complianceservice.ErrDocumentInactive):
		return http.StatusConflict, "document_inactive"
	case errors.Is(err, complianceservice.ErrDocumentMandatory):
		return http.StatusConflict, "document_mandatory"
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("server: %v", err)
	}
	writeError(w, status, code)
}
