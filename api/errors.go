package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xraph/settle"
)

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case settle.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, settle.ErrRetryLimitExceeded):
		return http.StatusTooManyRequests, "retry_limit_exceeded"
	case errors.Is(err, settle.ErrNoGateway), errors.Is(err, settle.ErrNoTaxProvider), errors.Is(err, settle.ErrNoCatalog):
		return http.StatusNotImplemented, "not_configured"
	case errors.Is(err, settle.ErrOutcomeUnknown), errors.Is(err, settle.ErrRefundFailed):
		return http.StatusBadGateway, "gateway_error"
	case settle.IsValidation(err):
		return http.StatusUnprocessableEntity, "invalid_request"
	case settle.IsStateConflict(err):
		return http.StatusConflict, "state_conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}
