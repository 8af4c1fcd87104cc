package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/viant/accessflow/model/fault"
)

// APIError represents a structured API error response
type APIError struct {
	Error     string                 `json:"error"`
	Code      string                 `json:"code,omitempty"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Error codes returned in APIError.Code.
const (
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeUnavailable       = "UNAVAILABLE"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

type errorMapping struct {
	status int
	code   string
}

var mappings = map[fault.Kind]errorMapping{
	fault.Validation:      {http.StatusUnprocessableEntity, ErrCodeValidationFailed},
	fault.NotFound:        {http.StatusNotFound, ErrCodeNotFound},
	fault.Conflict:        {http.StatusConflict, ErrCodeConflict},
	fault.Forbidden:       {http.StatusForbidden, ErrCodeForbidden},
	fault.Unauthenticated: {http.StatusUnauthorized, ErrCodeUnauthorized},
	fault.Unavailable:     {http.StatusServiceUnavailable, ErrCodeUnavailable},
}

// StatusOf returns the HTTP status err maps to.
func StatusOf(err error) int {
	if mapping, ok := mappings[fault.KindOf(err)]; ok {
		return mapping.status
	}
	return http.StatusInternalServerError
}

// respondError writes err as an APIError. Storage and unclassified failures
// are logged with detail and answered with a generic message.
func respondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := fault.KindOf(err)
	mapping, ok := mappings[kind]
	if !ok {
		mapping = errorMapping{http.StatusInternalServerError, ErrCodeInternalError}
	}
	requestID := RequestIDFromContext(r.Context())
	message := err.Error()
	var f *fault.Error
	switch {
	case kind == fault.Unavailable || !ok:
		logger.Error("request failed", "request_id", requestID, "method", r.Method, "path", r.URL.Path, "error", err)
		message = http.StatusText(mapping.status)
	case errors.As(err, &f):
		message = f.Message
	}
	var details map[string]interface{}
	if fields := fault.FieldsOf(err); len(fields) > 0 {
		details = map[string]interface{}{"fields": fields}
	}
	respondStructuredError(w, mapping.status, mapping.code, message, requestID, details)
}

func respondStructuredError(w http.ResponseWriter, status int, code, message, requestID string, details map[string]interface{}) {
	respondJSON(w, status, APIError{
		Error:     http.StatusText(status),
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Details:   details,
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
