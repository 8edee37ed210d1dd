// Package respond writes the {success, data, error} JSON envelope shared by
// handlers and middleware.
package respond

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/Msr7799/veo-backend/internal/domain"
)

// ErrorBody is the error half of the envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope wraps every JSON response.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// JSON writes data inside a successful envelope.
func JSON(w http.ResponseWriter, code int, data any) {
	write(w, code, Envelope{Success: true, Data: data})
}

// Error writes a failed envelope.
func Error(w http.ResponseWriter, code int, errCode, message string) {
	write(w, code, Envelope{Success: false, Error: &ErrorBody{Code: errCode, Message: message}})
}

// RateLimited writes a 429 with a Retry-After hint rounded up to seconds.
func RateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int((retryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	Error(w, http.StatusTooManyRequests, "rate_limited", "too many requests, retry later")
}

// Classify maps an error onto status, code and caller-facing message. The
// message of unclassified errors is replaced when hardened is set.
func Classify(err error, hardened bool) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "bad_request", err.Error()
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthorized", "invalid or missing identity token"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited", "too many requests, retry later"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "quota_exceeded", "daily quota exceeded"
	case errors.Is(err, domain.ErrUnsupportedMode):
		return http.StatusBadRequest, "unsupported_mode", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", "job not found"
	case errors.Is(err, domain.ErrNotConnected):
		return http.StatusConflict, "not_connected", err.Error()
	case errors.Is(err, domain.ErrJobNotCompleted):
		return http.StatusConflict, "job_not_completed", err.Error()
	}
	if hardened {
		return http.StatusInternalServerError, "internal", "internal server error"
	}
	return http.StatusInternalServerError, "internal", err.Error()
}

func write(w http.ResponseWriter, code int, v Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
