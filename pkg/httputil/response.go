package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Error codes of the indexer API
const (
	CodeBadRequest     = "bad_request"
	CodeInvalidAddress = "invalid_address"
	CodeNotIndexed     = "not_indexed"
	CodeUnauthorized   = "unauthorized"
	CodeRateLimited    = "rate_limited"
	CodeUnhealthy      = "dependencies_unhealthy"
	CodeInternal       = "internal"
)

var codeStatus = map[string]int{
	CodeBadRequest:     http.StatusBadRequest,
	CodeInvalidAddress: http.StatusBadRequest,
	CodeNotIndexed:     http.StatusNotFound,
	CodeUnauthorized:   http.StatusUnauthorized,
	CodeRateLimited:    http.StatusTooManyRequests,
	CodeUnhealthy:      http.StatusServiceUnavailable,
	CodeInternal:       http.StatusInternalServerError,
}

// Every API response is {"status": "ok", "data": ...} or {"status": "error", "error": {...}}
type Envelope map[string]any

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// HTTP status of an error code, 500 for codes outside the list
func StatusFor(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func JSON(w http.ResponseWriter, status int, body any, headers map[string]string) error {
	if body == nil && status == http.StatusNoContent {
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(status)
		return nil
	}

	payload := Envelope{"status": "ok", "data": body}
	switch body.(type) {
	case *APIError, APIError:
		payload = Envelope{"status": "error", "error": body}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	for k, v := range headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	return enc.Encode(payload)
}

// 200 with the ok envelope
func OK(w http.ResponseWriter, body any) error {
	return JSON(w, http.StatusOK, body, nil)
}

// Error envelope carrying the request id; never cached
func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) error {
	return JSON(w, status, APIError{
		Code:    code,
		Message: message,
		Details: details,
		TraceID: middleware.GetReqID(r.Context()),
	}, map[string]string{
		"Cache-Control": "no-store",
	})
}

// Error with the status its code maps to
func Fail(w http.ResponseWriter, r *http.Request, code, message string, details any) error {
	return Error(w, r, StatusFor(code), code, message, details)
}
