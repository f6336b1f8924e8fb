// Package httpserver exposes the RAG ingress over HTTP: POST /query plus
// health, readiness, and metrics endpoints.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy of spec §7 onto HTTP status
// codes and a stable machine-readable code string.
func writeError(w http.ResponseWriter, _ *http.Request, err error, details interface{}) {
	code := http.StatusInternalServerError
	codeStr := "BACKEND_FAILURE"
	switch {
	case errors.Is(err, domain.ErrBadInput):
		code = http.StatusBadRequest
		codeStr = "BAD_INPUT"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		code = http.StatusServiceUnavailable
		codeStr = "UPSTREAM_UNAVAILABLE"
	case errors.Is(err, domain.ErrTimeout):
		code = http.StatusGatewayTimeout
		codeStr = "TIMEOUT"
	case errors.Is(err, domain.ErrGenerationFailed):
		code = http.StatusInternalServerError
		codeStr = "GENERATION_FAILED"
	case errors.Is(err, domain.ErrPolicyUnavailable):
		code = http.StatusServiceUnavailable
		codeStr = "POLICY_UNAVAILABLE"
	case errors.Is(err, domain.ErrBackendFailure):
		code = http.StatusInternalServerError
		codeStr = "BACKEND_FAILURE"
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: err.Error(), Details: details}})
}
