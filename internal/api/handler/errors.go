package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/feedlens/internal/ai"
	"github.com/kiranshivaraju/feedlens/internal/ai/llm"
	"github.com/kiranshivaraju/feedlens/internal/api/response"
	"github.com/kiranshivaraju/feedlens/pkg/models"
)

type errorDetails struct {
	Retryable bool `json:"retryable"`
}

// writeServiceError maps workflow and provider errors onto HTTP responses.
// Provider failures keep their classified code so clients can decide whether
// to retry.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, llm.ErrNotFound):
		response.Error(w, http.StatusNotFound, string(models.ErrCodeNotFound), err.Error(), nil)
		return
	case errors.Is(err, ai.ErrEmptyAnswer):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	case errors.Is(err, ai.ErrNoResult), errors.Is(err, ai.ErrRoundsExhausted):
		response.Error(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
		return
	case errors.Is(err, ai.ErrModelListingUnsupported):
		response.Error(w, http.StatusBadRequest, "UNSUPPORTED", err.Error(), nil)
		return
	}

	c := llm.Classify(err)
	switch c.Code {
	case models.ErrCodeUnknown:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	case models.ErrCodeCredentialMissing:
		response.Error(w, http.StatusFailedDependency, string(c.Code), err.Error(), errorDetails{Retryable: false})
	case models.ErrCodeTimeout:
		response.Error(w, http.StatusGatewayTimeout, string(c.Code), err.Error(), errorDetails{Retryable: c.Retryable})
	default:
		response.Error(w, http.StatusBadGateway, string(c.Code), err.Error(), errorDetails{Retryable: c.Retryable})
	}
}
