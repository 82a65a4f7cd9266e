// Package llm holds the pieces shared by every provider client: the error
// taxonomy, prompt rendering, response parsing and cost estimation.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/kiranshivaraju/feedlens/pkg/models"
)

var (
	ErrProviderUnavailable = errors.New("ai provider unavailable: network error")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid json response")
	ErrInvalidAPIKey       = errors.New("invalid api key")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrCredentialMissing   = errors.New("provider credential not configured")
	ErrNotFound            = errors.New("not found")
)

// Classification is the outcome of Classify.
type Classification struct {
	Code      models.ErrorCode
	Retryable bool
}

var retryable = map[models.ErrorCode]bool{
	models.ErrCodeProviderUnavailable: true,
	models.ErrCodeRateLimited:         true,
	models.ErrCodeTimeout:             true,
}

// IsRetryable reports whether callers may retry a failure with this code.
func IsRetryable(code models.ErrorCode) bool {
	return retryable[code]
}

// Classify maps a provider failure into the closed error taxonomy.
// Errors wrapping one of this package's sentinels are mapped by identity;
// anything else goes through ClassifyMessage.
func Classify(err error) Classification {
	if err == nil {
		return newClassification(models.ErrCodeUnknown)
	}
	switch {
	case errors.Is(err, ErrCredentialMissing):
		return newClassification(models.ErrCodeCredentialMissing)
	case errors.Is(err, ErrNotFound):
		return newClassification(models.ErrCodeNotFound)
	case errors.Is(err, ErrInvalidAPIKey):
		return newClassification(models.ErrCodeInvalidAPIKey)
	case errors.Is(err, ErrRateLimited):
		return newClassification(models.ErrCodeRateLimited)
	case errors.Is(err, ErrInferenceTimeout), errors.Is(err, context.DeadlineExceeded):
		return newClassification(models.ErrCodeTimeout)
	case errors.Is(err, ErrProviderUnavailable):
		return newClassification(models.ErrCodeProviderUnavailable)
	}
	return ClassifyMessage(err.Error())
}

// ClassifyMessage applies the substring policy table to a raw failure message.
// The order of the cases is significant.
func ClassifyMessage(msg string) Classification {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "api key"):
		return newClassification(models.ErrCodeInvalidAPIKey)
	case strings.Contains(m, "rate limit"), strings.Contains(m, "429"):
		return newClassification(models.ErrCodeRateLimited)
	case strings.Contains(m, "timeout"):
		return newClassification(models.ErrCodeTimeout)
	case strings.Contains(m, "context"), strings.Contains(m, "token"):
		return newClassification(models.ErrCodeContextTooLong)
	case strings.Contains(m, "parse"), strings.Contains(m, "json"):
		return newClassification(models.ErrCodeParseError)
	case strings.Contains(m, "connect"), strings.Contains(m, "network"):
		return newClassification(models.ErrCodeProviderUnavailable)
	}
	return newClassification(models.ErrCodeUnknown)
}

func newClassification(code models.ErrorCode) Classification {
	return Classification{Code: code, Retryable: retryable[code]}
}
