package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const maxErrorBody = 512

// StatusError converts a non-2xx provider response into an error Classify understands.
func StatusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(body))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w (status %d)", provider, ErrInvalidAPIKey, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w (status %d)", provider, ErrRateLimited, resp.StatusCode)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%s: %w (status %d)", provider, ErrInferenceTimeout, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%s: %w: status %d: %s", provider, ErrProviderUnavailable, resp.StatusCode, msg)
	}
	return fmt.Errorf("%s: status %d: %s", provider, resp.StatusCode, msg)
}

// TransportError maps http.Client failures to sentinel errors.
func TransportError(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %v", provider, ErrInferenceTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s: %w: %v", provider, ErrInferenceTimeout, err)
	}
	return fmt.Errorf("%s: %w: %v", provider, ErrProviderUnavailable, err)
}

// WithTimeoutCap bounds ctx by d. An earlier caller deadline still wins.
func WithTimeoutCap(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// LatencyMs returns the elapsed milliseconds since start as a pointer, for ConnectionResult.
func LatencyMs(start time.Time) *int64 {
	ms := time.Since(start).Milliseconds()
	return &ms
}
