package marketplace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// httpStatusError carries a non-2xx marketplace response.
type httpStatusError struct {
	statusCode int
	status     string
	body       string
}

func (e *httpStatusError) Error() string {
	if strings.TrimSpace(e.body) == "" {
		return fmt.Sprintf("marketplace request failed: %s", e.status)
	}
	return fmt.Sprintf("marketplace request failed: %s: %s", e.status, e.body)
}

func newHTTPStatusError(statusCode int, status string, body []byte) error {
	return &httpStatusError{
		statusCode: statusCode,
		status:     status,
		body:       strings.TrimSpace(string(body)),
	}
}

// StatusCode extracts the HTTP status from a marketplace call error.
// ok is false when the error was not an HTTP status error (e.g. transport).
func StatusCode(err error) (int, bool) {
	var httpErr *httpStatusError
	if errors.As(err, &httpErr) {
		return httpErr.statusCode, true
	}
	return 0, false
}

// Cloudflare returns 524 when the origin times out behind it.
const statusCloudflareTimeout = 524

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, statusCloudflareTimeout:
		return true
	}
	return false
}

// retryPolicy bounds one class of marketplace call: maxAttempts tries,
// exponential backoff from baseDelay on retryable statuses, fixed
// transportDelay on transport errors.
type retryPolicy struct {
	maxAttempts    int
	baseDelay      time.Duration
	transportDelay time.Duration
}

func (p retryPolicy) backoff(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}
	return p.baseDelay << attempt
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
