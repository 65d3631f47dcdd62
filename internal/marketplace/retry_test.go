package marketplace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestIsRetryableStatus(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusGatewayTimeout, true},
		{statusCloudflareTimeout, true},
		{http.StatusOK, false},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
		{http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.code), func(t *testing.T) {
			if got := isRetryableStatus(tt.code); got != tt.want {
				t.Errorf("isRetryableStatus(%d) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestRetryPolicyBackoff(t *testing.T) {
	policy := retryPolicy{maxAttempts: 3, baseDelay: 2 * time.Second, transportDelay: time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, 0},
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
	}

	for _, tt := range tests {
		if got := policy.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestStatusCode(t *testing.T) {
	err := newHTTPStatusError(http.StatusBadGateway, "502 Bad Gateway", []byte("upstream down"))
	if code, ok := StatusCode(err); !ok || code != http.StatusBadGateway {
		t.Errorf("StatusCode(httpStatusError) = (%d, %v), want (502, true)", code, ok)
	}
	if code, ok := StatusCode(fmt.Errorf("wrapped: %w", err)); !ok || code != http.StatusBadGateway {
		t.Errorf("StatusCode(wrapped) = (%d, %v), want (502, true)", code, ok)
	}
	if _, ok := StatusCode(errors.New("dial tcp: connection refused")); ok {
		t.Error("StatusCode(transport error) should report ok=false")
	}
}

func TestHTTPStatusErrorMessage(t *testing.T) {
	err := newHTTPStatusError(http.StatusTooManyRequests, "429 Too Many Requests", []byte("  slow down  "))
	want := "marketplace request failed: 429 Too Many Requests: slow down"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	err = newHTTPStatusError(http.StatusBadGateway, "502 Bad Gateway", nil)
	want = "marketplace request failed: 502 Bad Gateway"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestSleepWithContext(t *testing.T) {
	if err := sleepWithContext(context.Background(), 0); err != nil {
		t.Errorf("zero delay should return immediately, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepWithContext(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context should interrupt sleep, got %v", err)
	}
}
