package marketplace

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/solegrid/syncapi/internal/config"
	apperrors "github.com/solegrid/syncapi/pkg/errors"
)

// fakeTokens is a TokenProvider with a fixed token and scripted refresh.
type fakeTokens struct {
	token      string
	refreshOK  bool
	refreshed  atomic.Int32
	afterToken string
}

func (f *fakeTokens) AccessToken(ctx context.Context) (string, bool) {
	if f.token == "" {
		return "", false
	}
	return f.token, true
}

func (f *fakeTokens) Refresh(ctx context.Context) bool {
	f.refreshed.Add(1)
	if f.refreshOK && f.afterToken != "" {
		f.token = f.afterToken
	}
	return f.refreshOK
}

func newTestClient(t *testing.T, serverURL string, tokens TokenProvider) *Client {
	t.Helper()
	c := NewClient(config.MarketplaceConfig{
		APIBaseURL:   serverURL,
		APIKey:       "test-key",
		CurrencyCode: "EUR",
	}, tokens, nil)
	// Shrink backoff so retry paths run in test time.
	c.searchPolicy = retryPolicy{maxAttempts: 3, baseDelay: time.Millisecond, transportDelay: time.Millisecond}
	c.variantPolicy = retryPolicy{maxAttempts: 3, baseDelay: time.Millisecond, transportDelay: time.Millisecond}
	return c
}

func TestSearchProduct(t *testing.T) {
	var gotQuery, gotAPIKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotAPIKey = r.Header.Get("x-api-key")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"results":[{"productId":"abc-123","title":"Air Max 90","brand":"Nike","styleId":"FV5029-100","media":{"imageUrl":"https://img.example/1.jpg"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, &fakeTokens{token: "tok-1"})
	hit, err := c.SearchProduct(context.Background(), "FV5029-100")
	if err != nil {
		t.Fatalf("SearchProduct returned error: %v", err)
	}
	if hit == nil {
		t.Fatal("SearchProduct returned nil hit")
	}
	if hit.ID != "abc-123" || hit.Title != "Air Max 90" || hit.Brand != "Nike" || hit.StyleID != "FV5029-100" {
		t.Errorf("unexpected hit: %+v", hit)
	}
	if hit.ImageURL != "https://img.example/1.jpg" {
		t.Errorf("ImageURL = %q", hit.ImageURL)
	}
	if gotQuery != "FV5029-100" {
		t.Errorf("query param = %q, want the SKU", gotQuery)
	}
	if gotAPIKey != "test-key" {
		t.Errorf("x-api-key = %q", gotAPIKey)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestSearchProductNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, &fakeTokens{token: "tok"})
	hit, err := c.SearchProduct(context.Background(), "NOPE-000")
	if err != nil {
		t.Fatalf("SearchProduct returned error: %v", err)
	}
	if hit != nil {
		t.Errorf("expected nil hit for empty results, got %+v", hit)
	}
}

func TestSearchProductRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, &fakeTokens{token: "tok"})
	_, err := c.SearchProduct(context.Background(), "FV5029-100")

	var upstream *apperrors.ErrUpstream
	if !errors.As(err, &upstream) {
		t.Fatalf("want ErrUpstream after exhausted retries, got %v", err)
	}
	if upstream.StatusCode != http.StatusTooManyRequests {
		t.Errorf("ErrUpstream.StatusCode = %d, want 429", upstream.StatusCode)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d requests, want exactly 3", got)
	}
}

func TestSearchProductNonRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, &fakeTokens{token: "tok"})
	_, err := c.SearchProduct(context.Background(), "FV5029-100")
	if err == nil {
		t.Fatal("expected error on 400")
	}
	if code, ok := StatusCode(err); !ok || code != http.StatusBadRequest {
		t.Errorf("StatusCode = (%d, %v), want (400, true)", code, ok)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d requests, want 1 (no retry on 400)", got)
	}
}

func TestGetWithRetryRefreshesOn401(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"results":[{"productId":"p1","title":"T"}]}`))
	}))
	defer srv.Close()

	tokens := &fakeTokens{token: "stale", refreshOK: true, afterToken: "fresh"}
	c := newTestClient(t, srv.URL, tokens)

	hit, err := c.SearchProduct(context.Background(), "FV5029-100")
	if err != nil {
		t.Fatalf("SearchProduct after refresh returned error: %v", err)
	}
	if hit == nil || hit.ID != "p1" {
		t.Fatalf("unexpected hit after refresh: %+v", hit)
	}
	if got := tokens.refreshed.Load(); got != 1 {
		t.Errorf("Refresh called %d times, want 1", got)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server saw %d requests, want 2 (401 then success)", got)
	}
}

func TestGetWithRetryUnauthorizedWhenRefreshFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := &fakeTokens{token: "stale", refreshOK: false}
	c := newTestClient(t, srv.URL, tokens)

	_, err := c.SearchProduct(context.Background(), "FV5029-100")
	var unauth *apperrors.ErrUnauthorized
	if !errors.As(err, &unauth) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if got := tokens.refreshed.Load(); got != 1 {
		t.Errorf("Refresh called %d times, want 1", got)
	}
}

func TestListVariants(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "bare array",
			body: `[
				{"variantId":"v1","sizeChart":{"defaultConversion":{"size":"US 9","type":"us"},"availableConversions":[{"size":"42.5","type":"eu"},{"size":"US 9","type":"us"}]}},
				{"variantId":"v2","sizeChart":{"defaultConversion":{"size":"US 9.5","type":"us"}}}
			]`,
		},
		{
			name: "wrapped under variants",
			body: `{"variants":[
				{"variantId":"v1","sizeChart":{"defaultConversion":{"size":"US 9","type":"us"},"availableConversions":[{"size":"42.5","type":"eu"}]}},
				{"variantId":"v2","sizeChart":{"defaultConversion":{"size":"US 9.5","type":"us"}}}
			]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL, &fakeTokens{token: "tok"})
			variants, err := c.ListVariants(context.Background(), "p1")
			if err != nil {
				t.Fatalf("ListVariants returned error: %v", err)
			}
			if len(variants) != 2 {
				t.Fatalf("got %d variants, want 2", len(variants))
			}
			if variants[0].ID != "v1" || variants[0].SizeEU != "42.5" || variants[0].SizeUS != "9" {
				t.Errorf("variant[0] = %+v, want EU 42.5 / US 9", variants[0])
			}
			// No EU conversion: falls back to the default US size.
			if variants[1].SizeEU != "9.5" || variants[1].SizeUS != "9.5" {
				t.Errorf("variant[1] = %+v, want EU/US fallback 9.5", variants[1])
			}
		})
	}
}

func TestMarketData(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *float64
	}{
		{"top-level amount", `{"lowestAskAmount":120}`, fp(120)},
		{"numeric string", `{"lowestAskAmount":"120.50"}`, fp(120.50)},
		{"nested market", `{"market":{"lowestAsk":95}}`, fp(95)},
		{"legacy top-level", `{"lowestAsk":80}`, fp(80)},
		{"no ask", `{}`, nil},
		{"empty string ask", `{"lowestAskAmount":""}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("currencyCode"); got != "EUR" {
					t.Errorf("currencyCode = %q, want EUR", got)
				}
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL, &fakeTokens{token: "tok"})
			ask, err := c.MarketData(context.Background(), "p1", "v1")
			if err != nil {
				t.Fatalf("MarketData returned error: %v", err)
			}
			if (ask == nil) != (tt.want == nil) {
				t.Fatalf("ask = %v, want %v", ask, tt.want)
			}
			if ask != nil && *ask != *tt.want {
				t.Errorf("ask = %v, want %v", *ask, *tt.want)
			}
		})
	}
}

func TestNormalizeSize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"US 9", "9"},
		{" US 10.5 ", "10.5"},
		{"42.5", "42.5"},
		{"", "N/A"},
		{"  ", "N/A"},
	}
	for _, tt := range tests {
		if got := NormalizeSize(tt.in); got != tt.want {
			t.Errorf("NormalizeSize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func fp(v float64) *float64 { return &v }
