package marketplace

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/solegrid/syncapi/internal/config"
	apperrors "github.com/solegrid/syncapi/pkg/errors"
)

func newTestOAuth(serverURL string) *OAuth {
	return NewOAuth(config.MarketplaceConfig{
		AuthBaseURL:  serverURL,
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RedirectURI:  "https://app.example/auth/callback",
	}, nil)
}

func TestAuthorizeURL(t *testing.T) {
	o := newTestOAuth("https://accounts.example")
	raw := o.AuthorizeURL("state-123")

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("AuthorizeURL produced invalid URL: %v", err)
	}
	if u.Path != "/authorize" {
		t.Errorf("path = %q, want /authorize", u.Path)
	}
	q := u.Query()
	if q.Get("response_type") != "code" {
		t.Errorf("response_type = %q", q.Get("response_type"))
	}
	if q.Get("client_id") != "client-1" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("state") != "state-123" {
		t.Errorf("state = %q", q.Get("state"))
	}
	if !strings.Contains(q.Get("scope"), "offline_access") {
		t.Errorf("scope = %q, want offline_access for refresh tokens", q.Get("scope"))
	}
}

func TestExchangeCode(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			t.Errorf("path = %q, want /oauth/token", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		gotForm = r.PostForm
		w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","expires_in":3600}`))
	}))
	defer srv.Close()

	state, err := newTestOAuth(srv.URL).ExchangeCode(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("ExchangeCode returned error: %v", err)
	}
	if state.AccessToken != "at-1" || state.RefreshToken != "rt-1" || state.ExpiresIn != 3600 {
		t.Errorf("token state = %+v", state)
	}
	if gotForm.Get("grant_type") != "authorization_code" {
		t.Errorf("grant_type = %q", gotForm.Get("grant_type"))
	}
	if gotForm.Get("code") != "code-1" {
		t.Errorf("code = %q", gotForm.Get("code"))
	}
	if gotForm.Get("redirect_uri") != "https://app.example/auth/callback" {
		t.Errorf("redirect_uri = %q", gotForm.Get("redirect_uri"))
	}
}

func TestExchangeCodeSurfacesUpstreamBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	_, err := newTestOAuth(srv.URL).ExchangeCode(context.Background(), "expired-code")
	var exchangeErr *apperrors.ErrAuthExchangeFailed
	if !errors.As(err, &exchangeErr) {
		t.Fatalf("want ErrAuthExchangeFailed, got %v", err)
	}
	if exchangeErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", exchangeErr.StatusCode)
	}
	if !strings.Contains(exchangeErr.Body, "invalid_grant") {
		t.Errorf("Body = %q, want the upstream error body verbatim", exchangeErr.Body)
	}
}

func TestRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("grant_type") != "refresh_token" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("refresh_token") != "rt-1" {
			t.Errorf("refresh_token = %q", r.PostForm.Get("refresh_token"))
		}
		// Refresh responses commonly omit the refresh token.
		w.Write([]byte(`{"access_token":"at-2","expires_in":3600}`))
	}))
	defer srv.Close()

	state, err := newTestOAuth(srv.URL).RefreshToken(context.Background(), "rt-1")
	if err != nil {
		t.Fatalf("RefreshToken returned error: %v", err)
	}
	if state.AccessToken != "at-2" || state.RefreshToken != "" {
		t.Errorf("token state = %+v", state)
	}
}

func TestParseTokenResponseRequiresAccessToken(t *testing.T) {
	if _, err := parseTokenResponse([]byte(`{"refresh_token":"rt-1"}`)); err == nil {
		t.Error("response without access_token should fail")
	}
	if _, err := parseTokenResponse([]byte(`not json`)); err == nil {
		t.Error("malformed response should fail")
	}
}
