package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/solegrid/syncapi/internal/config"
	"github.com/solegrid/syncapi/internal/domain"
	apperrors "github.com/solegrid/syncapi/pkg/errors"
)

// OAuth posts authorization-code and refresh-token grants to the
// marketplace token endpoint.
type OAuth struct {
	authBase     string
	clientID     string
	clientSecret string
	redirectURI  string
	httpClient   *http.Client
	logger       *zap.Logger
}

func NewOAuth(cfg config.MarketplaceConfig, logger *zap.Logger) *OAuth {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuth{
		authBase:     strings.TrimSuffix(cfg.AuthBaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
	}
}

// AuthorizeURL builds the marketplace authorization redirect for the
// login flow. state is echoed back on the callback.
func (o *OAuth) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", o.clientID)
	q.Set("redirect_uri", o.redirectURI)
	q.Set("scope", "offline_access openid")
	q.Set("state", state)
	return o.authBase + "/authorize?" + q.Encode()
}

// ExchangeCode posts an authorization_code grant. The upstream error body
// is carried verbatim in ErrAuthExchangeFailed.
func (o *OAuth) ExchangeCode(ctx context.Context, code string) (*domain.TokenState, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", o.clientID)
	form.Set("client_secret", o.clientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", o.redirectURI)

	status, body, err := o.postToken(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("token exchange request: %w", err)
	}
	if status != http.StatusOK {
		return nil, &apperrors.ErrAuthExchangeFailed{StatusCode: status, Body: string(body)}
	}
	return parseTokenResponse(body)
}

// RefreshToken posts a refresh_token grant.
func (o *OAuth) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenState, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", o.clientID)
	form.Set("client_secret", o.clientSecret)
	form.Set("refresh_token", refreshToken)

	status, body, err := o.postToken(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("token refresh request: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("token refresh rejected: status %d: %s", status, string(body))
	}
	return parseTokenResponse(body)
}

func (o *OAuth) postToken(ctx context.Context, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.authBase+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func parseTokenResponse(body []byte) (*domain.TokenState, error) {
	var state domain.TokenState
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, fmt.Errorf("parse token response: %w", err)
	}
	if state.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token: %s", string(body))
	}
	return &state, nil
}
