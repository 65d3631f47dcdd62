package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/solegrid/syncapi/internal/config"
	apperrors "github.com/solegrid/syncapi/pkg/errors"
)

// TokenProvider supplies the bearer token for catalog calls and performs
// the one silent refresh allowed on a 401. Implemented by token.Store.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, bool)
	Refresh(ctx context.Context) bool
}

// ProductHit is the authoritative first result of a catalog search.
type ProductHit struct {
	ID       string
	Title    string
	Brand    string
	StyleID  string
	ImageURL string
}

// Variant is one marketplace variant with normalized sizes.
type Variant struct {
	ID     string
	SizeEU string
	SizeUS string
}

// Client performs authenticated catalog lookups against the marketplace
// API with retry/backoff and token-refresh-on-401.
type Client struct {
	apiBase    string
	apiKey     string
	currency   string
	tokens     TokenProvider
	httpClient *http.Client
	logger     *zap.Logger

	searchPolicy  retryPolicy
	variantPolicy retryPolicy
}

func NewClient(cfg config.MarketplaceConfig, tokens TokenProvider, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiBase:    strings.TrimSuffix(cfg.APIBaseURL, "/"),
		apiKey:     cfg.APIKey,
		currency:   cfg.CurrencyCode,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		// Search rate limits harder than the variant endpoints.
		searchPolicy:  retryPolicy{maxAttempts: 3, baseDelay: 4 * time.Second, transportDelay: time.Second},
		variantPolicy: retryPolicy{maxAttempts: 3, baseDelay: 2 * time.Second, transportDelay: time.Second},
	}
}

// SearchProduct queries catalog search by SKU. Returns (nil, nil) when the
// marketplace has no matching product.
func (c *Client) SearchProduct(ctx context.Context, sku string) (*ProductHit, error) {
	q := url.Values{}
	q.Set("query", sku)
	q.Set("pageSize", "1")
	q.Set("pageNumber", "1")
	q.Set("dataType", "product")

	body, err := c.getWithRetry(ctx, "catalog search", c.searchPolicy, c.apiBase+"/catalog/search?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}
	hits := listUnder(payload, "results", "data", "products")
	if len(hits) == 0 {
		return nil, nil
	}
	first, _ := hits[0].(map[string]interface{})
	if first == nil {
		return nil, nil
	}
	hit := &ProductHit{
		ID:      firstStr(first, "productId", "id", "uuid"),
		Title:   firstStr(first, "title", "name"),
		Brand:   firstStr(first, "brand"),
		StyleID: firstStr(first, "styleId", "style_id"),
	}
	if media, ok := first["media"].(map[string]interface{}); ok {
		hit.ImageURL = firstStr(media, "imageUrl", "thumbUrl")
	}
	if hit.ImageURL == "" {
		hit.ImageURL = firstStr(first, "imageUrl", "image")
	}
	if hit.ID == "" {
		return nil, nil
	}
	return hit, nil
}

// ListVariants fetches all variants for a product with sizes normalized:
// EU conversion preferred, default (US) conversion as fallback, "N/A" when
// the size chart has neither.
func (c *Client) ListVariants(ctx context.Context, productID string) ([]Variant, error) {
	body, err := c.getWithRetry(ctx, "variant listing", c.variantPolicy,
		fmt.Sprintf("%s/catalog/products/%s/variants", c.apiBase, url.PathEscape(productID)))
	if err != nil {
		return nil, err
	}

	raw, err := variantList(body)
	if err != nil {
		return nil, err
	}
	variants := make([]Variant, 0, len(raw))
	for _, item := range raw {
		vm, _ := item.(map[string]interface{})
		if vm == nil {
			continue
		}
		id := firstStr(vm, "variantId", "id")
		if id == "" {
			continue
		}
		eu, us := deriveSizes(vm)
		variants = append(variants, Variant{ID: id, SizeEU: eu, SizeUS: us})
	}
	return variants, nil
}

// MarketData fetches the current lowest ask for one variant. Returns
// (nil, nil) when the marketplace has no ask for the size.
func (c *Client) MarketData(ctx context.Context, productID, variantID string) (*float64, error) {
	body, err := c.getWithRetry(ctx, "market data", c.variantPolicy,
		fmt.Sprintf("%s/catalog/products/%s/variants/%s/market-data?currencyCode=%s",
			c.apiBase, url.PathEscape(productID), url.PathEscape(variantID), url.QueryEscape(c.currency)))
	if err != nil {
		return nil, err
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse market data: %w", err)
	}
	if ask, ok := numAt(payload, "lowestAskAmount"); ok {
		return &ask, nil
	}
	if market, ok := payload["market"].(map[string]interface{}); ok {
		if ask, ok := numAt(market, "lowestAsk"); ok {
			return &ask, nil
		}
	}
	if ask, ok := numAt(payload, "lowestAsk"); ok {
		return &ask, nil
	}
	return nil, nil
}

// getWithRetry runs one GET under the given policy: exponential backoff on
// 429/502/503/504/524, fixed delay on transport errors, and a single
// token-refresh-and-retry on 401 that does not count against the budget.
func (c *Client) getWithRetry(ctx context.Context, op string, policy retryPolicy, rawURL string) ([]byte, error) {
	refreshed := false
	lastStatus := 0
	var lastErr error

	for attempt := 0; attempt < policy.maxAttempts; {
		body, err := c.get(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if status, ok := StatusCode(err); ok {
			lastStatus = status
			if status == http.StatusUnauthorized {
				if !refreshed {
					refreshed = true
					if c.tokens.Refresh(ctx) {
						continue
					}
				}
				return nil, &apperrors.ErrUnauthorized{Message: fmt.Sprintf("%s: marketplace rejected token", op)}
			}
			if !isRetryableStatus(status) {
				return nil, err
			}
			c.logger.Warn("Retryable marketplace response",
				zap.String("operation", op),
				zap.Int("status", status),
				zap.Int("attempt", attempt+1),
			)
			if err := sleepWithContext(ctx, policy.backoff(attempt)); err != nil {
				return nil, err
			}
			attempt++
			continue
		}

		// Transport error: fixed short delay, then retry.
		c.logger.Warn("Marketplace transport error",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if err := sleepWithContext(ctx, policy.transportDelay); err != nil {
			return nil, err
		}
		attempt++
	}

	msg := "retry budget exhausted"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	return nil, &apperrors.ErrUpstream{Operation: op, StatusCode: lastStatus, Message: msg}
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if tok, ok := c.tokens.AccessToken(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPStatusError(resp.StatusCode, resp.Status, body)
	}
	return body, nil
}

// variantList accepts both a bare JSON array and an object wrapping the
// array under "variants" or "data".
func variantList(body []byte) ([]interface{}, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var raw []interface{}
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("parse variants response: %w", err)
		}
		return raw, nil
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse variants response: %w", err)
	}
	return listUnder(payload, "variants", "data"), nil
}

// deriveSizes reads sizeChart.availableConversions / defaultConversion.
// Apparel variants usually carry no EU conversion and fall back to the
// default (US) size.
func deriveSizes(vm map[string]interface{}) (eu, us string) {
	eu, us = "N/A", "N/A"
	chart, _ := vm["sizeChart"].(map[string]interface{})
	if chart == nil {
		return eu, us
	}
	if def, ok := chart["defaultConversion"].(map[string]interface{}); ok {
		if size := firstStr(def, "size"); size != "" {
			us = NormalizeSize(size)
		}
	}
	if conversions, ok := chart["availableConversions"].([]interface{}); ok {
		for _, c := range conversions {
			cm, _ := c.(map[string]interface{})
			if cm == nil {
				continue
			}
			if strings.HasPrefix(strings.ToLower(firstStr(cm, "type")), "eu") {
				if size := firstStr(cm, "size"); size != "" {
					eu = NormalizeSize(size)
					break
				}
			}
		}
	}
	if eu == "N/A" && us != "N/A" {
		eu = us
	}
	return eu, us
}

// NormalizeSize strips a leading "US " token and trims whitespace;
// an empty size becomes "N/A".
func NormalizeSize(size string) string {
	s := strings.TrimSpace(size)
	s = strings.TrimSpace(strings.TrimPrefix(s, "US "))
	if s == "" {
		return "N/A"
	}
	return s
}

func listUnder(m map[string]interface{}, keys ...string) []interface{} {
	for _, key := range keys {
		if list, ok := m[key].([]interface{}); ok {
			return list
		}
	}
	return nil
}

func firstStr(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// numAt reads a numeric field that the marketplace serializes either as a
// JSON number or a numeric string.
func numAt(m map[string]interface{}, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case string:
		if v == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
