package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/solegrid/syncapi/internal/domain"
	"github.com/solegrid/syncapi/internal/marketplace"
	"github.com/solegrid/syncapi/internal/token"
	apperrors "github.com/solegrid/syncapi/pkg/errors"
)

const (
	// maxConcurrentPriceFetches bounds the per-variant fan-out.
	maxConcurrentPriceFetches = 5
	// priceFetchInterval paces sustained per-variant calls so a burst of
	// maxConcurrentPriceFetches is followed by roughly the old
	// between-batch delay.
	priceFetchInterval = 350 * time.Millisecond
)

// FetchService is the upstream fetch pipeline: search, variant listing and
// per-variant price lookup assembled into one ProductPriceSnapshot.
type FetchService struct {
	marketplace *marketplace.Client
	tokens      *token.Store
	loginURL    string
	limiter     *rate.Limiter
	logger      *zap.Logger

	// jitter bounds, overridable in tests
	minJitter time.Duration
	maxJitter time.Duration
}

func NewFetchService(mc *marketplace.Client, tokens *token.Store, loginURL string, logger *zap.Logger) *FetchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FetchService{
		marketplace: mc,
		tokens:      tokens,
		loginURL:    loginURL,
		limiter:     rate.NewLimiter(rate.Every(priceFetchInterval), maxConcurrentPriceFetches),
		logger:      logger,
		minJitter:   50 * time.Millisecond,
		maxJitter:   100 * time.Millisecond,
	}
}

// Fetch looks up current market asks for a SKU and returns a normalized
// snapshot. All failures come back as typed errors; nothing escapes as a
// panic.
func (s *FetchService) Fetch(ctx context.Context, sku string) (snapshot *domain.ProductPriceSnapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Fetch pipeline panic", zap.String("sku", sku), zap.Any("panic", r))
			snapshot = nil
			err = &apperrors.ErrInternal{Message: fmt.Sprintf("%v", r)}
		}
	}()

	if sku == "" {
		return nil, &apperrors.ErrValidation{Message: "sku is required"}
	}

	// Auth gate: a missing access token gets one refresh attempt before the
	// caller is pointed at the login flow.
	if _, ok := s.tokens.AccessToken(ctx); !ok {
		if !s.tokens.Refresh(ctx) {
			return nil, &apperrors.ErrUnauthorized{
				Message:  "no marketplace token; authorize first",
				LoginURL: s.loginURL,
			}
		}
	}

	hit, err := s.marketplace.SearchProduct(ctx, sku)
	if err != nil {
		var upstream *apperrors.ErrUpstream
		if errors.As(err, &upstream) {
			// Search exhaustion is indistinguishable from "not listed" for
			// the caller.
			return nil, &apperrors.ErrNotFound{Resource: "marketplace product", Query: sku + " (search exhausted)"}
		}
		return nil, s.withLoginURL(err)
	}
	if hit == nil {
		return nil, &apperrors.ErrNotFound{Resource: "marketplace product", Query: sku}
	}

	variants, err := s.marketplace.ListVariants(ctx, hit.ID)
	if err != nil {
		return nil, s.withLoginURL(err)
	}

	quotes := make([]domain.VariantQuote, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPriceFetches)
	for i, v := range variants {
		i, v := i, v
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				return err
			}
			if err := s.jitter(gctx); err != nil {
				return err
			}
			price, err := s.marketplace.MarketData(gctx, hit.ID, v.ID)
			if err != nil {
				var unauthorized *apperrors.ErrUnauthorized
				if errors.As(err, &unauthorized) {
					return err
				}
				// One variant without price data (404, exhausted retries)
				// does not fail the whole fetch.
				if status, ok := marketplace.StatusCode(err); ok && status == http.StatusNotFound {
					s.logger.Debug("No market data for variant", zap.String("variant_id", v.ID))
				} else {
					s.logger.Warn("Market data lookup failed, recording no-ask",
						zap.String("variant_id", v.ID), zap.Error(err))
				}
				price = nil
			}
			quotes[i] = domain.VariantQuote{
				SizeEU:               v.SizeEU,
				SizeUS:               v.SizeUS,
				AskPrice:             price,
				MarketplaceVariantID: v.ID,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, s.withLoginURL(err)
	}

	return &domain.ProductPriceSnapshot{
		Title:    hit.Title,
		SKU:      sku,
		ImageURL: hit.ImageURL,
		Brand:    hit.Brand,
		Variants: quotes,
	}, nil
}

// withLoginURL fills the login hint on unauthorized errors raised below the
// pipeline, where the login route is not known.
func (s *FetchService) withLoginURL(err error) error {
	var unauthorized *apperrors.ErrUnauthorized
	if errors.As(err, &unauthorized) && unauthorized.LoginURL == "" {
		unauthorized.LoginURL = s.loginURL
	}
	return err
}

// jitter sleeps a small random delay before an upstream call so concurrent
// workers do not burst in lockstep.
func (s *FetchService) jitter(ctx context.Context) error {
	if s.maxJitter <= 0 {
		return nil
	}
	delay := s.minJitter
	if spread := s.maxJitter - s.minJitter; spread > 0 {
		delay += time.Duration(rand.Int63n(int64(spread)))
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
