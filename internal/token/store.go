package token

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/solegrid/syncapi/internal/domain"
)

// Storage persists token state. Load returns (nil, nil) when no state
// has been saved yet.
type Storage interface {
	Load() (*domain.TokenState, error)
	Save(*domain.TokenState) error
}

// GrantClient posts OAuth grants to the marketplace token endpoint.
// Implemented by marketplace.OAuth.
type GrantClient interface {
	ExchangeCode(ctx context.Context, code string) (*domain.TokenState, error)
	RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenState, error)
}

// Store owns the process-wide marketplace token pair: lazy load from
// durable storage, write-through persistence on exchange/refresh.
type Store struct {
	storage Storage
	grants  GrantClient
	logger  *zap.Logger

	mu     sync.Mutex
	state  *domain.TokenState
	loaded bool
}

// NewStore creates a token store backed by the given storage.
func NewStore(storage Storage, grants GrantClient, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		storage: storage,
		grants:  grants,
		logger:  logger,
	}
}

// ExchangeCode posts an authorization-code grant and persists the merged
// token state. The upstream error body is surfaced verbatim on failure.
func (s *Store) ExchangeCode(ctx context.Context, code string) error {
	state, err := s.grants.ExchangeCode(ctx, code)
	if err != nil {
		return err
	}
	if err := s.persist(*state); err != nil {
		return err
	}
	s.logger.Info("Marketplace token exchanged and saved")
	return nil
}

// AccessToken returns the cached access token, lazily loading persisted
// state on first use. ok is false when no token is known.
func (s *Store) AccessToken(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked()
	if s.state == nil || s.state.AccessToken == "" {
		return "", false
	}
	return s.state.AccessToken, true
}

// Refresh posts a refresh-token grant using the cached refresh token.
// Returns false (logged, non-fatal) when no refresh token is held or the
// marketplace rejects it.
func (s *Store) Refresh(ctx context.Context) bool {
	s.mu.Lock()
	s.ensureLoadedLocked()
	var refreshToken string
	if s.state != nil {
		refreshToken = s.state.RefreshToken
	}
	s.mu.Unlock()

	if refreshToken == "" {
		s.logger.Warn("Token refresh skipped: no refresh token held")
		return false
	}
	state, err := s.grants.RefreshToken(ctx, refreshToken)
	if err != nil {
		s.logger.Warn("Token refresh rejected by marketplace", zap.Error(err))
		return false
	}
	if err := s.persist(*state); err != nil {
		s.logger.Error("Failed to persist refreshed token", zap.Error(err))
		return false
	}
	s.logger.Info("Marketplace token refreshed")
	return true
}

// persist writes the merged state through to storage before updating the
// in-memory cache, so a crash between write and cache-update cannot lose
// a token.
func (s *Store) persist(next domain.TokenState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked()

	current := domain.TokenState{}
	if s.state != nil {
		current = *s.state
	}
	merged := current.Merge(next)
	if err := s.storage.Save(&merged); err != nil {
		return err
	}
	s.state = &merged
	return nil
}

func (s *Store) ensureLoadedLocked() {
	if s.loaded {
		return
	}
	s.loaded = true
	state, err := s.storage.Load()
	if err != nil {
		s.logger.Warn("Failed to load persisted token state", zap.Error(err))
		return
	}
	s.state = state
}
