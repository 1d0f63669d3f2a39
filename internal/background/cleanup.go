package background

import (
	"context"
	"log/slog"
	"time"
)

// TokenStore clears verification and reset tokens whose expiry has passed.
type TokenStore interface {
	ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// TokenSweeper periodically nulls expired one-time tokens so stale links
// cannot be matched and the token indexes stay small.
type TokenSweeper struct {
	store    TokenStore
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
}

// NewTokenSweeper creates a new token sweeper
func NewTokenSweeper(store TokenStore, logger *slog.Logger, interval time.Duration) *TokenSweeper {
	return &TokenSweeper{
		store:    store,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start runs a sweep immediately and then once per interval until ctx is
// cancelled or Stop is called. It blocks; run it in a goroutine.
func (s *TokenSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopCh:
			s.logger.Info("token sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("token sweeper context cancelled")
			return
		}
	}
}

func (s *TokenSweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cleared, err := s.store.ClearExpiredTokens(sweepCtx, s.now())
	if err != nil {
		s.logger.Error("failed to clear expired tokens", slog.Any("error", err))
		return
	}

	if cleared > 0 {
		s.logger.Info("expired tokens cleared", slog.Int64("accounts", cleared))
	}
}

// Stop signals the sweeper to stop
func (s *TokenSweeper) Stop() {
	close(s.stopCh)
}
