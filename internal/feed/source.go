package feed

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"og-mm-bot/internal/retry"
)

// ErrNoValidPrice is returned when neither the live midpoint nor the stored
// fallback gives a usable reference price.
var ErrNoValidPrice = errors.New("feed: no valid price")

// Midpointer is the HTTP midpoint lookup. *Client satisfies it.
type Midpointer interface {
	Midpoint(ctx context.Context, tokenID string) (float64, error)
}

// Cache is the optional live-stream midpoint cache. *Stream satisfies it.
type Cache interface {
	Midpoint(tokenID string) (float64, bool)
}

// Source resolves a reference price for a token: stream cache first, then
// the HTTP midpoint behind retries, then the caller-supplied fallback.
type Source struct {
	client Midpointer
	cache  Cache
	opts   retry.Options
	log    *zap.Logger
}

func NewSource(client Midpointer, cache Cache, opts retry.Options, log *zap.Logger) *Source {
	return &Source{client: client, cache: cache, opts: opts, log: log}
}

// ReferencePrice returns a price strictly inside (0, 1). The fallback is
// used only when the live midpoint cannot be obtained or is out of range;
// an out-of-range fallback yields ErrNoValidPrice.
func (s *Source) ReferencePrice(ctx context.Context, tokenID string, fallback float64) (float64, error) {
	if s.cache != nil {
		if mid, ok := s.cache.Midpoint(tokenID); ok && valid(mid) {
			return mid, nil
		}
	}
	mid, err := retry.DoValue(ctx, s.log, "midpoint", s.opts, func(ctx context.Context) (float64, error) {
		return s.client.Midpoint(ctx, tokenID)
	})
	if err == nil && valid(mid) {
		return mid, nil
	}
	if err != nil && s.log != nil {
		s.log.Debug("midpoint lookup failed, using fallback",
			zap.String("token_id", tokenID),
			zap.Error(err))
	}
	if valid(fallback) {
		return fallback, nil
	}
	return 0, ErrNoValidPrice
}

func valid(p float64) bool {
	return p > 0 && p < 1
}
