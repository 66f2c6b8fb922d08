package repository

import (
	"context"
	"log/slog"
	"time"
)

// RevocationSet is one layer of the revocation store.
type RevocationSet interface {
	IsRevoked(ctx context.Context, digest string) (bool, error)
	Revoke(ctx context.Context, digest string, exp time.Time) (bool, error)
}

// CachedRevocations records every revocation in a durable store and mirrors
// it into a cache.  The durable store decides whether a revoke is new and
// answers every lookup the cache cannot confirm, so flushing or losing the
// cache never un-revokes a token.
type CachedRevocations struct {
	durable RevocationSet
	cache   RevocationSet
	logger  *slog.Logger
}

func NewCachedRevocations(durable, cache RevocationSet, logger *slog.Logger) *CachedRevocations {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRevocations{durable: durable, cache: cache, logger: logger}
}

func (r *CachedRevocations) IsRevoked(ctx context.Context, digest string) (bool, error) {
	hit, err := r.cache.IsRevoked(ctx, digest)
	if err != nil {
		r.logger.Warn("revocation cache lookup failed", "err", err)
	} else if hit {
		return true, nil
	}
	return r.durable.IsRevoked(ctx, digest)
}

func (r *CachedRevocations) Revoke(ctx context.Context, digest string, exp time.Time) (bool, error) {
	fresh, err := r.durable.Revoke(ctx, digest, exp)
	if err != nil {
		return false, err
	}
	if _, err := r.cache.Revoke(ctx, digest, exp); err != nil {
		r.logger.Warn("revocation cache write failed", "err", err)
	}
	return fresh, nil
}
