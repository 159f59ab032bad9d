package casefile

import (
	"context"
	"log/slog"
)

// FallbackRepository looks a case up in Primary and, if that fails for any
// reason, in Secondary. The Secondary error wins when both fail.
type FallbackRepository struct {
	Primary   Repository
	Secondary Repository
	Logger    *slog.Logger
}

func NewFallbackRepository(primary, secondary Repository, logger *slog.Logger) *FallbackRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackRepository{Primary: primary, Secondary: secondary, Logger: logger}
}

func (r *FallbackRepository) GetCase(ctx context.Context, key string) (*Case, error) {
	c, err := r.Primary.GetCase(ctx, key)
	if err == nil && c != nil {
		return c, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	r.Logger.Info("case not in primary store, trying fallback", "key", key, "error", err)
	return r.Secondary.GetCase(ctx, key)
}
