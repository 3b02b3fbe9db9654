package projector

import (
	"context"
	"log/slog"
	"time"

	"github.com/opensource-finance/ringscope/internal/domain"
)

// Cached memoizes projections of stored analyses.
// Projection is pure, so a cached graph is always equal to a fresh one.
type Cached struct {
	cache domain.Cache
	ttl   time.Duration
}

// NewCached wraps a cache. A nil cache disables memoization.
func NewCached(cache domain.Cache, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cached{cache: cache, ttl: ttl}
}

// Project returns the projection of a stored analysis for a ring filter.
// Cache errors are logged and never fail the projection.
func (c *Cached) Project(ctx context.Context, tenantID string, a *domain.Analysis, ringFilter string) *domain.ProjectedGraph {
	if c == nil || c.cache == nil || a == nil || a.ID == "" {
		if a == nil {
			return Project(nil, ringFilter)
		}
		return Project(a.Result, ringFilter)
	}

	// Unknown filters share the global entry.
	key := ringFilter
	if !Resolves(a.Result, ringFilter) {
		key = GlobalView
	}

	g, err := c.cache.GetProjection(ctx, tenantID, a.ID, key)
	if err != nil {
		slog.Warn("projection cache read failed",
			"analysis_id", a.ID,
			"filter", key,
			"error", err,
		)
	}
	if g != nil {
		return g
	}

	g = Project(a.Result, key)
	if err := c.cache.SetProjection(ctx, tenantID, a.ID, key, g, c.ttl); err != nil {
		slog.Warn("projection cache write failed",
			"analysis_id", a.ID,
			"filter", key,
			"error", err,
		)
	}
	return g
}

// Warm precomputes the global projection and one projection per ring.
func (c *Cached) Warm(ctx context.Context, tenantID string, a *domain.Analysis) int {
	if a == nil || a.Result == nil {
		return 0
	}
	c.Project(ctx, tenantID, a, GlobalView)
	warmed := 1
	for _, r := range a.Result.FraudRings {
		if err := ctx.Err(); err != nil {
			break
		}
		c.Project(ctx, tenantID, a, r.RingID)
		warmed++
	}
	return warmed
}

// Invalidate drops the cached projections of an analysis.
func (c *Cached) Invalidate(ctx context.Context, tenantID string, a *domain.Analysis) {
	if c == nil || c.cache == nil || a == nil {
		return
	}
	keys := []string{domain.ProjectionKey(a.ID, GlobalView)}
	if a.Result != nil {
		for _, r := range a.Result.FraudRings {
			keys = append(keys, domain.ProjectionKey(a.ID, r.RingID))
		}
	}
	for _, k := range keys {
		if err := c.cache.Delete(ctx, tenantID, k); err != nil {
			slog.Warn("projection cache delete failed", "key", k, "error", err)
		}
	}
}
