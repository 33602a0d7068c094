package pricelist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/repair-orders/internal/cache"
	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/entity"
	"github.com/joseph-ayodele/repair-orders/internal/metrics"
)

const (
	DefaultTTL  = time.Hour
	snapshotKey = "pricelist:snapshot"
)

type snapshot struct {
	Items     []entity.PriceItem `json:"items"`
	ExpiresAt time.Time          `json:"expires_at"`
}

// Cache holds one catalog snapshot in the injected store. The snapshot is
// valid while now < expires_at; the first caller after expiry refetches
// and replaces items and expiry together. Refreshes are not serialized.
type Cache struct {
	store   cache.Store
	source  Source
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Registry
	logger  *slog.Logger
}

type CacheOption func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMetrics attaches refresh counters.
func WithMetrics(m *metrics.Registry) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

func NewCache(store cache.Store, source Source, ttl time.Duration, logger *slog.Logger, opts ...CacheOption) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{store: store, source: source, ttl: ttl, now: time.Now, logger: logger}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Items returns the current catalog. When the source fails, a stale
// snapshot is served if one exists; with no snapshot at all the error
// wraps common.ErrPriceSourceUnavailable.
func (c *Cache) Items(ctx context.Context) ([]entity.PriceItem, error) {
	snap, ok := c.load(ctx)
	if ok && c.now().Before(snap.ExpiresAt) {
		return snap.Items, nil
	}

	items, err := c.refresh(ctx)
	if err == nil {
		return items, nil
	}
	if ok {
		c.logger.Warn("pricelist.refresh.stale_served", "error", err, "expired_at", snap.ExpiresAt, "items", len(snap.Items))
		return snap.Items, nil
	}
	return nil, fmt.Errorf("%w: %v", common.ErrPriceSourceUnavailable, err)
}

// Invalidate drops the snapshot so the next caller refetches.
func (c *Cache) Invalidate(ctx context.Context) error {
	return c.store.Delete(ctx, snapshotKey)
}

func (c *Cache) refresh(ctx context.Context) ([]entity.PriceItem, error) {
	if c.source == nil {
		return nil, fmt.Errorf("no catalog source configured")
	}
	start := time.Now()
	items, err := c.source.FetchCatalog(ctx)
	if err != nil {
		c.metrics.CatalogRefresh(false, 0)
		c.logger.Error("pricelist.refresh.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	snap := snapshot{Items: items, ExpiresAt: c.now().Add(c.ttl)}
	b, err := json.Marshal(snap)
	if err == nil {
		// no store TTL: an expired snapshot stays around as the stale fallback
		err = c.store.Set(ctx, snapshotKey, b, 0)
	}
	if err != nil {
		c.logger.Warn("pricelist.snapshot.store_failed", "error", err)
	}
	c.metrics.CatalogRefresh(true, len(items))
	c.logger.Info("pricelist.refresh.ok", "items", len(items), "expires_at", snap.ExpiresAt,
		"elapsed_ms", time.Since(start).Milliseconds())
	return items, nil
}

func (c *Cache) load(ctx context.Context) (snapshot, bool) {
	b, ok, err := c.store.Get(ctx, snapshotKey)
	if err != nil {
		c.logger.Warn("pricelist.snapshot.load_failed", "error", err)
		return snapshot{}, false
	}
	if !ok {
		return snapshot{}, false
	}
	var snap snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		c.logger.Warn("pricelist.snapshot.corrupt", "error", err)
		return snapshot{}, false
	}
	return snap, true
}
