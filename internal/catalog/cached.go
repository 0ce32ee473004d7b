package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/kotileipomo/faq-engine/internal/cache"
	"github.com/kotileipomo/faq-engine/internal/kb"
	"github.com/kotileipomo/faq-engine/internal/observability"
)

// DefaultFetchTimeout bounds a single provider call on a cache miss.
const DefaultFetchTimeout = 10 * time.Second

// snapshot is the cached form of one provider response. Unavailable marks a cached
// failure so repeated reads inside the TTL do not hammer a broken store.
type snapshot[T any] struct {
	Items       []T  `json:"items"`
	Unavailable bool `json:"unavailable,omitempty"`
}

// CachedProvider serves provider responses through a cache. Reads never fail: a provider
// error yields an empty result with StatusUnavailable.
type CachedProvider struct {
	provider Provider
	cache    cache.Client
	ttl      time.Duration
	timeout  time.Duration
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// CachedOption configures a CachedProvider.
type CachedOption func(*CachedProvider)

// WithTTL overrides the cache TTL.
func WithTTL(ttl time.Duration) CachedOption {
	return func(p *CachedProvider) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

// WithFetchTimeout overrides the per-call provider timeout.
func WithFetchTimeout(d time.Duration) CachedOption {
	return func(p *CachedProvider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMetrics records cache lookups and provider failures.
func WithMetrics(m *observability.Metrics) CachedOption {
	return func(p *CachedProvider) { p.metrics = m }
}

// NewCachedProvider wraps provider with c.
func NewCachedProvider(provider Provider, c cache.Client, logger *observability.Logger, opts ...CachedOption) *CachedProvider {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if provider == nil {
		provider = Unavailable{}
	}
	p := &CachedProvider{
		provider: provider,
		cache:    c,
		ttl:      cache.DefaultTTL,
		timeout:  DefaultFetchTimeout,
		logger:   logger.WithComponent("catalog"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Products returns up to limit products, optionally in one category.
func (p *CachedProvider) Products(ctx context.Context, limit int, category *int64) ([]Product, Status) {
	cat := "all"
	if category != nil {
		cat = strconv.FormatInt(*category, 10)
	}
	key := cache.Key("products", strconv.Itoa(limit), cat)
	return fetch(ctx, p, key, "products", func(ctx context.Context) ([]Product, error) {
		return p.provider.Products(ctx, limit, category)
	})
}

// Categories returns up to limit categories.
func (p *CachedProvider) Categories(ctx context.Context, limit int) ([]Category, Status) {
	key := cache.Key("categories", strconv.Itoa(limit))
	return fetch(ctx, p, key, "categories", func(ctx context.Context) ([]Category, error) {
		return p.provider.Categories(ctx, limit)
	})
}

// Blackouts returns the blackout ranges of all enabled shipping options.
func (p *CachedProvider) Blackouts(ctx context.Context) ([]kb.BlackoutRange, Status) {
	opts, status := fetch(ctx, p, cache.Key("shipping", "options"), "shipping_options",
		func(ctx context.Context) ([]ShippingOption, error) {
			return p.provider.ShippingOptions(ctx)
		})
	var out []kb.BlackoutRange
	for _, o := range opts {
		if !o.Enabled {
			continue
		}
		for _, b := range o.BlackoutDates {
			if b.From != "" && b.To != "" {
				out = append(out, b)
			}
		}
	}
	return out, status
}

// Invalidate drops every cached catalog response.
func (p *CachedProvider) Invalidate(ctx context.Context) error {
	for _, prefix := range []string{"products:", "categories:", "shipping:"} {
		if err := p.cache.DeleteByPrefix(ctx, prefix); err != nil {
			return err
		}
	}
	return nil
}

func fetch[T any](ctx context.Context, p *CachedProvider, key, op string, load func(context.Context) ([]T, error)) ([]T, Status) {
	log := p.logger.WithContext(ctx)

	if data, err := p.cache.Get(ctx, key); err == nil {
		var snap snapshot[T]
		if err := json.Unmarshal(data, &snap); err == nil {
			p.metrics.ObserveCache(true)
			if snap.Unavailable {
				return nil, StatusUnavailable
			}
			return snap.Items, StatusCached
		}
		log.Warn().Str("key", key).Msg("Discarding undecodable cache entry")
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		log.Warn().Err(err).Str("key", key).Msg("Cache read failed")
	}
	p.metrics.ObserveCache(false)

	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	items, err := load(fetchCtx)
	snap := snapshot[T]{Items: items}
	status := StatusFresh
	if err != nil {
		p.metrics.ObserveCatalogError(op)
		if errors.Is(err, ErrNotConfigured) {
			log.Debug().Str("operation", op).Msg("Catalog not configured")
		} else {
			log.Warn().Err(err).Str("operation", op).Dur("took", time.Since(start)).Msg("Catalog fetch failed, serving empty result")
		}
		snap = snapshot[T]{Unavailable: true}
		status = StatusUnavailable
	} else {
		log.Debug().Str("operation", op).Int("items", len(items)).Dur("took", time.Since(start)).Msg("Catalog fetched")
	}

	// a cancelled caller must not poison the cache for everyone else
	if err != nil && ctx.Err() != nil {
		return nil, status
	}
	if data, mErr := json.Marshal(snap); mErr == nil {
		if sErr := p.cache.Set(ctx, key, data, p.ttl); sErr != nil {
			log.Warn().Err(sErr).Str("key", key).Msg("Cache write failed")
		}
	}
	return snap.Items, status
}
