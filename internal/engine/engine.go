// Package engine wires intent routing, the deterministic resolvers and knowledge base
// retrieval into the two caller contracts: Answer, which returns a structured reply or
// ErrNoDeterministicMatch, and Respond, the complete chat pipeline.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kotileipomo/faq-engine/internal/intent"
	"github.com/kotileipomo/faq-engine/internal/kb"
	"github.com/kotileipomo/faq-engine/internal/observability"
	"github.com/kotileipomo/faq-engine/internal/resolvers"
	"github.com/kotileipomo/faq-engine/internal/retrieval"
)

// ErrNoDeterministicMatch tells the caller to try knowledge base retrieval.
var ErrNoDeterministicMatch = errors.New("no deterministic match")

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("query cannot be empty")

// Invalidator drops cached catalog data. catalog.CachedProvider implements it.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Config holds engine configuration.
type Config struct {
	// DataDir holds the resolver data tables. Empty keeps the tables given at construction.
	DataDir string
	TopK    int
	Gate    retrieval.GateConfig
}

// Engine answers queries. It is safe for concurrent use; Reload swaps the index, the
// data tables and the classifier without blocking readers.
type Engine struct {
	logger   *observability.Logger
	metrics  *observability.Metrics
	store    *retrieval.Store
	resolver *resolvers.Resolver
	rules    *Rules
	catalog  Invalidator
	config   Config

	classifier atomic.Pointer[intent.Classifier]
}

// Option customizes an Engine.
type Option func(*Engine)

// WithRules replaces the embedded conversational rules.
func WithRules(r *Rules) Option {
	return func(e *Engine) {
		if r != nil {
			e.rules = r
		}
	}
}

// WithCatalogCache makes Reload also drop cached catalog data.
func WithCatalogCache(inv Invalidator) Option {
	return func(e *Engine) { e.catalog = inv }
}

// WithMetrics records intents, retrieval outcomes and latencies.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine over store, resolver and classifier.
func New(store *retrieval.Store, resolver *resolvers.Resolver, classifier *intent.Classifier, cfg Config, logger *observability.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = retrieval.DefaultTopK
	}
	if cfg.Gate == (retrieval.GateConfig{}) {
		cfg.Gate = retrieval.DefaultGateConfig()
	}
	if classifier == nil {
		classifier = intent.NewClassifier(intent.DefaultTables(), resolver.Data().Aliases.AllTerms())
	}
	e := &Engine{
		logger:   logger.WithComponent("engine"),
		store:    store,
		resolver: resolver,
		rules:    DefaultRules(),
		config:   cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.classifier.Store(classifier)
	return e
}

// Classifier returns the classifier in effect.
func (e *Engine) Classifier() *intent.Classifier {
	return e.classifier.Load()
}

// Resolver returns the engine's resolver.
func (e *Engine) Resolver() *resolvers.Resolver {
	return e.resolver
}

// Store returns the retrieval store.
func (e *Engine) Store() *retrieval.Store {
	return e.store
}

// Rules returns the conversational rules.
func (e *Engine) Rules() *Rules {
	return e.rules
}

// Answer classifies query and dispatches to its resolver. It returns
// ErrNoDeterministicMatch when no intent applies or the FAQ resolver has nothing to say.
func (e *Engine) Answer(ctx context.Context, query, lang string) (resolvers.Reply, error) {
	in := e.Classifier().Detect(query)
	e.metrics.ObserveIntent(string(in))

	e.logger.WithContext(ctx).Debug().
		Str("intent", string(in)).
		Str("lang", lang).
		Msg("Intent detected")

	r := e.resolver
	switch in {
	case intent.Hours:
		return r.Hours(lang), nil
	case intent.Blackout:
		return r.Blackout(ctx, query, lang), nil
	case intent.Menu:
		return r.Menu(ctx, lang, query), nil
	case intent.Allergens:
		return r.Allergens(query, lang), nil
	case intent.ProductDetail:
		if rep, ok := r.ProductDetail(ctx, query, lang); ok {
			return rep, nil
		}
		return r.Allergens(query, lang), nil
	case intent.Diet:
		return r.DietOptions(ctx, query, lang), nil
	case intent.FAQ:
		if rep, ok := r.FAQ(query, lang); ok {
			return rep, nil
		}
	case intent.ProductSuggest:
		return r.ProductSuggest(ctx, query, lang), nil
	}
	return resolvers.Reply{}, ErrNoDeterministicMatch
}

// ReloadResult summarizes a reload.
type ReloadResult struct {
	Entries int           `json:"entries"`
	Version uint64        `json:"version"`
	FAQ     int           `json:"faq"`
	Aliases int           `json:"aliases"`
	Took    time.Duration `json:"took"`
}

// Reload re-reads the data tables, refreshes the classifier's product aliases, drops
// cached catalog data and rebuilds the index. The data tables are swapped even when the
// index rebuild fails; in that case the previous index stays in effect.
func (e *Engine) Reload(ctx context.Context) (ReloadResult, error) {
	start := time.Now()
	log := e.logger.WithContext(ctx)

	data := e.resolver.Data()
	if e.config.DataDir != "" {
		fresh := kb.LoadData(e.config.DataDir, e.logger)
		e.resolver.SetData(fresh)
		data = &fresh
	}
	e.classifier.Store(e.Classifier().WithAliases(data.Aliases.AllTerms()))

	if e.catalog != nil {
		if err := e.catalog.Invalidate(ctx); err != nil {
			log.Warn().Err(err).Msg("Catalog cache invalidation failed")
		}
	}

	res := ReloadResult{FAQ: len(data.FAQ), Aliases: len(data.Aliases.Items)}
	snap, err := e.store.Reload(ctx)
	res.Entries, res.Version = snap.Len(), snap.Version
	res.Took = time.Since(start)
	if err != nil {
		return res, fmt.Errorf("reload: %w", err)
	}

	log.Info().
		Int("entries", res.Entries).
		Int("faq", res.FAQ).
		Int("aliases", res.Aliases).
		Dur("took", res.Took).
		Msg("Engine reloaded")
	return res, nil
}

// CheckPickup validates a pickup time ("YYYY-MM-DDTHH:MM") against the blackout dates
// and the opening hours. It returns nil or one of kb's pickup errors.
func (e *Engine) CheckPickup(ctx context.Context, iso string) error {
	t, err := kb.ParsePickup(iso)
	if err != nil {
		return err
	}
	if kb.IsBlackout(t, e.resolver.BlackoutRanges(ctx)) {
		return kb.ErrPickupClosed
	}
	return e.resolver.Data().Hours.ValidatePickup(iso)
}
