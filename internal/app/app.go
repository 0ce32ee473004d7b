// Package app assembles the engine and its dependencies from configuration. Both
// binaries build on it.
package app

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kotileipomo/faq-engine/internal/cache"
	"github.com/kotileipomo/faq-engine/internal/catalog"
	"github.com/kotileipomo/faq-engine/internal/config"
	"github.com/kotileipomo/faq-engine/internal/engine"
	"github.com/kotileipomo/faq-engine/internal/intent"
	"github.com/kotileipomo/faq-engine/internal/kb"
	"github.com/kotileipomo/faq-engine/internal/observability"
	"github.com/kotileipomo/faq-engine/internal/resolvers"
	"github.com/kotileipomo/faq-engine/internal/retrieval"
	"github.com/kotileipomo/faq-engine/internal/textnorm"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "faq_engine"

// App holds the assembled engine and the resources it owns.
type App struct {
	Config  *config.Config
	Logger  *observability.Logger
	Metrics *observability.Metrics
	Engine  *engine.Engine
	// Catalog is nil when no store credentials are configured.
	Catalog *catalog.CachedProvider
	// SQL is set for the sqlite and postgres KB drivers.
	SQL *kb.SQLSource

	db    *sql.DB
	cache cache.Client
}

// New builds an App and loads the knowledge base and data tables once.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*App, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	a := &App{Config: cfg, Logger: logger}
	if cfg.Observability.MetricsEnabled {
		a.Metrics = observability.NewMetrics(MetricsNamespace)
	}

	lex, err := loadLexicon(cfg.Locale.LexiconPath)
	if err != nil {
		return nil, err
	}
	tables, err := intent.LoadTables(cfg.Locale.IntentsPath)
	if err != nil {
		return nil, err
	}
	locale, err := loadLocale(cfg.Locale.MessagesPath)
	if err != nil {
		return nil, err
	}
	rules, err := loadRules(cfg.Locale.RulesPath)
	if err != nil {
		return nil, err
	}

	src, err := a.openSource(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var cat resolvers.Catalog
	opts := []engine.Option{engine.WithRules(rules), engine.WithMetrics(a.Metrics)}
	if cfg.CatalogEnabled() {
		provider, err := a.openCatalog(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Catalog = provider
		cat = provider
		opts = append(opts, engine.WithCatalogCache(provider))
	} else {
		logger.Info().Msg("Online store not configured, catalog answers disabled")
	}

	store := retrieval.NewStore(lex, src, logger, a.Metrics)
	resolver := resolvers.New(cat, kb.Data{}, locale, logger)
	a.Engine = engine.New(store, resolver, intent.NewClassifier(tables, nil), engine.Config{
		DataDir: cfg.KB.DataDir,
		TopK:    cfg.Retrieval.TopK,
		Gate:    GateConfig(cfg.Retrieval),
	}, logger, opts...)

	if _, err := a.Engine.Reload(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("initial load: %w", err)
	}
	return a, nil
}

// GateConfig overlays the configured thresholds on the default gate.
func GateConfig(rc config.RetrievalConfig) retrieval.GateConfig {
	g := retrieval.DefaultGateConfig()
	if rc.MinBlend > 0 {
		g.MinBlend = rc.MinBlend
	}
	if rc.MinBM25 > 0 {
		g.MinBM25 = rc.MinBM25
	}
	if rc.MinJaccard > 0 {
		g.MinJaccard = rc.MinJaccard
	}
	if rc.MinFuzzyWithOverlap > 0 {
		g.MinFuzzyWithOverlap = rc.MinFuzzyWithOverlap
	}
	return g
}

// Watcher returns a watcher that reloads the engine when KB files or data tables
// change, or nil when watching is disabled.
func (a *App) Watcher() *kb.Watcher {
	if !a.Config.KB.Watch {
		return nil
	}
	dirs := []string{a.Config.KB.DataDir}
	if a.Config.KB.Driver == "file" {
		dirs = append(dirs, a.Config.KB.Dir)
	}
	return kb.NewWatcher(func(ctx context.Context) {
		if _, err := a.Engine.Reload(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("Reload after file change failed")
		}
	}, a.Config.KB.Debounce, a.Logger, dirs...)
}

// Close releases the database and cache connections.
func (a *App) Close() error {
	var firstErr error
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			firstErr = err
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *App) openSource(ctx context.Context) (kb.Source, error) {
	cfg := a.Config.KB
	if cfg.Driver == "file" {
		return kb.NewFileSource(cfg.Dir, a.Logger), nil
	}

	driver := a.Config.SQLDriver()
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	a.db = db

	src := kb.NewSQLSource(db, driver, a.Logger)
	if err := src.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	a.SQL = src
	return src, nil
}

func (a *App) openCatalog(ctx context.Context) (*catalog.CachedProvider, error) {
	cc := a.Config.Catalog
	client, err := catalog.NewEcwidClient(catalog.EcwidConfig{
		StoreID:           cc.StoreID,
		Token:             cc.Token,
		BaseURL:           cc.BaseURL,
		Timeout:           cc.Timeout,
		RequestsPerSecond: cc.RequestsPerSecond,
		Burst:             cc.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog client: %w", err)
	}

	c, err := a.openCache(ctx)
	if err != nil {
		return nil, err
	}
	a.cache = c
	return catalog.NewCachedProvider(client, c, a.Logger,
		catalog.WithTTL(a.Config.Cache.TTL),
		catalog.WithFetchTimeout(cc.Timeout),
		catalog.WithMetrics(a.Metrics),
	), nil
}

func (a *App) openCache(ctx context.Context) (cache.Client, error) {
	cc := a.Config.Cache
	if cc.Driver != "redis" {
		return cache.NewMemoryClient(cc.MaxEntries), nil
	}
	c, err := cache.NewRedisClient(ctx, cache.RedisConfig{
		Addr:     cc.Redis.Addr,
		Password: cc.Redis.Password,
		DB:       cc.Redis.DB,
		PoolSize: cc.Redis.PoolSize,
		Prefix:   cc.Redis.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return c, nil
}

func loadLexicon(path string) (*textnorm.Lexicon, error) {
	if path == "" {
		return textnorm.DefaultLexicon(), nil
	}
	return textnorm.LoadLexicon(path)
}

func loadLocale(path string) (*resolvers.Locale, error) {
	if path == "" {
		return resolvers.DefaultLocale(), nil
	}
	return resolvers.LoadLocale(path)
}

func loadRules(path string) (*engine.Rules, error) {
	if path == "" {
		return engine.DefaultRules(), nil
	}
	return engine.LoadRules(path)
}
