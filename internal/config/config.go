// Package config provides unified configuration loading for the FAQ engine.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the FAQ engine.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	KB            KBConfig            `yaml:"kb"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Cache         CacheConfig         `yaml:"cache"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Observability ObservabilityConfig `yaml:"observability"`
	Locale        LocaleConfig        `yaml:"locale"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// KBConfig holds knowledge base and data table settings.
type KBConfig struct {
	// Driver is file, sqlite or postgres.
	Driver string `yaml:"driver"`
	// Dir holds the KB JSON/YAML files for the file driver.
	Dir string `yaml:"dir"`
	// DataDir holds the resolver data tables (hours, faq, allergens, ...).
	DataDir  string        `yaml:"data_dir"`
	DSN      string        `yaml:"dsn"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// CatalogConfig holds the online store settings.
type CatalogConfig struct {
	StoreID           string        `yaml:"store_id"`
	Token             string        `yaml:"token"`
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// RetrievalConfig holds retrieval and acceptance gate settings. Zero gate values keep
// the built-in thresholds.
type RetrievalConfig struct {
	TopK                int     `yaml:"top_k"`
	MinBlend            float64 `yaml:"min_blend"`
	MinBM25             float64 `yaml:"min_bm25"`
	MinJaccard          float64 `yaml:"min_jaccard"`
	MinFuzzyWithOverlap float64 `yaml:"min_fuzzy_with_overlap"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	ServiceName    string `yaml:"service_name"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// LocaleConfig holds language defaults and table override paths. Empty paths use the
// embedded tables.
type LocaleConfig struct {
	DefaultLang  string `yaml:"default_lang"`
	LexiconPath  string `yaml:"lexicon_path"`
	IntentsPath  string `yaml:"intents_path"`
	MessagesPath string `yaml:"messages_path"`
	RulesPath    string `yaml:"rules_path"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		cfg.resolvePaths(path)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8088,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     30 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		KB: KBConfig{
			Driver:   "file",
			Dir:      "data/kb",
			DataDir:  "data",
			Watch:    true,
			Debounce: 500 * time.Millisecond,
		},
		Catalog: CatalogConfig{
			BaseURL:           "https://app.ecwid.com/api/v3",
			Timeout:           10 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        120 * time.Second,
			MaxEntries: 1000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "faq-engine:",
			},
		},
		Retrieval: RetrievalConfig{
			TopK: 3,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			ServiceName:    "faq-engine",
			MetricsEnabled: true,
		},
		Locale: LocaleConfig{
			DefaultLang: "fi",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.KB.Driver {
	case "file":
		if c.KB.Dir == "" {
			return fmt.Errorf("kb dir is required for the file driver")
		}
	case "sqlite", "postgres":
		if c.KB.DSN == "" {
			return fmt.Errorf("kb dsn is required for the %s driver", c.KB.Driver)
		}
	default:
		return fmt.Errorf("invalid kb driver: %s", c.KB.Driver)
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl cannot be negative")
	}

	if c.Retrieval.TopK < 1 || c.Retrieval.TopK > 20 {
		return fmt.Errorf("top_k must be between 1 and 20")
	}

	switch c.Locale.DefaultLang {
	case "fi", "sv", "en":
	default:
		return fmt.Errorf("invalid default language: %s", c.Locale.DefaultLang)
	}

	return nil
}

// CatalogEnabled reports whether online store credentials are set.
func (c *Config) CatalogEnabled() bool {
	return c.Catalog.StoreID != "" && c.Catalog.Token != ""
}

// SQLDriver returns the database/sql driver name for the KB driver.
func (c *Config) SQLDriver() string {
	if c.KB.Driver == "sqlite" {
		return "sqlite3"
	}
	return c.KB.Driver
}

// resolvePaths makes relative paths in the file relative to the file's directory.
func (c *Config) resolvePaths(configPath string) {
	for _, p := range []*string{
		&c.KB.Dir, &c.KB.DataDir,
		&c.Locale.LexiconPath, &c.Locale.IntentsPath, &c.Locale.MessagesPath, &c.Locale.RulesPath,
	} {
		if *p != "" {
			*p = ResolveRelativePath(configPath, *p)
		}
	}
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("KB_DIR"); v != "" {
		cfg.KB.Dir = v
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.KB.DataDir = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.KB.Driver = "sqlite"
			cfg.KB.DSN = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.KB.Driver = "postgres"
			cfg.KB.DSN = v
		}
	}

	if v := os.Getenv("KB_WATCH"); v != "" {
		cfg.KB.Watch = v == "true" || v == "1"
	}

	if v := os.Getenv("ECWID_STORE_ID"); v != "" {
		cfg.Catalog.StoreID = v
	}

	if v := os.Getenv("ECWID_TOKEN"); v != "" {
		cfg.Catalog.Token = v
	}

	if v := os.Getenv("ECWID_BASE_URL"); v != "" {
		cfg.Catalog.BaseURL = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		// Parse redis://host:port format
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	if v := os.Getenv("DEFAULT_LANG"); v != "" {
		cfg.Locale.DefaultLang = strings.ToLower(v)
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}
