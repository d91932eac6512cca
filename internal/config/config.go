// Package config loads and validates indexer configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	DB      DBConfig      `mapstructure:"db"`
	Tasks   TasksConfig   `mapstructure:"tasks"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Indexer IndexerConfig `mapstructure:"indexer"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port              int `mapstructure:"port"`
	RequestTimeoutSec int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles for operator routes.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CatalogConfig configures the downstream book recommender API client.
type CatalogConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	CacheTTLSeconds  int    `mapstructure:"cache_ttl_seconds"`
}

// DBConfig controls access to the debounce ledger database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// TasksConfig wires the Cloud Tasks queue that feeds the scraper.
type TasksConfig struct {
	ProjectID      string `mapstructure:"project_id"`
	Location       string `mapstructure:"location"`
	Queue          string `mapstructure:"queue"`
	ScraperBaseURL string `mapstructure:"scraper_base_url"`
	EmulatorHost   string `mapstructure:"emulator_host"`
}

// PubSubConfig names the inbound scraper topics and outbound audit topics.
type PubSubConfig struct {
	ProjectID            string `mapstructure:"project_id"`
	BookTopic            string `mapstructure:"book_topic"`
	UserReviewTopic      string `mapstructure:"user_review_topic"`
	ProfileTopic         string `mapstructure:"profile_topic"`
	BookAuditTopic       string `mapstructure:"book_audit_topic"`
	UserReviewAuditTopic string `mapstructure:"user_review_audit_topic"`
	ProfileAuditTopic    string `mapstructure:"profile_audit_topic"`
}

// AuditConfig controls buffering and batching for the audit hub.
type AuditConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	BufferSize     int  `mapstructure:"buffer_size"`
	MaxBatchEvents int  `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int  `mapstructure:"max_batch_wait_ms"`
	SinkTimeoutSec int  `mapstructure:"sink_timeout_seconds"`
}

// IndexerConfig governs the debounce and enqueue policies.
type IndexerConfig struct {
	PopularityThreshold int `mapstructure:"popularity_threshold"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// setDefaults registers every key, including the ones whose default is the
// zero value: AutomaticEnv only surfaces keys viper already knows about, so a
// key without a default would be invisible when set purely through the
// environment.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 9000)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("catalog.base_url", "http://localhost:8999")
	v.SetDefault("catalog.timeout_seconds", 15)
	v.SetDefault("catalog.max_retries", 3)
	v.SetDefault("catalog.backoff_initial_ms", 500)
	v.SetDefault("catalog.cache_ttl_seconds", 600)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("tasks.project_id", "test-project")
	v.SetDefault("tasks.location", "here")
	v.SetDefault("tasks.queue", "test-queue")
	v.SetDefault("tasks.scraper_base_url", "http://localhost:6800")
	v.SetDefault("tasks.emulator_host", "")
	v.SetDefault("pubsub.project_id", "test-project")
	v.SetDefault("pubsub.book_topic", "scraper-book-v1")
	v.SetDefault("pubsub.user_review_topic", "scraper-user-review-v1")
	v.SetDefault("pubsub.profile_topic", "scraper-profile-v1")
	v.SetDefault("pubsub.book_audit_topic", "indexer-book-audit-v1")
	v.SetDefault("pubsub.user_review_audit_topic", "indexer-user-review-audit-v1")
	v.SetDefault("pubsub.profile_audit_topic", "indexer-profile-audit-v1")
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.buffer_size", 4096)
	v.SetDefault("audit.max_batch_events", 500)
	v.SetDefault("audit.max_batch_wait_ms", 500)
	v.SetDefault("audit.sink_timeout_seconds", 10)
	v.SetDefault("indexer.popularity_threshold", 5)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog.base_url must be set")
	}
	if c.Catalog.TimeoutSeconds <= 0 {
		return fmt.Errorf("catalog.timeout_seconds must be > 0")
	}
	if c.Indexer.PopularityThreshold < 0 {
		return fmt.Errorf("indexer.popularity_threshold must be >= 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// CatalogTimeout converts the catalog timeout config into a duration.
func (c Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Catalog.TimeoutSeconds) * time.Second
}

// CatalogBackoff converts the retry backoff config into a duration.
func (c Config) CatalogBackoff() time.Duration {
	return time.Duration(c.Catalog.BackoffInitialMs) * time.Millisecond
}

// CacheTTL converts the user-books cache TTL config into a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Catalog.CacheTTLSeconds) * time.Second
}

// RequestTimeout converts the server request timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSec) * time.Second
}

// BatchWait converts the audit batching wait config into a duration.
func (c Config) BatchWait() time.Duration {
	return time.Duration(c.Audit.MaxBatchWaitMs) * time.Millisecond
}

// SinkTimeout converts the audit sink timeout config into a duration.
func (c Config) SinkTimeout() time.Duration {
	return time.Duration(c.Audit.SinkTimeoutSec) * time.Second
}
