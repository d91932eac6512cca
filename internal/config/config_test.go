package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("expected default port 9000, got %d", cfg.Server.Port)
	}
	if cfg.PubSub.BookTopic != "scraper-book-v1" {
		t.Fatalf("expected default book topic, got %q", cfg.PubSub.BookTopic)
	}
	if cfg.Tasks.ProjectID != "test-project" || cfg.Tasks.Location != "here" || cfg.Tasks.Queue != "test-queue" {
		t.Fatalf("expected default queue coordinates, got %+v", cfg.Tasks)
	}
	if cfg.Indexer.PopularityThreshold != 5 {
		t.Fatalf("expected default threshold 5, got %d", cfg.Indexer.PopularityThreshold)
	}
	if got := cfg.CatalogBackoff(); got != 500*time.Millisecond {
		t.Fatalf("expected 500ms backoff, got %v", got)
	}
	if got := cfg.CacheTTL(); got != 10*time.Minute {
		t.Fatalf("expected 10m cache TTL, got %v", got)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9100
  request_timeout_seconds: 30
auth:
  enabled: true
  api_key: secret
catalog:
  base_url: http://catalog:8999
  timeout_seconds: 5
  max_retries: 2
  cache_ttl_seconds: 60
db:
  dsn: postgres://indexer@localhost/indexer
tasks:
  emulator_host: localhost:8123
pubsub:
  project_id: prod-project
audit:
  enabled: false
indexer:
  popularity_threshold: 10
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Fatalf("expected port 9100, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Catalog.BaseURL != "http://catalog:8999" || cfg.Catalog.MaxRetries != 2 {
		t.Fatalf("expected catalog overrides to apply: %+v", cfg.Catalog)
	}
	if cfg.PubSub.ProjectID != "prod-project" {
		t.Fatalf("expected pubsub project override, got %q", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.UserReviewTopic != "scraper-user-review-v1" {
		t.Fatalf("expected untouched defaults to survive, got %q", cfg.PubSub.UserReviewTopic)
	}
	if cfg.Audit.Enabled {
		t.Fatalf("expected audit disabled")
	}
	if cfg.Indexer.PopularityThreshold != 10 {
		t.Fatalf("expected threshold 10, got %d", cfg.Indexer.PopularityThreshold)
	}
	if got := cfg.RequestTimeout(); got != 30*time.Second {
		t.Fatalf("expected request timeout 30s, got %v", got)
	}
	if got := cfg.CacheTTL(); got != time.Minute {
		t.Fatalf("expected cache TTL 1m, got %v", got)
	}
}

// TestLoadEnvOverrides covers env-only deployments: keys whose default is the
// zero value must still be visible when set through the environment.
func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("INDEXER_SERVER_PORT", "9555")
	t.Setenv("INDEXER_DB_DSN", "postgres://indexer@db/indexer")
	t.Setenv("INDEXER_TASKS_EMULATOR_HOST", "localhost:8123")
	t.Setenv("INDEXER_AUTH_ENABLED", "true")
	t.Setenv("INDEXER_AUTH_API_KEY", "env-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9555 {
		t.Fatalf("expected port 9555 from env, got %d", cfg.Server.Port)
	}
	if cfg.DB.DSN != "postgres://indexer@db/indexer" {
		t.Fatalf("expected dsn from env, got %q", cfg.DB.DSN)
	}
	if cfg.Tasks.EmulatorHost != "localhost:8123" {
		t.Fatalf("expected emulator host from env, got %q", cfg.Tasks.EmulatorHost)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "env-secret" {
		t.Fatalf("expected auth from env, got %+v", cfg.Auth)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 9000},
		Catalog: CatalogConfig{BaseURL: "http://localhost:8999", TimeoutSeconds: 15},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "missing catalog base url",
			cfg: func() Config {
				c := base
				c.Catalog.BaseURL = ""
				return c
			}(),
			want: "catalog.base_url",
		},
		{
			name: "invalid catalog timeout",
			cfg: func() Config {
				c := base
				c.Catalog.TimeoutSeconds = 0
				return c
			}(),
			want: "catalog.timeout_seconds",
		},
		{
			name: "negative threshold",
			cfg: func() Config {
				c := base
				c.Indexer.PopularityThreshold = -1
				return c
			}(),
			want: "indexer.popularity_threshold",
		},
		{
			name: "auth missing api key",
			cfg: func() Config {
				c := base
				c.Auth.Enabled = true
				return c
			}(),
			want: "auth.api_key",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error about %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
