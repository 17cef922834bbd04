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
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Scrape.Concurrency != 5 || cfg.Scrape.MaxRetries != 3 || cfg.Scrape.MaxBatch != 10 {
		t.Fatalf("unexpected scrape defaults: %+v", cfg.Scrape)
	}
	if got := cfg.DefaultTimeout(); got != 30*time.Second {
		t.Fatalf("expected default timeout 30s, got %v", got)
	}
	if got := cfg.RetryDelay(); got != 2*time.Second {
		t.Fatalf("expected retry delay 2s, got %v", got)
	}
	if len(cfg.Scrape.RenderingHosts) == 0 {
		t.Fatal("expected built-in rendering host classification")
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  shutdown_timeout_seconds: 5
auth:
  enabled: true
  api_key: secret
scrape:
  concurrency: 8
  per_host_delay_ms: 250
  max_retries: 2
  retry_delay_seconds: 0.5
  default_timeout_seconds: 20
  min_timeout_seconds: 5
  max_timeout_seconds: 60
  max_batch: 4
  allowed_hosts: ["example.com"]
  rendering_hosts: ["spa.example.com"]
http:
  user_agent: test-agent
headless:
  enabled: true
  max_parallel: 3
  nav_timeout_seconds: 30
extract:
  rules_file: /etc/scraper/rules.yaml
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

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Scrape.Concurrency != 8 || cfg.Scrape.MaxBatch != 4 {
		t.Fatalf("expected scrape overrides to apply: %+v", cfg.Scrape)
	}
	if len(cfg.Scrape.AllowedHosts) != 1 || cfg.Scrape.AllowedHosts[0] != "example.com" {
		t.Fatalf("expected allowlist override: %+v", cfg.Scrape.AllowedHosts)
	}
	if len(cfg.Scrape.RenderingHosts) != 1 || cfg.Scrape.RenderingHosts[0] != "spa.example.com" {
		t.Fatalf("expected rendering host override: %+v", cfg.Scrape.RenderingHosts)
	}
	if cfg.HTTP.UserAgent != "test-agent" {
		t.Fatalf("expected user agent override, got %q", cfg.HTTP.UserAgent)
	}
	if cfg.Extract.RulesFile != "/etc/scraper/rules.yaml" {
		t.Fatalf("expected rules file override, got %q", cfg.Extract.RulesFile)
	}
	if got := cfg.RetryDelay(); got != 500*time.Millisecond {
		t.Fatalf("expected retry delay 500ms, got %v", got)
	}
	if got := cfg.PerHostDelay(); got != 250*time.Millisecond {
		t.Fatalf("expected per-host delay 250ms, got %v", got)
	}
	if got := cfg.ShutdownTimeout(); got != 5*time.Second {
		t.Fatalf("expected shutdown timeout 5s, got %v", got)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8080},
		Scrape: ScrapeConfig{
			Concurrency:           5,
			MaxRetries:            3,
			RetryDelaySeconds:     2.0,
			DefaultTimeoutSeconds: 30,
			MinTimeoutSeconds:     5,
			MaxTimeoutSeconds:     120,
			MaxBatch:              10,
		},
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
			name: "invalid concurrency",
			cfg: func() Config {
				c := base
				c.Scrape.Concurrency = 0
				return c
			}(),
			want: "scrape.concurrency",
		},
		{
			name: "invalid retries",
			cfg: func() Config {
				c := base
				c.Scrape.MaxRetries = 0
				return c
			}(),
			want: "scrape.max_retries",
		},
		{
			name: "invalid batch limit",
			cfg: func() Config {
				c := base
				c.Scrape.MaxBatch = 0
				return c
			}(),
			want: "scrape.max_batch",
		},
		{
			name: "inverted timeout bounds",
			cfg: func() Config {
				c := base
				c.Scrape.MinTimeoutSeconds = 60
				c.Scrape.MaxTimeoutSeconds = 30
				return c
			}(),
			want: "timeout bounds",
		},
		{
			name: "default timeout outside bounds",
			cfg: func() Config {
				c := base
				c.Scrape.DefaultTimeoutSeconds = 200
				return c
			}(),
			want: "default_timeout_seconds",
		},
		{
			name: "headless missing max parallel",
			cfg: func() Config {
				c := base
				c.Headless.Enabled = true
				c.Headless.MaxParallel = 0
				return c
			}(),
			want: "headless.max_parallel",
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
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
