// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ShutdownTimeout int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ScrapeConfig governs orchestration, retries and acquisition pacing.
type ScrapeConfig struct {
	Concurrency           int      `mapstructure:"concurrency"`
	PerHostDelayMs        int      `mapstructure:"per_host_delay_ms"`
	MaxRetries            int      `mapstructure:"max_retries"`
	RetryDelaySeconds     float64  `mapstructure:"retry_delay_seconds"`
	DefaultTimeoutSeconds int      `mapstructure:"default_timeout_seconds"`
	MinTimeoutSeconds     int      `mapstructure:"min_timeout_seconds"`
	MaxTimeoutSeconds     int      `mapstructure:"max_timeout_seconds"`
	MaxBatch              int      `mapstructure:"max_batch"`
	AllowedHosts          []string `mapstructure:"allowed_hosts"`
	RenderingHosts        []string `mapstructure:"rendering_hosts"`
}

// HTTPConfig configures the lightweight HTTP fetcher.
type HTTPConfig struct {
	UserAgent string `mapstructure:"user_agent"`
}

// HeadlessConfig configures the browser rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// ExtractConfig points at an optional rule set override.
type ExtractConfig struct {
	RulesFile string `mapstructure:"rules_file"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("scrape.concurrency", 5)
	v.SetDefault("scrape.per_host_delay_ms", 1000)
	v.SetDefault("scrape.max_retries", 3)
	v.SetDefault("scrape.retry_delay_seconds", 2.0)
	v.SetDefault("scrape.default_timeout_seconds", 30)
	v.SetDefault("scrape.min_timeout_seconds", 5)
	v.SetDefault("scrape.max_timeout_seconds", 120)
	v.SetDefault("scrape.max_batch", 10)
	v.SetDefault("scrape.rendering_hosts", defaultRenderingHosts())
	v.SetDefault("http.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("logging.development", true)
}

// defaultRenderingHosts lists storefronts known to serve useless markup
// without script execution.
func defaultRenderingHosts() []string {
	return []string{
		"cb2.com",
		"walmart.com",
		"wayfair.com",
		"overstock.com",
		"homedepot.com",
		"lowes.com",
		"target.com",
		"bestbuy.com",
		"macys.com",
		"nordstrom.com",
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scrape.Concurrency <= 0 {
		return fmt.Errorf("scrape.concurrency must be > 0")
	}
	if c.Scrape.MaxRetries <= 0 {
		return fmt.Errorf("scrape.max_retries must be > 0")
	}
	if c.Scrape.RetryDelaySeconds < 0 {
		return fmt.Errorf("scrape.retry_delay_seconds must be >= 0")
	}
	if c.Scrape.MaxBatch <= 0 {
		return fmt.Errorf("scrape.max_batch must be > 0")
	}
	if c.Scrape.MinTimeoutSeconds <= 0 || c.Scrape.MaxTimeoutSeconds < c.Scrape.MinTimeoutSeconds {
		return fmt.Errorf("scrape timeout bounds are invalid")
	}
	if c.Scrape.DefaultTimeoutSeconds < c.Scrape.MinTimeoutSeconds ||
		c.Scrape.DefaultTimeoutSeconds > c.Scrape.MaxTimeoutSeconds {
		return fmt.Errorf("scrape.default_timeout_seconds must sit inside the timeout bounds")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// DefaultTimeout returns the per-request acquisition budget.
func (c Config) DefaultTimeout() time.Duration {
	return time.Duration(c.Scrape.DefaultTimeoutSeconds) * time.Second
}

// RetryDelay returns the base pause between retries of one fetcher kind.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Scrape.RetryDelaySeconds * float64(time.Second))
}

// PerHostDelay returns the minimum spacing between fetches of one host.
func (c Config) PerHostDelay() time.Duration {
	return time.Duration(c.Scrape.PerHostDelayMs) * time.Millisecond
}

// NavTimeout returns the headless navigation budget.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeout) * time.Second
}
