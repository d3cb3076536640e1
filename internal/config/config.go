// Package config loads and validates application configuration via
// Viper. Environment variables use the PRICEWATCH_ prefix with dots
// replaced by underscores, e.g. PRICEWATCH_BROWSER_HEADLESS.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pricewatch/pricewatch/internal/crawler"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging LoggingConfig    `mapstructure:"logging"`
	Browser BrowserConfig    `mapstructure:"browser"`
	Crawler CrawlerConfig    `mapstructure:"crawler"`
	Retry   RetryConfig      `mapstructure:"retry"`
	Job     JobConfig        `mapstructure:"job"`
	DB      DBConfig         `mapstructure:"db"`
	Targets []crawler.Target `mapstructure:"targets"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// BrowserConfig controls the headless browser session.
type BrowserConfig struct {
	Headless       bool     `mapstructure:"headless"`
	Bin            string   `mapstructure:"bin"`
	UserAgent      string   `mapstructure:"user_agent"`
	ViewportWidth  int      `mapstructure:"viewport_width"`
	ViewportHeight int      `mapstructure:"viewport_height"`
	BlockedTypes   []string `mapstructure:"blocked_resource_types"`
	ProxyServer    string   `mapstructure:"proxy_server"`
	ProxyUsername  string   `mapstructure:"proxy_username"`
	ProxyPassword  string   `mapstructure:"proxy_password"`
}

// CrawlerConfig governs single-target crawl behavior.
type CrawlerConfig struct {
	NavTimeoutSeconds int `mapstructure:"nav_timeout_seconds"`
	ReadyTimeoutSec   int `mapstructure:"ready_timeout_seconds"`
	MinPreNavDelayMs  int `mapstructure:"min_pre_nav_delay_ms"`
	MaxPreNavDelayMs  int `mapstructure:"max_pre_nav_delay_ms"`
	SettleMs          int `mapstructure:"settle_ms"`
}

// RetryConfig governs per-target retry behavior.
type RetryConfig struct {
	MaxRetries         int  `mapstructure:"max_retries"`
	BaseDelayMs        int  `mapstructure:"base_delay_ms"`
	MaxDelayMs         int  `mapstructure:"max_delay_ms"`
	ExponentialBackoff bool `mapstructure:"exponential_backoff"`
	Jitter             bool `mapstructure:"jitter"`
}

// JobConfig governs batch execution.
type JobConfig struct {
	Workers          int     `mapstructure:"workers"`
	MinTargetDelayMs int     `mapstructure:"min_target_delay_ms"`
	MaxTargetDelayMs int     `mapstructure:"max_target_delay_ms"`
	HostRPS          float64 `mapstructure:"host_rps"`
	HostBurst        int     `mapstructure:"host_burst"`
}

// DBConfig controls access to the relational database. An empty DSN
// selects the in-memory result store.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICEWATCH")
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
	v.SetDefault("logging.development", true)
	v.SetDefault("browser.headless", true)
	// Empty defaults register the key with Viper; AutomaticEnv only
	// resolves PRICEWATCH_* variables for keys it knows about.
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.proxy_server", "")
	v.SetDefault("browser.proxy_username", "")
	v.SetDefault("browser.proxy_password", "")
	v.SetDefault("browser.viewport_width", 1366)
	v.SetDefault("browser.viewport_height", 768)
	v.SetDefault("crawler.nav_timeout_seconds", 30)
	v.SetDefault("crawler.ready_timeout_seconds", 10)
	v.SetDefault("crawler.min_pre_nav_delay_ms", 500)
	v.SetDefault("crawler.max_pre_nav_delay_ms", 2000)
	v.SetDefault("crawler.settle_ms", 300)
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay_ms", 2000)
	v.SetDefault("retry.max_delay_ms", 16000)
	v.SetDefault("retry.exponential_backoff", true)
	v.SetDefault("retry.jitter", true)
	v.SetDefault("job.workers", 1)
	v.SetDefault("job.min_target_delay_ms", 1000)
	v.SetDefault("job.max_target_delay_ms", 3000)
	v.SetDefault("job.host_rps", 0.5)
	v.SetDefault("job.host_burst", 1)
	v.SetDefault("db.dsn", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.nav_timeout_seconds must be > 0")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0")
	}
	if c.Crawler.MaxPreNavDelayMs < c.Crawler.MinPreNavDelayMs {
		return fmt.Errorf("crawler.max_pre_nav_delay_ms must be >= min_pre_nav_delay_ms")
	}
	if c.Job.MaxTargetDelayMs < c.Job.MinTargetDelayMs {
		return fmt.Errorf("job.max_target_delay_ms must be >= min_target_delay_ms")
	}
	if c.Job.Workers < 0 {
		return fmt.Errorf("job.workers must be >= 0")
	}
	for i, t := range c.Targets {
		if t.URL == "" {
			return fmt.Errorf("targets[%d].url must be set", i)
		}
	}
	return nil
}

// NavTimeout converts the configured navigation timeout to a duration.
func (c CrawlerConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSeconds) * time.Second
}

// ReadyTimeout converts the configured ready timeout to a duration.
func (c CrawlerConfig) ReadyTimeout() time.Duration {
	return time.Duration(c.ReadyTimeoutSec) * time.Second
}

// Settle converts the configured DOM settle window to a duration.
func (c CrawlerConfig) Settle() time.Duration {
	return time.Duration(c.SettleMs) * time.Millisecond
}
