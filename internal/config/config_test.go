package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pricewatch/pricewatch/internal/crawler"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Browser.Headless {
		t.Fatal("expected headless browsing by default")
	}
	if cfg.Browser.ViewportWidth != 1366 || cfg.Browser.ViewportHeight != 768 {
		t.Fatalf("unexpected default viewport: %dx%d", cfg.Browser.ViewportWidth, cfg.Browser.ViewportHeight)
	}
	if cfg.Retry.MaxRetries != 3 || !cfg.Retry.ExponentialBackoff || !cfg.Retry.Jitter {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.Job.Workers != 1 {
		t.Fatalf("expected 1 worker by default, got %d", cfg.Job.Workers)
	}
	if got := cfg.Crawler.NavTimeout(); got != 30*time.Second {
		t.Fatalf("expected 30s navigation timeout, got %v", got)
	}
	if got := cfg.Crawler.Settle(); got != 300*time.Millisecond {
		t.Fatalf("expected 300ms settle window, got %v", got)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PRICEWATCH_DB_DSN", "postgres://pricewatch@localhost/pricewatch")
	t.Setenv("PRICEWATCH_BROWSER_BIN", "/usr/bin/chromium")
	t.Setenv("PRICEWATCH_BROWSER_PROXY_SERVER", "http://proxy.internal:8080")
	t.Setenv("PRICEWATCH_JOB_WORKERS", "4")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DB.DSN != "postgres://pricewatch@localhost/pricewatch" {
		t.Fatalf("expected DSN from environment, got %q", cfg.DB.DSN)
	}
	if cfg.Browser.Bin != "/usr/bin/chromium" {
		t.Fatalf("expected browser bin from environment, got %q", cfg.Browser.Bin)
	}
	if cfg.Browser.ProxyServer != "http://proxy.internal:8080" {
		t.Fatalf("expected proxy server from environment, got %q", cfg.Browser.ProxyServer)
	}
	if cfg.Job.Workers != 4 {
		t.Fatalf("expected 4 workers from environment, got %d", cfg.Job.Workers)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
logging:
  development: false
browser:
  headless: false
  user_agent: pinned-agent
  proxy_server: http://proxy.internal:8080
crawler:
  nav_timeout_seconds: 45
  min_pre_nav_delay_ms: 100
  max_pre_nav_delay_ms: 400
retry:
  max_retries: 5
  jitter: false
job:
  workers: 2
  host_rps: 1.5
db:
  dsn: postgres://pricewatch@localhost/pricewatch
targets:
  - id: 1
    name: keyboard
    url: https://smartstore.naver.com/shop/products/1234
    target_price: 89000
  - id: 2
    name: monitor
    url: https://brand.naver.com/shop/products/5678
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Development {
		t.Fatal("expected development logging to be off")
	}
	if cfg.Browser.Headless || cfg.Browser.UserAgent != "pinned-agent" {
		t.Fatalf("expected browser overrides to apply: %+v", cfg.Browser)
	}
	if got := cfg.Crawler.NavTimeout(); got != 45*time.Second {
		t.Fatalf("expected 45s navigation timeout, got %v", got)
	}
	if cfg.Retry.MaxRetries != 5 || cfg.Retry.Jitter {
		t.Fatalf("expected retry overrides to apply: %+v", cfg.Retry)
	}
	if cfg.Job.Workers != 2 || cfg.Job.HostRPS != 1.5 {
		t.Fatalf("expected job overrides to apply: %+v", cfg.Job)
	}
	if len(cfg.Targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(cfg.Targets))
	}
	first := cfg.Targets[0]
	if first.ID != 1 || first.Name != "keyboard" || first.TargetPrice == nil || *first.TargetPrice != 89000 {
		t.Fatalf("unexpected first target: %+v", first)
	}
	if cfg.Targets[1].TargetPrice != nil {
		t.Fatal("expected second target to have no target price")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Crawler: CrawlerConfig{NavTimeoutSeconds: 30},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid nav timeout",
			cfg: func() Config {
				c := base
				c.Crawler.NavTimeoutSeconds = 0
				return c
			}(),
			want: "crawler.nav_timeout_seconds",
		},
		{
			name: "negative max retries",
			cfg: func() Config {
				c := base
				c.Retry.MaxRetries = -1
				return c
			}(),
			want: "retry.max_retries",
		},
		{
			name: "inverted pre-nav delay bounds",
			cfg: func() Config {
				c := base
				c.Crawler.MinPreNavDelayMs = 500
				c.Crawler.MaxPreNavDelayMs = 100
				return c
			}(),
			want: "crawler.max_pre_nav_delay_ms",
		},
		{
			name: "inverted target delay bounds",
			cfg: func() Config {
				c := base
				c.Job.MinTargetDelayMs = 2000
				c.Job.MaxTargetDelayMs = 1000
				return c
			}(),
			want: "job.max_target_delay_ms",
		},
		{
			name: "target without url",
			cfg: func() Config {
				c := base
				c.Targets = []crawler.Target{{ID: 1, Name: "no url"}}
				return c
			}(),
			want: "targets[0].url",
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
