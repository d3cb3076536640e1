// Package cmd defines the CLI commands for the pricewatch executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pricewatch/pricewatch/internal/browser"
	clocksys "github.com/pricewatch/pricewatch/internal/clock/system"
	"github.com/pricewatch/pricewatch/internal/config"
	"github.com/pricewatch/pricewatch/internal/crawler"
	"github.com/pricewatch/pricewatch/internal/extractor"
	"github.com/pricewatch/pricewatch/internal/logging"
	"github.com/pricewatch/pricewatch/internal/notify"
	"github.com/pricewatch/pricewatch/internal/orchestrator"
	"github.com/pricewatch/pricewatch/internal/policy/ratelimit"
	"github.com/pricewatch/pricewatch/internal/retry"
	"github.com/pricewatch/pricewatch/internal/store"
	memstore "github.com/pricewatch/pricewatch/internal/store/memory"
	pgstore "github.com/pricewatch/pricewatch/internal/store/postgres"
)

var cfgFile string

// app bundles the wired subsystems the subcommands run against.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	sessions *browser.Manager
	orch     *orchestrator.Orchestrator
	closers  []func()
}

func (a *app) close() {
	if a.sessions != nil {
		if err := a.sessions.Shutdown(); err != nil {
			a.logger.Warn("browser shutdown failed", zap.Error(err))
		}
	}
	for _, closer := range a.closers {
		closer()
	}
	_ = a.logger.Sync()
}

// buildApp loads configuration and wires every subsystem together.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	a.sessions = browser.NewManager(browser.Config{
		Headless:             cfg.Browser.Headless,
		Bin:                  cfg.Browser.Bin,
		UserAgent:            cfg.Browser.UserAgent,
		ViewportWidth:        cfg.Browser.ViewportWidth,
		ViewportHeight:       cfg.Browser.ViewportHeight,
		DefaultTimeout:       cfg.Crawler.NavTimeout(),
		BlockedResourceTypes: cfg.Browser.BlockedTypes,
		Proxy: browser.ProxyConfig{
			Server:   cfg.Browser.ProxyServer,
			Username: cfg.Browser.ProxyUsername,
			Password: cfg.Browser.ProxyPassword,
		},
	}, logger.Named("browser"))

	clock := clocksys.New()

	ext := extractor.New(cfg.Crawler.Settle(), logger.Named("extractor"))

	policy := retry.Policy{
		MaxRetries:         cfg.Retry.MaxRetries,
		BaseDelay:          time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond,
		MaxDelay:           time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
		ExponentialBackoff: cfg.Retry.ExponentialBackoff,
		Jitter:             cfg.Retry.Jitter,
	}

	cr := crawler.New(a.sessions, ext, policy, clock, crawler.Config{
		NavigationTimeout: cfg.Crawler.NavTimeout(),
		ReadyTimeout:      cfg.Crawler.ReadyTimeout(),
		MinPreNavDelay:    time.Duration(cfg.Crawler.MinPreNavDelayMs) * time.Millisecond,
		MaxPreNavDelay:    time.Duration(cfg.Crawler.MaxPreNavDelayMs) * time.Millisecond,
	}, logger.Named("crawler"))

	var results store.ResultStore
	if cfg.DB.DSN != "" {
		pg, err := pgstore.New(ctx, cfg.DB.DSN)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		results = pg
	} else {
		results = memstore.New()
	}

	pacer := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Job.HostRPS,
		DefaultBurst: cfg.Job.HostBurst,
	})
	alerter := notify.NewAlerter(notify.NewLogSink(logger.Named("notify")), logger.Named("notify"))

	a.orch = orchestrator.New(cr, results, pacer, alerter, clock, orchestrator.Config{
		Workers:        cfg.Job.Workers,
		MinTargetDelay: time.Duration(cfg.Job.MinTargetDelayMs) * time.Millisecond,
		MaxTargetDelay: time.Duration(cfg.Job.MaxTargetDelayMs) * time.Millisecond,
	}, logger.Named("orchestrator"))

	return a, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricewatch",
		Short: "Tracks product prices on supported storefronts",
		Long: `pricewatch drives a headless browser over configured product pages,
extracts prices and availability, and records the results for price
history and target-price alerts.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newCheckCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
