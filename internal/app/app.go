// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/thingsss/scraping-service/internal/api"
	"github.com/thingsss/scraping-service/internal/config"
	"github.com/thingsss/scraping-service/internal/extract"
	collyfetcher "github.com/thingsss/scraping-service/internal/fetcher/colly"
	headlessfetcher "github.com/thingsss/scraping-service/internal/fetcher/headless"
	"github.com/thingsss/scraping-service/internal/logging"
	"github.com/thingsss/scraping-service/internal/scrape"
)

// App holds the shared, long-lived services for the scraping service.
// It is initialized once at startup and torn down on shutdown.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	orchestrator *scrape.Orchestrator
	server       *api.Server
	headless     *headlessfetcher.Fetcher
}

// New builds the full service graph from configuration. It fails fast if any
// component cannot be constructed.
func New(cfg config.Config, logger *zap.Logger, clock scrape.Clock) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pipeline := extract.NewPipeline(extract.DefaultRuleSet())
	if cfg.Extract.RulesFile != "" {
		rules, err := extract.LoadRuleSet(cfg.Extract.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("load extraction rules: %w", err)
		}
		pipeline.Reload(rules)
		logger.Info("extraction rules loaded", zap.String("path", cfg.Extract.RulesFile))
	}

	governor, err := scrape.NewGovernor(cfg.Scrape.Concurrency, cfg.PerHostDelay())
	if err != nil {
		return nil, fmt.Errorf("build governor: %w", err)
	}

	lightweight := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.DefaultTimeout(),
	})

	fetchers := []scrape.Fetcher{lightweight}
	var headless *headlessfetcher.Fetcher
	if cfg.Headless.Enabled {
		headless, err = headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.HTTP.UserAgent,
			NavigationTimeout: cfg.NavTimeout(),
		})
		if err != nil {
			logger.Warn("rendering fetcher init failed", zap.Error(err))
			headless = nil
			fetchers = append(fetchers, headlessfetcher.NewNoop())
		} else {
			fetchers = append(fetchers, headless)
		}
	} else {
		fetchers = append(fetchers, headlessfetcher.NewNoop())
	}

	controller, err := scrape.NewController(
		fetchers,
		governor,
		scrape.RetrySettings{
			MaxRetries: cfg.Scrape.MaxRetries,
			RetryDelay: cfg.RetryDelay(),
		},
		clock,
		logging.Component(logger, "retry"),
	)
	if err != nil {
		return nil, fmt.Errorf("build retry controller: %w", err)
	}

	selector := scrape.NewSelector(cfg.Scrape.RenderingHosts, scrape.DefaultSiteProfiles())

	orchestrator, err := scrape.NewOrchestrator(scrape.OrchestratorConfig{
		Selector:   selector,
		Controller: controller,
		Extractor:  pipeline,
		Allowlist:  scrape.NewHostMatcher(cfg.Scrape.AllowedHosts),
		Limits: scrape.Limits{
			DefaultTimeout: cfg.DefaultTimeout(),
			MinTimeout:     time.Duration(cfg.Scrape.MinTimeoutSeconds) * time.Second,
			MaxTimeout:     time.Duration(cfg.Scrape.MaxTimeoutSeconds) * time.Second,
		},
		MaxBatch: cfg.Scrape.MaxBatch,
		Clock:    clock,
		Logger:   logging.Component(logger, "orchestrator"),
	})
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	server := api.NewServer(orchestrator, logging.Component(logger, "api"), cfg)

	return &App{
		cfg:          cfg,
		logger:       logger,
		orchestrator: orchestrator,
		server:       server,
		headless:     headless,
	}, nil
}

// Server returns the HTTP API surface.
func (a *App) Server() *api.Server {
	return a.server
}

// Orchestrator returns the acquisition orchestrator.
func (a *App) Orchestrator() *scrape.Orchestrator {
	return a.orchestrator
}

// Close tears down browser resources and flushes the logger.
func (a *App) Close() {
	if a.headless != nil {
		a.headless.Close()
	}
	if err := a.logger.Sync(); err != nil {
		// Best effort; stderr sync failures on shutdown are expected on some platforms.
		_ = err
	}
}
