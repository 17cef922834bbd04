package scrape

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/thingsss/scraping-service/internal/metrics"
)

// Orchestrator composes target validation, strategy selection, governed
// fetching and extraction into a single acquisition pipeline shared by the
// single and bulk entry points.
type Orchestrator struct {
	selector   *Selector
	controller *Controller
	extractor  Extractor
	allowlist  *HostMatcher
	limits     Limits
	maxBatch   int
	clock      Clock
	logger     *zap.Logger
}

// OrchestratorConfig wires the orchestrator's collaborators.
type OrchestratorConfig struct {
	Selector   *Selector
	Controller *Controller
	Extractor  Extractor
	Allowlist  *HostMatcher
	Limits     Limits
	MaxBatch   int
	Clock      Clock
	Logger     *zap.Logger
}

// NewOrchestrator validates the wiring and builds an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Selector == nil {
		return nil, errors.New("selector is required")
	}
	if cfg.Controller == nil {
		return nil, errors.New("controller is required")
	}
	if cfg.Extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if cfg.Clock == nil {
		return nil, errors.New("clock is required")
	}
	if cfg.Limits.DefaultTimeout <= 0 || cfg.Limits.MinTimeout <= 0 ||
		cfg.Limits.MaxTimeout < cfg.Limits.MinTimeout {
		return nil, fmt.Errorf("invalid timeout limits %+v", cfg.Limits)
	}
	if cfg.MaxBatch <= 0 {
		return nil, fmt.Errorf("max batch must be > 0, got %d", cfg.MaxBatch)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		selector:   cfg.Selector,
		controller: cfg.Controller,
		extractor:  cfg.Extractor,
		allowlist:  cfg.Allowlist,
		limits:     cfg.Limits,
		maxBatch:   cfg.MaxBatch,
		clock:      cfg.Clock,
		logger:     logger,
	}, nil
}

// MaxBatch returns the configured bulk size ceiling.
func (o *Orchestrator) MaxBatch() int {
	return o.maxBatch
}

// Acquire runs the full pipeline for one target. It always returns a
// completed AcquisitionResult; every failure below this layer is converted
// into a result with Success=false and a descriptive error.
func (o *Orchestrator) Acquire(ctx context.Context, rawURL string, opts RequestOptions) *AcquisitionResult {
	normalized, err := opts.Normalize(o.limits)
	if err != nil {
		return o.failed(rawURL, o.clock.Now(), "", 0, err)
	}
	return o.acquireNormalized(ctx, rawURL, normalized)
}

// AcquireMany fans the targets out through the same per-target pipeline,
// sharing one Concurrency Governor, and returns results in input order.
// Partial failure is expected and never fails the batch; only a malformed
// batch (empty, oversized, or invalid shared options) returns an error, and
// it does so before any fetch work starts.
func (o *Orchestrator) AcquireMany(ctx context.Context, rawURLs []string, opts RequestOptions) ([]*AcquisitionResult, error) {
	if len(rawURLs) == 0 {
		return nil, fmt.Errorf("%w: no targets supplied", ErrValidation)
	}
	if len(rawURLs) > o.maxBatch {
		return nil, fmt.Errorf("%w: batch of %d exceeds maximum of %d", ErrValidation, len(rawURLs), o.maxBatch)
	}
	normalized, err := opts.Normalize(o.limits)
	if err != nil {
		return nil, err
	}

	results := make([]*AcquisitionResult, len(rawURLs))
	var wg sync.WaitGroup
	for i, rawURL := range rawURLs {
		wg.Add(1)
		go func(i int, rawURL string) {
			defer wg.Done()
			results[i] = o.acquireNormalized(ctx, rawURL, normalized)
		}(i, rawURL)
	}
	wg.Wait()
	return results, nil
}

// acquireNormalized is the shared per-target pipeline. opts must already be
// normalized.
func (o *Orchestrator) acquireNormalized(ctx context.Context, rawURL string, opts RequestOptions) *AcquisitionResult {
	start := o.clock.Now()
	metrics.IncActiveRequests()
	defer metrics.DecActiveRequests()

	target, err := NewTarget(rawURL, o.allowlist)
	if err != nil {
		o.logger.Warn("target rejected", zap.String("url", rawURL), zap.Error(err))
		return o.failed(rawURL, start, "", 0, err)
	}

	opts = o.applySiteProfile(target, opts)
	order := o.selector.Select(target, opts.Strategy)
	o.logger.Debug("strategy selected",
		zap.String("url", target.URL()),
		zap.String("strategy", string(opts.Strategy)),
		zap.Int("kinds", len(order)),
	)

	resp, attempts, kind, err := o.controller.Run(ctx, target, order, opts, o.probeCheck)
	if err != nil {
		o.logger.Warn("acquisition failed",
			zap.String("url", target.URL()),
			zap.Int("attempts", len(attempts)),
			zap.Error(err),
		)
		return o.failed(rawURL, start, kind, len(attempts), err)
	}

	data, err := o.extractor.Extract(resp.Body, resp.URL, opts.Fields)
	if err != nil {
		return o.failed(rawURL, start, kind, len(attempts), err)
	}

	finished := o.clock.Now()
	metrics.ObserveAcquisition(string(kind), "success")
	return &AcquisitionResult{
		URL:          rawURL,
		Success:      true,
		Data:         data,
		StrategyUsed: kind,
		Attempts:     len(attempts),
		Duration:     finished.Sub(start),
		DurationSecs: finished.Sub(start).Seconds(),
		StatusCode:   resp.StatusCode,
		ContentType:  resp.ContentType,
		FinalURL:     resp.URL,
		Timestamp:    finished,
	}
}

// applySiteProfile fills attempt options the caller left unset with per-site
// defaults from the selector's profile table.
func (o *Orchestrator) applySiteProfile(target *Target, opts RequestOptions) RequestOptions {
	profile := o.selector.Profile(target.Host())
	if opts.ReadyCondition == "" {
		opts.ReadyCondition = profile.ReadyCondition
	}
	if !opts.Attempt.ScrollToBottom {
		opts.Attempt.ScrollToBottom = profile.ScrollToBottom
	}
	if !opts.Attempt.WaitForImages {
		opts.Attempt.WaitForImages = profile.WaitForImages
	}
	return opts
}

// probeCheck flags responses whose markup cannot be parsed at all, so the
// controller treats the attempt as a categorical failure and escalates.
func (o *Orchestrator) probeCheck(resp FetchResponse) error {
	return o.extractor.Probe(resp.Body)
}

// failed builds the completed failure result for a target.
func (o *Orchestrator) failed(rawURL string, start time.Time, kind FetcherKind, attempts int, err error) *AcquisitionResult {
	finished := o.clock.Now()
	metrics.ObserveAcquisition(string(kind), failureLabel(err))
	return &AcquisitionResult{
		URL:          rawURL,
		Success:      false,
		Error:        err.Error(),
		StrategyUsed: kind,
		Attempts:     attempts,
		Duration:     finished.Sub(start),
		DurationSecs: finished.Sub(start).Seconds(),
		Timestamp:    finished,
	}
}

func failureLabel(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrSafetyRejected):
		return "safety_rejected"
	case errors.Is(err, ErrExhausted):
		return "exhausted"
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "failed"
	}
}
