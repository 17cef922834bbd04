package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/thingsss/scraping-service/internal/metrics"
)

// RetrySettings governs per-kind retry behavior. Both values must be strictly
// positive; config validation rejects anything else at startup.
type RetrySettings struct {
	MaxRetries int
	RetryDelay time.Duration
}

// pauser abstracts the inter-retry wait so tests can observe backoff without
// sleeping.
type pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauser struct{}

func (timerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Controller wraps fetch attempts with admission, pacing, timeout, retry and
// strategy escalation. Attempts for one request are strictly sequential.
type Controller struct {
	fetchers map[FetcherKind]Fetcher
	governor *Governor
	settings RetrySettings
	clock    Clock
	pause    pauser
	logger   *zap.Logger
}

// NewController builds a Controller over the available fetchers.
func NewController(
	fetchers []Fetcher,
	governor *Governor,
	settings RetrySettings,
	clock Clock,
	logger *zap.Logger,
) (*Controller, error) {
	if settings.MaxRetries <= 0 {
		return nil, fmt.Errorf("max retries must be > 0, got %d", settings.MaxRetries)
	}
	if settings.RetryDelay <= 0 {
		return nil, fmt.Errorf("retry delay must be > 0, got %s", settings.RetryDelay)
	}
	if governor == nil {
		return nil, errors.New("governor is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	byKind := make(map[FetcherKind]Fetcher, len(fetchers))
	for _, f := range fetchers {
		if f == nil {
			continue
		}
		byKind[f.Kind()] = f
	}
	if len(byKind) == 0 {
		return nil, errors.New("at least one fetcher is required")
	}
	return &Controller{
		fetchers: byKind,
		governor: governor,
		settings: settings,
		clock:    clock,
		pause:    timerPauser{},
		logger:   logger,
	}, nil
}

// Run tries each kind in order, up to MaxRetries attempts per kind, with a
// linear backoff of RetryDelay * attemptNumber between retries of one kind.
// The first success wins and later kinds are never started. Categorical
// failures skip the remaining retries of the current kind; safety rejections
// and cancellation abort the whole operation. When every kind exhausts its
// retries the last cause is returned wrapped in ErrExhausted.
func (c *Controller) Run(
	ctx context.Context,
	target *Target,
	order []FetcherKind,
	opts RequestOptions,
	check func(FetchResponse) error,
) (FetchResponse, []FetchAttempt, FetcherKind, error) {
	if len(order) == 0 {
		return FetchResponse{}, nil, "", fmt.Errorf("%w: empty strategy order", ErrValidation)
	}

	var (
		attempts []FetchAttempt
		lastErr  error
		lastKind = order[0]
	)

	for _, kind := range order {
		fetcher, ok := c.fetchers[kind]
		if !ok {
			lastErr = fmt.Errorf("%w: no %s fetcher configured", ErrCategorical, kind)
			continue
		}
		lastKind = kind

		for number := 1; number <= c.settings.MaxRetries; number++ {
			if number > 1 {
				c.pause.Pause(ctx, c.settings.RetryDelay*time.Duration(number-1))
			}
			if err := ctx.Err(); err != nil {
				return FetchResponse{}, attempts, kind, fmt.Errorf("acquisition canceled: %w", err)
			}

			resp, attempt, err := c.attempt(ctx, fetcher, target, opts, number, check)
			attempts = append(attempts, attempt)
			if err == nil {
				return resp, attempts, kind, nil
			}
			lastErr = err

			if errors.Is(err, ErrSafetyRejected) {
				// Safety failures are terminal under every strategy.
				return FetchResponse{}, attempts, kind, err
			}
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return FetchResponse{}, attempts, kind, fmt.Errorf("acquisition canceled: %w", err)
			}
			if errors.Is(err, ErrCategorical) {
				c.logger.Debug("categorical failure, escalating",
					zap.String("host", target.Host()),
					zap.String("kind", string(kind)),
					zap.Error(err),
				)
				break
			}
			c.logger.Debug("transient failure, retrying",
				zap.String("host", target.Host()),
				zap.String("kind", string(kind)),
				zap.Int("attempt", number),
				zap.Error(err),
			)
		}
	}

	return FetchResponse{}, attempts, lastKind, fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}

// attempt runs one admission-governed, timeout-bounded fetch. The slot is
// released on every exit path.
func (c *Controller) attempt(
	ctx context.Context,
	fetcher Fetcher,
	target *Target,
	opts RequestOptions,
	number int,
	check func(FetchResponse) error,
) (FetchResponse, FetchAttempt, error) {
	attempt := FetchAttempt{
		Kind:    fetcher.Kind(),
		Number:  number,
		Started: c.clock.Now(),
	}

	attemptCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	resp, err := c.runGoverned(attemptCtx, fetcher, target, opts)
	if err == nil && check != nil {
		err = check(resp)
	}

	attempt.Finished = c.clock.Now()
	attempt.Err = err
	switch {
	case err == nil:
		attempt.Outcome = OutcomeSuccess
	case errors.Is(err, ErrCategorical) || errors.Is(err, ErrSafetyRejected):
		attempt.Outcome = OutcomeCategorical
	case ctx.Err() != nil:
		attempt.Outcome = OutcomeAborted
	default:
		attempt.Outcome = OutcomeTransient
	}
	metrics.ObserveAttempt(string(attempt.Kind), string(attempt.Outcome), attempt.Finished.Sub(attempt.Started))

	if err != nil {
		return FetchResponse{}, attempt, err
	}
	return resp, attempt, nil
}

func (c *Controller) runGoverned(
	ctx context.Context,
	fetcher Fetcher,
	target *Target,
	opts RequestOptions,
) (FetchResponse, error) {
	if err := c.governor.Admit(ctx); err != nil {
		return FetchResponse{}, err
	}
	defer c.governor.Release()

	if err := c.governor.Pace(ctx, target.Host()); err != nil {
		return FetchResponse{}, err
	}

	resp, err := fetcher.Fetch(ctx, FetchRequest{
		URL:            target.URL(),
		Timeout:        opts.Timeout,
		ReadyCondition: opts.ReadyCondition,
		ScrollToBottom: opts.Attempt.ScrollToBottom,
		WaitForImages:  opts.Attempt.WaitForImages,
	})
	if err != nil {
		return FetchResponse{}, err
	}
	resp.Kind = fetcher.Kind()
	return resp, nil
}
