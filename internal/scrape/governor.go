package scrape

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/thingsss/scraping-service/internal/metrics"
)

// Governor bounds the number of concurrently in-flight fetch attempts and
// paces successive attempts directed at the same host. One instance is shared
// by the single and bulk acquisition paths, so the ceiling applies globally.
//
// Admission uses a buffered channel: waiters queue on the runtime's FIFO-ish
// channel semantics, so no attempt starves while later ones are admitted.
type Governor struct {
	slots chan struct{}

	mu       sync.Mutex
	perHost  map[string]*rate.Limiter
	hostRate rate.Limit
}

// NewGovernor creates a Governor with the given global ceiling and minimum
// spacing between attempt starts against one host. A non-positive delay
// disables per-host pacing.
func NewGovernor(ceiling int, perHostDelay time.Duration) (*Governor, error) {
	if ceiling <= 0 {
		return nil, fmt.Errorf("concurrency ceiling must be > 0, got %d", ceiling)
	}
	hostRate := rate.Inf
	if perHostDelay > 0 {
		hostRate = rate.Every(perHostDelay)
	}
	return &Governor{
		slots:    make(chan struct{}, ceiling),
		perHost:  make(map[string]*rate.Limiter),
		hostRate: hostRate,
	}, nil
}

// Admit blocks until a global slot is free or the context finishes. Every
// successful Admit must be paired with Release on all exit paths.
func (g *Governor) Admit(ctx context.Context) error {
	start := time.Now()
	select {
	case g.slots <- struct{}{}:
		metrics.ObserveGovernorWait(time.Since(start))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("governor admission canceled: %w", ctx.Err())
	}
}

// Release frees a slot acquired by Admit.
func (g *Governor) Release() {
	select {
	case <-g.slots:
	default:
	}
}

// Pace blocks until the per-host minimum spacing allows another attempt
// against host, or the context finishes. Limiters are created lazily and
// shared by every request that touches the host.
func (g *Governor) Pace(ctx context.Context, host string) error {
	g.mu.Lock()
	limiter, ok := g.perHost[host]
	if !ok {
		limiter = rate.NewLimiter(g.hostRate, 1)
		g.perHost[host] = limiter
	}
	g.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("per-host pacing canceled: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObservePacingDelay(host, waited)
	}
	return nil
}

// InFlight reports how many slots are currently held. Intended for tests and
// readiness reporting.
func (g *Governor) InFlight() int {
	return len(g.slots)
}
