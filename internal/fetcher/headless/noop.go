package headless

import (
	"context"
	"fmt"

	"github.com/thingsss/scraping-service/internal/scrape"
)

// Noop implements scrape.Fetcher but always fails, for deployments where
// no browser binary is available. The error is categorical so the retry
// controller does not burn attempts on it.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Kind identifies this fetcher to the strategy machinery.
func (Noop) Kind() scrape.FetcherKind {
	return scrape.KindRendering
}

// Fetch returns an error since this is a stub implementation.
func (Noop) Fetch(_ context.Context, _ scrape.FetchRequest) (scrape.FetchResponse, error) {
	return scrape.FetchResponse{}, fmt.Errorf("%w: rendering fetcher not configured", scrape.ErrCategorical)
}
