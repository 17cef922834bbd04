package scrape

import (
	"context"
	"time"
)

// Fetcher acquires raw markup for a target and returns it plus metadata.
type Fetcher interface {
	Kind() FetcherKind
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Extractor converts fetched markup into the normalized data model.
// Probe reports whether the markup is worth extracting from at all; a Probe
// failure is treated as a categorical failure of the attempt that produced it.
type Extractor interface {
	Extract(markup []byte, pageURL string, fields []string) (*ExtractedData, error)
	Probe(markup []byte) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces request IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
