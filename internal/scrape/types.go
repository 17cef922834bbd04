// Package scrape defines the core acquisition types shared across subsystems.
package scrape

import (
	"net/http"
	"time"
)

// FetcherKind identifies an acquisition capability.
type FetcherKind string

// Fetcher kinds tried by the orchestrator.
const (
	KindLightweight FetcherKind = "lightweight"
	KindRendering   FetcherKind = "rendering"
)

// AttemptOptions carries per-attempt knobs honored by the rendering fetcher.
type AttemptOptions struct {
	ScrollToBottom bool `json:"scroll_to_bottom"`
	WaitForImages  bool `json:"wait_for_images"`
}

// RequestOptions captures per-request configuration supplied by the caller.
// Normalize must be called once at orchestrator entry; the value is read-only
// afterwards.
type RequestOptions struct {
	Strategy       Strategy       `json:"strategy"`
	Timeout        time.Duration  `json:"-"`
	Fields         []string       `json:"extract_fields"`
	ReadyCondition string         `json:"ready_condition,omitempty"`
	Attempt        AttemptOptions `json:"options"`
}

// FetchRequest captures everything a fetcher needs to acquire a page.
type FetchRequest struct {
	URL            string
	Headers        http.Header
	Timeout        time.Duration
	ReadyCondition string
	ScrollToBottom bool
	WaitForImages  bool
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL         string
	StatusCode  int
	ContentType string
	Headers     http.Header
	Body        []byte
	Duration    time.Duration
	Kind        FetcherKind
}

// AttemptOutcome records how a single fetch attempt ended.
type AttemptOutcome string

// Attempt outcomes recorded in the per-request attempt log.
const (
	OutcomeSuccess     AttemptOutcome = "success"
	OutcomeTransient   AttemptOutcome = "transient"
	OutcomeCategorical AttemptOutcome = "categorical"
	OutcomeAborted     AttemptOutcome = "aborted"
)

// FetchAttempt is one execution of one fetcher kind against one target.
// The in-flight request owns its attempt log exclusively; attempts are
// discarded when the request completes and only their count is surfaced.
type FetchAttempt struct {
	Kind     FetcherKind
	Number   int
	Started  time.Time
	Finished time.Time
	Outcome  AttemptOutcome
	Err      error
}

// ExtractedData is the normalized record pulled out of fetched markup.
// Missing fields are nil/empty, never absent keys.
type ExtractedData struct {
	Title          *string           `json:"title"`
	Description    *string           `json:"description"`
	Images         []string          `json:"images"`
	Price          *string           `json:"price"`
	Currency       *string           `json:"currency"`
	Brand          *string           `json:"brand"`
	Model          *string           `json:"model"`
	Specifications map[string]string `json:"specifications"`
	MetaTags       map[string]string `json:"meta_tags"`
}

// AcquisitionResult is the only externally visible artifact of an acquisition.
// Both success and exhausted-retries failure are represented as a completed
// result, never as a fault.
type AcquisitionResult struct {
	URL          string         `json:"url"`
	Success      bool           `json:"success"`
	Data         *ExtractedData `json:"data,omitempty"`
	Error        string         `json:"error,omitempty"`
	StrategyUsed FetcherKind    `json:"strategy_used,omitempty"`
	Attempts     int            `json:"attempts"`
	Duration     time.Duration  `json:"-"`
	DurationSecs float64        `json:"duration_seconds"`
	StatusCode   int            `json:"status_code,omitempty"`
	ContentType  string         `json:"content_type,omitempty"`
	FinalURL     string         `json:"final_url,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}
