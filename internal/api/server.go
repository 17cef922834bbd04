// Package api exposes the HTTP interface for the scraping service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thingsss/scraping-service/internal/config"
	uuidgen "github.com/thingsss/scraping-service/internal/id/uuid"
	"github.com/thingsss/scraping-service/internal/metrics"
	"github.com/thingsss/scraping-service/internal/scrape"
)

// Acquirer is the orchestration surface the HTTP layer depends on.
type Acquirer interface {
	Acquire(ctx context.Context, rawURL string, opts scrape.RequestOptions) *scrape.AcquisitionResult
	AcquireMany(ctx context.Context, rawURLs []string, opts scrape.RequestOptions) ([]*scrape.AcquisitionResult, error)
	MaxBatch() int
}

// Server wires HTTP handlers to the acquisition orchestrator.
type Server struct {
	router   chi.Router
	acquirer Acquirer
	logger   *zap.Logger
	cfg      config.Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(acquirer Acquirer, logger *zap.Logger, cfg config.Config) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		acquirer: acquirer,
		logger:   logger,
		cfg:      cfg,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware(uuidgen.New()))
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(150 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/scrape", s.scrape)
		r.Post("/scrape/bulk", s.scrapeBulk)
		r.Get("/strategies", s.strategies)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type scrapeRequest struct {
	URL            string         `json:"url"`
	Strategy       string         `json:"strategy"`
	TimeoutSeconds float64        `json:"timeout_seconds"`
	ExtractFields  []string       `json:"extract_fields"`
	ReadyCondition string         `json:"ready_condition"`
	Options        attemptOptions `json:"options"`
}

type attemptOptions struct {
	ScrollToBottom bool `json:"scroll_to_bottom"`
	WaitForImages  bool `json:"wait_for_images"`
}

type bulkScrapeRequest struct {
	URLs           []string       `json:"urls"`
	Strategy       string         `json:"strategy"`
	TimeoutSeconds float64        `json:"timeout_seconds"`
	ExtractFields  []string       `json:"extract_fields"`
	ReadyCondition string         `json:"ready_condition"`
	Options        attemptOptions `json:"options"`
}

type bulkScrapeResponse struct {
	Total           int                         `json:"total"`
	Successful      int                         `json:"successful"`
	Failed          int                         `json:"failed"`
	Results         []*scrape.AcquisitionResult `json:"results"`
	DurationSeconds float64                     `json:"duration_seconds"`
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	opts, err := toRequestOptions(req.Strategy, req.TimeoutSeconds, req.ExtractFields, req.ReadyCondition, req.Options)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := s.acquirer.Acquire(r.Context(), req.URL, opts)
	writeJSON(w, statusForResult(result), result)
}

func (s *Server) scrapeBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls is required")
		return
	}
	opts, err := toRequestOptions(req.Strategy, req.TimeoutSeconds, req.ExtractFields, req.ReadyCondition, req.Options)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	results, err := s.acquirer.AcquireMany(r.Context(), req.URLs, opts)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, scrape.ErrValidation) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	resp := bulkScrapeResponse{
		Total:           len(results),
		Results:         results,
		DurationSeconds: time.Since(start).Seconds(),
	}
	for _, result := range results {
		if result.Success {
			resp.Successful++
		} else {
			resp.Failed++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type strategyInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Reserved    bool   `json:"reserved,omitempty"`
}

func (s *Server) strategies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"strategies": []strategyInfo{
			{Name: string(scrape.StrategyAuto), Description: "lightweight first, rendering fallback; classified hosts render directly"},
			{Name: string(scrape.StrategyLightweight), Description: "single HTTP exchange, no script execution"},
			{Name: string(scrape.StrategyRendering), Description: "headless browser with script execution"},
			{Name: string(scrape.StrategyHybrid), Description: "accepted alias of auto", Reserved: true},
		},
		"default":        string(scrape.StrategyAuto),
		"max_batch_size": s.acquirer.MaxBatch(),
	})
}

func toRequestOptions(
	strategy string,
	timeoutSeconds float64,
	fields []string,
	readyCondition string,
	attempt attemptOptions,
) (scrape.RequestOptions, error) {
	parsed, err := scrape.ParseStrategy(strategy)
	if err != nil {
		return scrape.RequestOptions{}, err
	}
	if timeoutSeconds < 0 {
		return scrape.RequestOptions{}, fmt.Errorf("timeout_seconds must be >= 0")
	}
	return scrape.RequestOptions{
		Strategy:       parsed,
		Timeout:        time.Duration(timeoutSeconds * float64(time.Second)),
		Fields:         fields,
		ReadyCondition: readyCondition,
		Attempt: scrape.AttemptOptions{
			ScrollToBottom: attempt.ScrollToBottom,
			WaitForImages:  attempt.WaitForImages,
		},
	}, nil
}

// statusForResult maps an acquisition outcome to an HTTP status. Exhausted
// retries are a completed result, not a server fault, so they come back 200
// with success=false; only caller mistakes surface as 4xx.
func statusForResult(result *scrape.AcquisitionResult) int {
	if result.Success {
		return http.StatusOK
	}
	switch {
	case result.StatusCode == 0 && result.Attempts == 0:
		return http.StatusBadRequest
	default:
		return http.StatusOK
	}
}

func requestIDMiddleware(ids scrape.IDGenerator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID, err := ids.NewID()
			if err != nil {
				reqID = uuid.NewString()
			}
			ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
			w.Header().Set("X-Request-ID", reqID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			duration := time.Since(start)
			metrics.ObserveHTTPRequest(r.Method, r.URL.Path, ww.status, duration)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", duration.Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
