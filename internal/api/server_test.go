package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/thingsss/scraping-service/internal/config"
	"github.com/thingsss/scraping-service/internal/scrape"
)

type fakeAcquirer struct {
	lastURL  string
	lastOpts scrape.RequestOptions
	result   *scrape.AcquisitionResult
	batchErr error
	maxBatch int
}

func (f *fakeAcquirer) Acquire(_ context.Context, rawURL string, opts scrape.RequestOptions) *scrape.AcquisitionResult {
	f.lastURL = rawURL
	f.lastOpts = opts
	if f.result != nil {
		return f.result
	}
	title := "Widget"
	return &scrape.AcquisitionResult{
		URL:          rawURL,
		Success:      true,
		Data:         &scrape.ExtractedData{Title: &title},
		StrategyUsed: scrape.KindLightweight,
		Attempts:     1,
		StatusCode:   http.StatusOK,
	}
}

func (f *fakeAcquirer) AcquireMany(ctx context.Context, rawURLs []string, opts scrape.RequestOptions) ([]*scrape.AcquisitionResult, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	results := make([]*scrape.AcquisitionResult, len(rawURLs))
	for i, u := range rawURLs {
		results[i] = f.Acquire(ctx, u, opts)
	}
	if len(results) > 1 {
		results[len(results)-1] = &scrape.AcquisitionResult{URL: rawURLs[len(rawURLs)-1], Success: false, Error: "unreachable"}
	}
	return results, nil
}

func (f *fakeAcquirer) MaxBatch() int {
	if f.maxBatch > 0 {
		return f.maxBatch
	}
	return 10
}

func newTestServer(acq *fakeAcquirer, cfg config.Config) *Server {
	return NewServer(acq, zap.NewNop(), cfg)
}

func TestServer_Scrape_Succeeds(t *testing.T) {
	t.Parallel()

	acq := &fakeAcquirer{}
	server := newTestServer(acq, config.Config{})

	body := []byte(`{"url":"https://example.com/item","strategy":"lightweight","extract_fields":["title","price"],"options":{"scroll_to_bottom":true}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/scrape", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "https://example.com/item", acq.lastURL)
	require.Equal(t, scrape.StrategyLightweight, acq.lastOpts.Strategy)
	require.True(t, acq.lastOpts.Attempt.ScrollToBottom)

	var result scrape.AcquisitionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.True(t, result.Success)
	require.NotNil(t, result.Data)
	require.Equal(t, "Widget", *result.Data.Title)
}

func TestServer_Scrape_InvalidJSON(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeAcquirer{}, config.Config{})
	req := httptest.NewRequest(http.MethodPost, "/v1/scrape", bytes.NewBufferString("{invalid"))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Scrape_MissingURL(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeAcquirer{}, config.Config{})
	req := httptest.NewRequest(http.MethodPost, "/v1/scrape", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "url is required")
}

func TestServer_Scrape_UnknownStrategy(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeAcquirer{}, config.Config{})
	req := httptest.NewRequest(http.MethodPost, "/v1/scrape",
		bytes.NewBufferString(`{"url":"https://example.com","strategy":"quantum"}`))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "unknown strategy")
}

func TestServer_ScrapeBulk_Summary(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeAcquirer{}, config.Config{})
	body := []byte(`{"urls":["https://a.example.com","https://b.example.com","https://c.example.com"]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/scrape/bulk", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp bulkScrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 3, resp.Total)
	require.Equal(t, 2, resp.Successful)
	require.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 3)
	require.Equal(t, "https://a.example.com", resp.Results[0].URL)
}

func TestServer_ScrapeBulk_OversizedBatch(t *testing.T) {
	t.Parallel()

	acq := &fakeAcquirer{batchErr: fmt.Errorf("%w: batch of 11 exceeds limit 10", scrape.ErrValidation)}
	server := newTestServer(acq, config.Config{})
	body := []byte(`{"urls":["https://a.example.com"]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/scrape/bulk", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "exceeds limit")
}

func TestServer_Strategies(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeAcquirer{maxBatch: 4}, config.Config{})
	req := httptest.NewRequest(http.MethodGet, "/v1/strategies", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "lightweight")
	require.Contains(t, rec.Body.String(), "hybrid")
	require.Contains(t, rec.Body.String(), `"max_batch_size":4`)
}

func TestServer_HealthAndReady(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeAcquirer{}, config.Config{})
	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestServer_RequestIDHeader(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeAcquirer{}, config.Config{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_APIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Auth: config.AuthConfig{Enabled: true, APIKey: "secret"}}
	server := newTestServer(&fakeAcquirer{}, cfg)

	req := httptest.NewRequest(http.MethodGet, "/v1/strategies", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/strategies", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Health endpoints stay open for probes.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
