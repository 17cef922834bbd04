package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSanitizeHost(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"https://www.Example.com/path?q=1", "www.example.com"},
		{"http://shop.example.com:8080/", "shop.example.com"},
		{"example.com", "example.com"},
		{"Example.COM", "example.com"},
		{"", "unknown"},
		{"http://", "unknown"},
		{"http://%zz", "unknown"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, SanitizeHost(tc.in), "input %q", tc.in)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	ObserveAcquisition("lightweight", "success")
	ObserveAcquisition("", "failure")
	ObserveAttempt("rendering", "transient_error", 250*time.Millisecond)
	ObserveGovernorWait(5 * time.Millisecond)
	ObservePacingDelay("https://example.com/p/1", 10*time.Millisecond)
	IncActiveRequests()
	DecActiveRequests()
	ObserveHTTPRequest("POST", "/v1/scrape", 200, 50*time.Millisecond)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "scrape_acquisitions_total")
	require.Contains(t, body, "scrape_attempts_total")
	require.Contains(t, body, "http_requests_total")
}
