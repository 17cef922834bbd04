package scrape

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
)

// Target is a validated, normalized URL the service has been asked to acquire.
// Construction performs the safety check; a Target that exists has already
// passed it. Immutable once constructed.
type Target struct {
	url  *url.URL
	host string
}

// NewTarget parses, normalizes and safety-checks a raw URL. Parse failures are
// ErrValidation; scheme, loopback/private-host and allowlist failures are
// ErrSafetyRejected. A nil allowlist permits every host that passes the
// built-in checks.
func NewTarget(rawURL string, allowlist *HostMatcher) (*Target, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: empty url", ErrValidation)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %v", ErrValidation, err)
	}
	if u.Scheme == "" && u.Host == "" {
		return nil, fmt.Errorf("%w: url %q is not absolute", ErrValidation, rawURL)
	}

	normalize(u)

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q is not retrievable", ErrSafetyRejected, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: url has no host", ErrValidation)
	}
	if err := checkHostSafety(host); err != nil {
		return nil, err
	}
	if allowlist != nil && !allowlist.Matches(host) {
		return nil, fmt.Errorf("%w: host %q is not on the allowlist", ErrSafetyRejected, host)
	}

	return &Target{url: u, host: host}, nil
}

// normalize standardizes a URL to avoid duplicates: lowercase scheme and host,
// default ports removed, fragment dropped, query parameters sorted.
func normalize(u *url.URL) {
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}
	if u.Path == "" {
		u.Path = "/"
	}
}

func checkHostSafety(host string) error {
	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return fmt.Errorf("%w: loopback host %q", ErrSafetyRejected, host)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		// Not an IP literal; treated as a public domain name.
		return nil
	}
	switch {
	case addr.IsLoopback():
		return fmt.Errorf("%w: loopback address %s", ErrSafetyRejected, addr)
	case addr.IsPrivate():
		return fmt.Errorf("%w: private address %s", ErrSafetyRejected, addr)
	case addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast():
		return fmt.Errorf("%w: link-local address %s", ErrSafetyRejected, addr)
	case addr.IsUnspecified():
		return fmt.Errorf("%w: unspecified address %s", ErrSafetyRejected, addr)
	}
	return nil
}

// URL returns the normalized URL string.
func (t *Target) URL() string {
	return t.url.String()
}

// Host returns the resolved hostname without port.
func (t *Target) Host() string {
	return t.host
}

// BaseURL returns scheme://host for resolving relative references.
func (t *Target) BaseURL() string {
	return t.url.Scheme + "://" + t.url.Host
}
