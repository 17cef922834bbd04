package scrape

import "strings"

// SiteProfile carries per-host attempt defaults applied when the request does
// not set its own: a readiness selector the renderer should observe and the
// scroll/image toggles some storefronts need before their markup settles.
type SiteProfile struct {
	ReadyCondition string
	ScrollToBottom bool
	WaitForImages  bool
}

// Selector chooses which fetcher kinds to try, and in what order, for a
// target. The rendering-required classification is an immutable configuration
// snapshot injected at construction.
type Selector struct {
	rendering *HostMatcher
	profiles  map[string]SiteProfile
}

// NewSelector builds a Selector from the configured rendering-required host
// patterns and optional per-site profiles keyed by host.
func NewSelector(renderingHosts []string, profiles map[string]SiteProfile) *Selector {
	normalized := make(map[string]SiteProfile, len(profiles))
	for host, profile := range profiles {
		key := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(host)), "www.")
		if key == "" {
			continue
		}
		normalized[key] = profile
	}
	return &Selector{
		rendering: NewHostMatcher(renderingHosts),
		profiles:  normalized,
	}
}

// Select returns the ordered fetcher kinds to try. Explicit lightweight or
// rendering strategies are binding: a single kind, no fallback. Auto consults
// the per-host classification; rendering-required hosts go straight to the
// renderer, everything else starts lightweight and escalates.
func (s *Selector) Select(target *Target, strategy Strategy) []FetcherKind {
	switch strategy {
	case StrategyLightweight:
		return []FetcherKind{KindLightweight}
	case StrategyRendering:
		return []FetcherKind{KindRendering}
	}
	if s.rendering.Matches(target.Host()) {
		return []FetcherKind{KindRendering}
	}
	return []FetcherKind{KindLightweight, KindRendering}
}

// DefaultSiteProfiles returns the built-in per-site attempt defaults for
// storefronts whose product markup needs readiness or scroll handling.
func DefaultSiteProfiles() map[string]SiteProfile {
	return map[string]SiteProfile{
		"cb2.com": {
			ReadyCondition: ".product-details",
			ScrollToBottom: true,
			WaitForImages:  true,
		},
		"walmart.com": {
			ReadyCondition: `[data-testid="product-title"]`,
		},
		"wayfair.com": {
			ReadyCondition: ".ProductDetailInfoBlock",
			ScrollToBottom: true,
		},
	}
}

// Profile returns the per-site attempt defaults for a host, matching the most
// specific configured suffix. The zero profile means no site-specific tuning.
func (s *Selector) Profile(host string) SiteProfile {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if profile, ok := s.profiles[host]; ok {
		return profile
	}
	for key, profile := range s.profiles {
		if strings.HasSuffix(host, "."+key) {
			return profile
		}
	}
	return SiteProfile{}
}
