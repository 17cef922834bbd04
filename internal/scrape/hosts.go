package scrape

import "strings"

// HostMatcher stores exact hosts and suffix wildcards derived from
// configuration. It backs both the target allowlist and the rendering-required
// classification; membership is a pure set test, never a learned value.
type HostMatcher struct {
	exact    map[string]struct{}
	suffixes []string
}

// NewHostMatcher builds a matcher from configured patterns. Patterns may be
// exact hosts ("walmart.com"), suffix wildcards ("*.walmart.com") or bare
// suffixes (".walmart.com"). Returns nil when no usable pattern remains, so a
// nil matcher can mean "match nothing".
func NewHostMatcher(patterns []string) *HostMatcher {
	matcher := &HostMatcher{
		exact: make(map[string]struct{}),
	}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		switch {
		case strings.HasPrefix(value, "*."):
			matcher.addSuffix(strings.TrimPrefix(value, "*."))
		case strings.HasPrefix(value, "."):
			matcher.addSuffix(strings.TrimPrefix(value, "."))
		default:
			matcher.exact[value] = struct{}{}
			// An exact entry also covers its subdomains, matching how the
			// original site tables were consulted.
			matcher.addSuffix(value)
		}
	}
	if len(matcher.exact) == 0 && len(matcher.suffixes) == 0 {
		return nil
	}
	return matcher
}

func (m *HostMatcher) addSuffix(suffix string) {
	if suffix == "" {
		return
	}
	for _, existing := range m.suffixes {
		if existing == suffix {
			return
		}
	}
	m.suffixes = append(m.suffixes, suffix)
}

// Matches reports whether host belongs to the set. The leading "www." label is
// ignored and comparison is case-insensitive.
func (m *HostMatcher) Matches(host string) bool {
	if m == nil {
		return false
	}
	host = strings.TrimSpace(strings.ToLower(host))
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return false
	}
	if _, exact := m.exact[host]; exact {
		return true
	}
	for _, suffix := range m.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}
