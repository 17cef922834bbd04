package scrape

import "testing"

func TestHostMatcherExactAndSubdomains(t *testing.T) {
	t.Parallel()

	m := NewHostMatcher([]string{"walmart.com", "*.wayfair.com", ".cb2.com"})

	tests := []struct {
		host string
		want bool
	}{
		{"walmart.com", true},
		{"WWW.Walmart.com", true},
		{"grocery.walmart.com", true},
		{"walmart.com.evil.test", false},
		{"wayfair.com", true},
		{"shop.wayfair.com", true},
		{"cb2.com", true},
		{"m.cb2.com", true},
		{"example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := m.Matches(tt.host); got != tt.want {
			t.Fatalf("Matches(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestHostMatcherNilAndEmpty(t *testing.T) {
	t.Parallel()

	if m := NewHostMatcher(nil); m != nil {
		t.Fatalf("expected nil matcher for empty patterns, got %+v", m)
	}
	if m := NewHostMatcher([]string{"  ", ""}); m != nil {
		t.Fatalf("expected nil matcher for blank patterns, got %+v", m)
	}
	var m *HostMatcher
	if m.Matches("example.com") {
		t.Fatal("nil matcher must match nothing")
	}
}
