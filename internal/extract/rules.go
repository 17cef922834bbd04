// Package extract converts fetched markup into the normalized data model
// using host-scoped, priority-ordered extraction rules.
package extract

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule is one matching expression for one field. When Attr is empty the
// rule yields the matched element's text; otherwise the named attribute.
type Rule struct {
	Selector string `yaml:"selector"`
	Attr     string `yaml:"attr,omitempty"`
}

// FieldRules maps a field name to its prioritized rule list.
type FieldRules map[string][]Rule

// PricePattern pairs a regex whose first capture group is the amount with the
// currency code it implies.
type PricePattern struct {
	re       *regexp.Regexp
	currency string
}

// RuleSet is an immutable snapshot of extraction configuration: per-host rule
// tables, a generic fallback table, and the price normalization patterns.
// Reload swaps whole snapshots; nothing mutates one mid-request.
type RuleSet struct {
	hosts    map[string]FieldRules
	generic  FieldRules
	patterns []PricePattern
}

// ruleFile is the YAML shape accepted by LoadRuleSet.
type ruleFile struct {
	Generic FieldRules            `yaml:"generic"`
	Hosts   map[string]FieldRules `yaml:"hosts"`
	Prices  []struct {
		Pattern  string `yaml:"pattern"`
		Currency string `yaml:"currency"`
	} `yaml:"price_patterns"`
}

// DefaultRuleSet returns the built-in rules covering common storefront
// markup. Site-specific selectors live alongside generic ones so hosts
// without an entry still extract sensibly.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		hosts: map[string]FieldRules{
			"walmart.com": {
				"title": {{Selector: `h1[data-testid="product-title"]`}},
				"price": {{Selector: `[data-testid="price"]`}},
			},
			"cb2.com": {
				"title":       {{Selector: ".product-title h1"}},
				"description": {{Selector: ".product-details"}},
			},
			"wayfair.com": {
				"title":       {{Selector: ".ProductDetailInfoBlock h1"}},
				"description": {{Selector: ".ProductDetailInfoBlock .description"}},
				"images":      {{Selector: ".ProductDetailImages img"}},
				"price":       {{Selector: ".ProductDetailPricing"}},
			},
			"amazon.com": {
				"title":       {{Selector: "#productTitle"}},
				"description": {{Selector: "#feature-bullets"}},
				"images":      {{Selector: "#landingImage"}},
				"price":       {{Selector: ".a-price-whole"}},
			},
		},
		generic: FieldRules{
			"title": {
				{Selector: `[data-testid="product-title"]`},
				{Selector: ".product-name"},
				{Selector: ".product-title"},
				{Selector: "h1"},
				{Selector: "title"},
			},
			"description": {
				{Selector: ".product-description"},
				{Selector: ".product-details"},
				{Selector: `[data-testid="product-description"]`},
				{Selector: ".product-summary"},
				{Selector: ".description"},
				{Selector: `meta[name="description"]`, Attr: "content"},
			},
			"images": {
				{Selector: ".product-images img"},
				{Selector: ".product-gallery img"},
				{Selector: `[data-testid="product-image"] img`},
				{Selector: ".carousel img"},
			},
			"price": {
				{Selector: ".price"},
				{Selector: ".price-current"},
				{Selector: `[data-testid="price"]`},
				{Selector: ".current-price"},
			},
			"brand": {
				{Selector: `[data-testid="brand"]`},
				{Selector: ".brand"},
				{Selector: ".product-brand"},
				{Selector: ".manufacturer"},
				{Selector: `[itemprop="brand"]`},
			},
			"model": {
				{Selector: `[data-testid="model"]`},
				{Selector: ".model"},
				{Selector: ".product-model"},
				{Selector: `[itemprop="model"]`},
				{Selector: ".sku"},
			},
			"specifications": {
				{Selector: ".specifications table"},
				{Selector: ".product-specs table"},
				{Selector: ".details table"},
				{Selector: ".features ul"},
				{Selector: ".specs dl"},
			},
		},
		patterns: defaultPricePatterns(),
	}
}

// LoadRuleSet reads a YAML rule file and merges it over the defaults:
// file entries replace the default rule list for the same host/field,
// untouched fields keep their defaults.
func LoadRuleSet(path string) (*RuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	var file ruleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse rule file: %w", err)
	}

	rs := DefaultRuleSet()
	for field, rules := range file.Generic {
		rs.generic[normalizeKey(field)] = rules
	}
	for host, fields := range file.Hosts {
		key := normalizeKey(strings.TrimPrefix(host, "www."))
		if key == "" {
			continue
		}
		existing, ok := rs.hosts[key]
		if !ok {
			existing = FieldRules{}
			rs.hosts[key] = existing
		}
		for field, rules := range fields {
			existing[normalizeKey(field)] = rules
		}
	}
	for _, p := range file.Prices {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile price pattern %q: %w", p.Pattern, err)
		}
		rs.patterns = append(rs.patterns, PricePattern{re: re, currency: p.Currency})
	}
	return rs, nil
}

// FieldRules returns the prioritized rule list for a field, preferring the
// most specific host entry and falling back to the generic table.
func (rs *RuleSet) FieldRules(host, field string) []Rule {
	host = normalizeKey(strings.TrimPrefix(strings.ToLower(host), "www."))
	field = normalizeKey(field)
	if table, ok := rs.hosts[host]; ok {
		if rules, ok := table[field]; ok && len(rules) > 0 {
			return rules
		}
	}
	for key, table := range rs.hosts {
		if strings.HasSuffix(host, "."+key) {
			if rules, ok := table[field]; ok && len(rules) > 0 {
				return rules
			}
		}
	}
	return rs.generic[field]
}

// PricePatterns returns the ordered price normalization patterns.
func (rs *RuleSet) PricePatterns() []PricePattern {
	return rs.patterns
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
