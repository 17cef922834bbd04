package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"

	"github.com/thingsss/scraping-service/internal/scrape"
)

// imageSkipPatterns filter out UI chrome masquerading as product imagery.
var imageSkipPatterns = []string{
	"icon", "logo", "button", "arrow", "star", "rating",
	"social", "badge", "banner", "placeholder",
}

const maxImages = 10

// Pipeline implements scrape.Extractor over a swappable RuleSet snapshot.
// Extraction is pure: it operates solely on markup already fetched.
type Pipeline struct {
	rules atomic.Pointer[RuleSet]
}

// NewPipeline creates a Pipeline over the given rule set.
func NewPipeline(rules *RuleSet) *Pipeline {
	p := &Pipeline{}
	p.rules.Store(rules)
	return p
}

// Reload atomically swaps in a new rule set. In-flight extractions keep the
// snapshot they started with.
func (p *Pipeline) Reload(rules *RuleSet) {
	p.rules.Store(rules)
}

// Probe reports whether the markup parses as a usable HTML document. A
// failure is wrapped as a categorical error so the retry controller escalates
// instead of retrying the same kind.
func (p *Pipeline) Probe(markup []byte) error {
	if len(bytes.TrimSpace(markup)) == 0 {
		return fmt.Errorf("%w: empty response body", scrape.ErrCategorical)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return fmt.Errorf("%w: unparseable markup: %v", scrape.ErrCategorical, err)
	}
	if doc.Find("body").Length() == 0 && doc.Find("html").Length() == 0 {
		return fmt.Errorf("%w: response is not an HTML document", scrape.ErrCategorical)
	}
	return nil
}

// Extract maps each requested field to a value or explicit absence. A miss on
// one field never aborts the others; only markup that cannot be parsed at all
// returns an error.
func (p *Pipeline) Extract(markup []byte, pageURL string, fields []string) (*scrape.ExtractedData, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("%w: parse markup: %v", scrape.ErrCategorical, err)
	}

	rules := p.rules.Load()
	host := hostOf(pageURL)
	data := &scrape.ExtractedData{
		Images:         []string{},
		Specifications: map[string]string{},
		MetaTags:       map[string]string{},
	}

	for _, field := range fields {
		switch field {
		case "title":
			data.Title = extractText(doc, rules.FieldRules(host, "title"), 3)
		case "description":
			data.Description = extractText(doc, rules.FieldRules(host, "description"), 10)
		case "images":
			data.Images = extractImages(doc, rules.FieldRules(host, "images"), baseOf(pageURL))
		case "price":
			amount, currency := extractPrice(doc, rules.FieldRules(host, "price"), rules.PricePatterns())
			data.Price = amount
			data.Currency = currency
		case "brand":
			data.Brand = extractText(doc, rules.FieldRules(host, "brand"), 0)
		case "model":
			data.Model = extractText(doc, rules.FieldRules(host, "model"), 0)
		case "specifications":
			data.Specifications = extractSpecifications(doc, rules.FieldRules(host, "specifications"))
		case "meta_tags":
			data.MetaTags = extractMetaTags(doc)
		}
	}
	return data, nil
}

// extractText applies the rule list in priority order; the first rule whose
// match is non-empty (and longer than minLen) wins, even when a later rule
// would match something longer.
func extractText(doc *goquery.Document, rules []Rule, minLen int) *string {
	for _, rule := range rules {
		sel := doc.Find(rule.Selector).First()
		if sel.Length() == 0 {
			continue
		}
		var value string
		if rule.Attr != "" {
			value, _ = sel.Attr(rule.Attr)
		} else {
			value = sel.Text()
		}
		value = strings.Join(strings.Fields(value), " ")
		if value != "" && len(value) > minLen {
			return &value
		}
	}
	return nil
}

func extractPrice(doc *goquery.Document, rules []Rule, patterns []PricePattern) (*string, *string) {
	for _, rule := range rules {
		sel := doc.Find(rule.Selector).First()
		if sel.Length() == 0 {
			continue
		}
		amount, currency, ok := parsePrice(sel.Text(), patterns)
		if !ok {
			continue
		}
		return &amount, &currency
	}
	return nil, nil
}

// extractImages collects candidate sources, resolves them against the page
// base, filters obvious UI imagery, and deduplicates by final URL preserving
// first-seen order.
func extractImages(doc *goquery.Document, rules []Rule, base *url.URL) []string {
	seen := make(map[string]struct{})
	images := []string{}
	for _, rule := range rules {
		doc.Find(rule.Selector).Each(func(_ int, img *goquery.Selection) {
			if len(images) >= maxImages {
				return
			}
			src := firstAttr(img, "src", "data-src", "data-lazy-src")
			if src == "" {
				return
			}
			resolved := resolveImageURL(base, src)
			if resolved == "" || !isLikelyProductImage(img, resolved) {
				return
			}
			if _, dup := seen[resolved]; dup {
				return
			}
			seen[resolved] = struct{}{}
			images = append(images, resolved)
		})
	}
	return images
}

func extractSpecifications(doc *goquery.Document, rules []Rule) map[string]string {
	specs := map[string]string{}
	for _, rule := range rules {
		sel := doc.Find(rule.Selector).First()
		if sel.Length() == 0 {
			continue
		}
		switch goquery.NodeName(sel) {
		case "table":
			parseSpecTable(sel, specs)
		case "ul":
			parseSpecList(sel, specs)
		case "dl":
			parseSpecDefinitions(sel, specs)
		}
	}
	return specs
}

func parseSpecTable(table *goquery.Selection, specs map[string]string) {
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		key := cleanText(cells.Eq(0).Text())
		value := cleanText(cells.Eq(1).Text())
		if key != "" && value != "" {
			specs[key] = value
		}
	})
}

func parseSpecList(list *goquery.Selection, specs map[string]string) {
	list.Find("li").Each(func(_ int, item *goquery.Selection) {
		text := cleanText(item.Text())
		key, value, found := strings.Cut(text, ":")
		if !found {
			return
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key != "" && value != "" {
			specs[key] = value
		}
	})
}

func parseSpecDefinitions(dl *goquery.Selection, specs map[string]string) {
	terms := dl.Find("dt")
	values := dl.Find("dd")
	count := min(terms.Length(), values.Length())
	for i := 0; i < count; i++ {
		key := cleanText(terms.Eq(i).Text())
		value := cleanText(values.Eq(i).Text())
		if key != "" && value != "" {
			specs[key] = value
		}
	}
}

func extractMetaTags(doc *goquery.Document) map[string]string {
	tags := map[string]string{}
	for _, name := range []string{"description", "keywords", "author", "robots"} {
		content, ok := doc.Find(`meta[name="` + name + `"]`).First().Attr("content")
		if ok && content != "" {
			tags[name] = content
		}
	}
	doc.Find("meta[property]").Each(func(_ int, meta *goquery.Selection) {
		property, _ := meta.Attr("property")
		if !strings.HasPrefix(property, "og:") {
			return
		}
		content, _ := meta.Attr("content")
		if content != "" {
			tags["og_"+strings.TrimPrefix(property, "og:")] = content
		}
	})
	return tags
}

func firstAttr(sel *goquery.Selection, names ...string) string {
	for _, name := range names {
		if value, ok := sel.Attr(name); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func resolveImageURL(base *url.URL, src string) string {
	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return ""
		}
		return ref.String()
	}
	if base == nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// isLikelyProductImage skips tiny images and sources matching common
// icon/chrome patterns.
func isLikelyProductImage(img *goquery.Selection, src string) bool {
	if below(img, "width", 50) || below(img, "height", 50) {
		return false
	}
	lower := strings.ToLower(src)
	for _, pattern := range imageSkipPatterns {
		if strings.Contains(lower, pattern) {
			return false
		}
	}
	return true
}

func below(sel *goquery.Selection, attr string, threshold int) bool {
	raw, ok := sel.Attr(attr)
	if !ok {
		return false
	}
	var value int
	if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%d", &value); err != nil {
		return false
	}
	return value < threshold
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func hostOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func baseOf(pageURL string) *url.URL {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}
}
