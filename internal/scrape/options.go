package scrape

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Strategy is the caller's acquisition strategy hint.
type Strategy string

// Recognized strategy values. Hybrid is accepted for compatibility but is
// reserved: it canonicalizes to auto during normalization and the selector
// never sees it.
const (
	StrategyAuto        Strategy = "auto"
	StrategyLightweight Strategy = "lightweight"
	StrategyRendering   Strategy = "rendering"
	StrategyHybrid      Strategy = "hybrid"
)

// DefaultFields is the field set extracted when the caller names none.
var DefaultFields = []string{"title", "description", "images", "price"}

// knownFields are the field names the extraction pipeline understands.
var knownFields = map[string]struct{}{
	"title":          {},
	"description":    {},
	"images":         {},
	"price":          {},
	"brand":          {},
	"model":          {},
	"specifications": {},
	"meta_tags":      {},
}

// ParseStrategy validates a raw strategy string. Empty means auto.
func ParseStrategy(raw string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return StrategyAuto, nil
	case StrategyAuto:
		return StrategyAuto, nil
	case StrategyLightweight:
		return StrategyLightweight, nil
	case StrategyRendering:
		return StrategyRendering, nil
	case StrategyHybrid:
		return StrategyHybrid, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", ErrValidation, raw)
	}
}

// Limits bounds request timeouts. Values come from configuration and are
// validated at startup.
type Limits struct {
	DefaultTimeout time.Duration
	MinTimeout     time.Duration
	MaxTimeout     time.Duration
}

// Normalize validates and canonicalizes caller-supplied options against the
// configured limits. It returns a fresh value; the input is not mutated.
func (o RequestOptions) Normalize(limits Limits) (RequestOptions, error) {
	out := o

	switch o.Strategy {
	case "", StrategyHybrid:
		// Hybrid has no distinct behavior yet; alias it to auto.
		out.Strategy = StrategyAuto
	case StrategyAuto, StrategyLightweight, StrategyRendering:
	default:
		return RequestOptions{}, fmt.Errorf("%w: unknown strategy %q", ErrValidation, o.Strategy)
	}

	switch {
	case o.Timeout == 0:
		out.Timeout = limits.DefaultTimeout
	case o.Timeout < 0:
		return RequestOptions{}, fmt.Errorf("%w: negative timeout %s", ErrValidation, o.Timeout)
	case o.Timeout < limits.MinTimeout:
		out.Timeout = limits.MinTimeout
	case o.Timeout > limits.MaxTimeout:
		out.Timeout = limits.MaxTimeout
	}

	if len(o.Fields) == 0 {
		out.Fields = append([]string(nil), DefaultFields...)
	} else {
		fields := make([]string, 0, len(o.Fields))
		seen := make(map[string]struct{}, len(o.Fields))
		for _, f := range o.Fields {
			name := strings.ToLower(strings.TrimSpace(f))
			if name == "" {
				continue
			}
			if _, ok := knownFields[name]; !ok {
				return RequestOptions{}, fmt.Errorf("%w: unknown extract field %q", ErrValidation, f)
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			fields = append(fields, name)
		}
		if len(fields) == 0 {
			return RequestOptions{}, fmt.Errorf("%w: extract_fields is empty", ErrValidation)
		}
		sort.Strings(fields)
		out.Fields = fields
	}

	out.ReadyCondition = strings.TrimSpace(o.ReadyCondition)
	return out, nil
}
