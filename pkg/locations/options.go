package locations

import (
	"strings"

	"github.com/kass/go-geo-cellindex/pkg/cover"
	"github.com/kass/go-geo-cellindex/pkg/errs"
)

// Strategy selects how a region query reaches the stored locations.
type Strategy string

const (
	// StrategyKeyRange covers the region with cell key ranges and scans them.
	StrategyKeyRange Strategy = "keyrange"
	// StrategyBoundingBox filters on latitude and longitude directly.
	StrategyBoundingBox Strategy = "bbox"
)

// ParseStrategy accepts "keyrange" or "bbox". An empty string selects
// StrategyKeyRange.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyKeyRange:
		return StrategyKeyRange, nil
	case StrategyBoundingBox:
		return StrategyBoundingBox, nil
	}
	return "", errs.InvalidArgument("strategy", "unknown strategy %q", s)
}

type queryOptions struct {
	policy    cover.Policy
	maxLevel  int
	maxRanges int
	refine    bool
}

// QueryOption adjusts a single key-range query.
type QueryOption func(*queryOptions)

func WithPolicy(p cover.Policy) QueryOption {
	return func(o *queryOptions) { o.policy = p }
}

func WithMaxRanges(n int) QueryOption {
	return func(o *queryOptions) { o.maxRanges = n }
}

// WithRefine drops the candidates of a key-range scan that fall outside the
// region. Without it the result may contain extra points.
func WithRefine(refine bool) QueryOption {
	return func(o *queryOptions) { o.refine = refine }
}
