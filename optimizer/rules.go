package optimizer

import (
	"sort"
	"strings"
	"time"
)

// Kind classifies a suggestion.
type Kind string

const (
	KindIndex        Kind = "INDEX"
	KindQueryRewrite Kind = "QUERY_REWRITE"
	KindPagination   Kind = "PAGINATION"
	KindCaching      Kind = "CACHING"
)

// Impact ranks a suggestion.
type Impact string

const (
	ImpactHigh   Impact = "HIGH"
	ImpactMedium Impact = "MEDIUM"
	ImpactLow    Impact = "LOW"
)

// Rank orders impacts from HIGH (0) to LOW (2).
func (i Impact) Rank() int {
	switch i {
	case ImpactHigh:
		return 0
	case ImpactMedium:
		return 1
	}
	return 2
}

// Suggestion is an advisory derived from recorded samples.
type Suggestion struct {
	Kind        Kind   `json:"kind"`
	Description string `json:"description"`
	Impact      Impact `json:"impact"`
}

// Rule emits Suggestion for every sample Match accepts. Rules are
// deduplicated by Name.
type Rule struct {
	Name       string
	Match      func(Sample) bool
	Suggestion Suggestion
}

// Thresholds parameterize DefaultRules.
type Thresholds struct {
	Index        time.Duration
	QueryRewrite time.Duration
	Slow         time.Duration
	Rows         int
}

// DefaultThresholds returns the stock rule thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Index:        500 * time.Millisecond,
		QueryRewrite: 2 * time.Second,
		Slow:         DefaultSlowThreshold,
		Rows:         100,
	}
}

func mentions(op, keyword string) bool {
	return strings.Contains(strings.ToLower(op), keyword)
}

// DefaultRules returns the stock rule table.
func DefaultRules(th Thresholds) []Rule {
	return []Rule{
		{
			Name: "package-index",
			Match: func(s Sample) bool {
				return mentions(s.Operation, "package") && s.Duration > th.Index
			},
			Suggestion: Suggestion{
				Kind:        KindIndex,
				Description: "Add a composite index on packages(status, customer_id, created_at)",
				Impact:      ImpactHigh,
			},
		},
		{
			Name: "trip-index",
			Match: func(s Sample) bool {
				return mentions(s.Operation, "trip") && s.Duration > th.Index
			},
			Suggestion: Suggestion{
				Kind:        KindIndex,
				Description: "Add indexes on trips(status, departure_at) and the origin/destination coordinates",
				Impact:      ImpactHigh,
			},
		},
		{
			Name: "query-rewrite",
			Match: func(s Sample) bool {
				return s.Duration > th.QueryRewrite
			},
			Suggestion: Suggestion{
				Kind:        KindQueryRewrite,
				Description: "Rewrite queries slower than the rewrite threshold; split joins or narrow the projection",
				Impact:      ImpactHigh,
			},
		},
		{
			Name: "dashboard-caching",
			Match: func(s Sample) bool {
				return mentions(s.Operation, "dashboard") && s.Duration > th.Slow
			},
			Suggestion: Suggestion{
				Kind:        KindCaching,
				Description: "Cache dashboard composition results",
				Impact:      ImpactMedium,
			},
		},
		{
			Name: "large-result",
			Match: func(s Sample) bool {
				return s.Rows > th.Rows
			},
			Suggestion: Suggestion{
				Kind:        KindPagination,
				Description: "Paginate operations returning large result sets",
				Impact:      ImpactMedium,
			},
		},
		{
			Name: "notification-index",
			Match: func(s Sample) bool {
				return mentions(s.Operation, "notification") && s.Duration > th.Index
			},
			Suggestion: Suggestion{
				Kind:        KindIndex,
				Description: "Add an index on notifications(user_id, read, created_at)",
				Impact:      ImpactMedium,
			},
		},
	}
}

// evaluate applies rules to samples and returns one suggestion per matching
// rule, ordered by impact and then by rule order.
func evaluate(rules []Rule, samples []Sample) []Suggestion {
	type hit struct {
		order      int
		suggestion Suggestion
	}

	hits := make([]hit, 0, len(rules))
	seen := make(map[string]bool, len(rules))
	for i, rule := range rules {
		if rule.Match == nil || seen[rule.Name] {
			continue
		}
		for _, s := range samples {
			if rule.Match(s) {
				seen[rule.Name] = true
				hits = append(hits, hit{order: i, suggestion: rule.Suggestion})
				break
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		ri, rj := hits[i].suggestion.Impact.Rank(), hits[j].suggestion.Impact.Rank()
		if ri != rj {
			return ri < rj
		}
		return hits[i].order < hits[j].order
	})

	out := make([]Suggestion, len(hits))
	for i, h := range hits {
		out[i] = h.suggestion
	}
	return out
}
