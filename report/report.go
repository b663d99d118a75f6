// Package report merges optimizer suggestions and cache warnings into one
// prioritized list of recommendations, and derives a health snapshot from
// measured values.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-dispatch-cache/domaincache"
	"github.com/goliatone/go-dispatch-cache/optimizer"
)

type Category string

const (
	CategoryIndex        Category = "index"
	CategoryQueryRewrite Category = "query_rewrite"
	CategoryPagination   Category = "pagination"
	CategoryCaching      Category = "caching"
	CategoryCapacity     Category = "capacity"
	CategoryTTL          Category = "ttl"
	CategoryHitRate      Category = "hit_rate"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	}
	return 2
}

// Recommendation is one entry of the merged list. Domain is empty for
// recommendations that are not tied to a single cache.
type Recommendation struct {
	Category Category           `json:"category"`
	Priority Priority           `json:"priority"`
	Message  string             `json:"message"`
	Domain   domaincache.Domain `json:"domain,omitempty"`
}

// Thresholds controls when cache warnings are raised.
type Thresholds struct {
	Utilization float64
	MaxAvgAge   time.Duration
	MinHitRate  float64
	MinLookups  uint64
}

// DefaultThresholds returns the stock warning thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Utilization: 0.8,
		MaxAvgAge:   time.Hour,
		MinHitRate:  0.5,
		MinLookups:  100,
	}
}

var kindCategories = map[optimizer.Kind]Category{
	optimizer.KindIndex:        CategoryIndex,
	optimizer.KindQueryRewrite: CategoryQueryRewrite,
	optimizer.KindPagination:   CategoryPagination,
	optimizer.KindCaching:      CategoryCaching,
}

// Build returns the prioritized recommendations for the given snapshots.
// Entries of equal priority keep the order in which they were derived:
// optimizer suggestions, then per-domain warnings in domain order, then the
// aggregate warning.
func Build(cm domaincache.Metrics, pm optimizer.PerformanceMetrics, th Thresholds) []Recommendation {
	out := make([]Recommendation, 0, len(pm.Suggestions)+4)

	for _, s := range pm.Suggestions {
		category, ok := kindCategories[s.Kind]
		if !ok {
			category = Category(strings.ToLower(string(s.Kind)))
		}
		out = append(out, Recommendation{
			Category: category,
			Priority: Priority(strings.ToLower(string(s.Impact))),
			Message:  s.Description,
		})
	}

	for _, d := range domainOrder(cm) {
		stats := cm.Domains[d]

		if u := stats.Utilization(); u > th.Utilization {
			out = append(out, Recommendation{
				Category: CategoryCapacity,
				Priority: PriorityHigh,
				Message:  fmt.Sprintf("%s cache utilization is %.0f%%; consider raising its max size", d, u*100),
				Domain:   d,
			})
		}

		if age := stats.AverageAge(); age > th.MaxAvgAge {
			out = append(out, Recommendation{
				Category: CategoryTTL,
				Priority: PriorityMedium,
				Message:  fmt.Sprintf("%s cache entries average %s old; consider a shorter TTL", d, age.Round(time.Second)),
				Domain:   d,
			})
		}

		if stats.Lookups() >= th.MinLookups && stats.HitRate < th.MinHitRate {
			out = append(out, Recommendation{
				Category: CategoryHitRate,
				Priority: PriorityMedium,
				Message:  fmt.Sprintf("%s cache hit rate is %.0f%% over %d lookups; review its keys and TTL", d, stats.HitRate*100, stats.Lookups()),
				Domain:   d,
			})
		}
	}

	if cm.Aggregate.UtilizationRate > th.Utilization {
		out = append(out, Recommendation{
			Category: CategoryCapacity,
			Priority: PriorityHigh,
			Message:  fmt.Sprintf("overall cache utilization is %.0f%%", cm.Aggregate.UtilizationRate*100),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.rank() < out[j].Priority.rank()
	})
	return out
}

// domainOrder lists the domains present in cm, known domains first in their
// fixed order and any others sorted by name.
func domainOrder(cm domaincache.Metrics) []domaincache.Domain {
	known := []domaincache.Domain{
		domaincache.Package, domaincache.Trip, domaincache.Bid, domaincache.User, domaincache.Dashboard,
	}

	out := make([]domaincache.Domain, 0, len(cm.Domains))
	seen := make(map[domaincache.Domain]bool, len(known))
	for _, d := range known {
		seen[d] = true
		if _, ok := cm.Domains[d]; ok {
			out = append(out, d)
		}
	}

	var extra []domaincache.Domain
	for d := range cm.Domains {
		if !seen[d] {
			extra = append(extra, d)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}
