package domaincache

import "github.com/goliatone/go-dispatch-cache/cache"

// Metrics is the per-domain and aggregate view of the registry.
type Metrics struct {
	Domains   map[Domain]cache.Stats `json:"domains"`
	Aggregate Aggregate              `json:"aggregate"`
}

// Aggregate sums sizes across all domains.
type Aggregate struct {
	TotalSize       int     `json:"total_size"`
	TotalMaxSize    int     `json:"total_max_size"`
	UtilizationRate float64 `json:"utilization_rate"`
}

// Metrics snapshots every store. Like cache.Store.Stats it never expires
// entries.
func (r *Registry) Metrics() Metrics {
	m := Metrics{Domains: make(map[Domain]cache.Stats, len(r.stores))}
	for _, d := range allDomains {
		stats := r.stores[d].Stats()
		m.Domains[d] = stats
		m.Aggregate.TotalSize += stats.Size
		m.Aggregate.TotalMaxSize += stats.MaxSize
	}
	if m.Aggregate.TotalMaxSize > 0 {
		m.Aggregate.UtilizationRate = float64(m.Aggregate.TotalSize) / float64(m.Aggregate.TotalMaxSize)
	}
	return m
}
