// Package observability builds the process logger and the prometheus
// collector fed by the cache and optimizer observer hooks.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-dispatch-cache/cache"
	"github.com/goliatone/go-dispatch-cache/domaincache"
	"github.com/goliatone/go-dispatch-cache/optimizer"
)

// Collector holds the prometheus metrics of the process. Every Collector
// owns its registry, so several can live side by side in tests.
type Collector struct {
	registry *prometheus.Registry

	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	CacheEvictions *prometheus.CounterVec
	CacheExpired   *prometheus.CounterVec

	Queries       *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryRows     *prometheus.HistogramVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

var (
	_ cache.Observer     = (*Collector)(nil)
	_ optimizer.Observer = (*Collector)(nil)
)

// NewCollector creates and registers every metric under namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		}, []string{"store"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		}, []string{"store"}),
		CacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of entries evicted to make room",
		}, []string{"store"}),
		CacheExpired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_expired_total",
			Help:      "Total number of entries removed after their TTL elapsed",
		}, []string{"store"}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimizer_queries_total",
			Help:      "Total number of optimizer calls",
		}, []string{"operation", "status"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "optimizer_query_duration_seconds",
			Help:      "Optimizer call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		QueryRows: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "optimizer_query_rows",
			Help:      "Rows returned per optimizer call",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 6),
		}, []string{"operation"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		c.CacheHits,
		c.CacheMisses,
		c.CacheEvictions,
		c.CacheExpired,
		c.Queries,
		c.QueryDuration,
		c.QueryRows,
		c.HTTPRequests,
		c.HTTPDuration,
	)
	return c
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) Hit(store string)     { c.CacheHits.WithLabelValues(store).Inc() }
func (c *Collector) Miss(store string)    { c.CacheMisses.WithLabelValues(store).Inc() }
func (c *Collector) Evicted(store string) { c.CacheEvictions.WithLabelValues(store).Inc() }

func (c *Collector) Expired(store string, count int) {
	c.CacheExpired.WithLabelValues(store).Add(float64(count))
}

func (c *Collector) ObserveQuery(op string, d time.Duration, rows int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.Queries.WithLabelValues(op, status).Inc()
	c.QueryDuration.WithLabelValues(op).Observe(d.Seconds())
	if err == nil {
		c.QueryRows.WithLabelValues(op).Observe(float64(rows))
	}
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// WatchRegistry exports the size and capacity of every domain store,
// read at scrape time.
func (c *Collector) WatchRegistry(namespace string, reg *domaincache.Registry) error {
	return c.registry.Register(newRegistryCollector(namespace, reg))
}

type registryCollector struct {
	reg      *domaincache.Registry
	entries  *prometheus.Desc
	capacity *prometheus.Desc
	hitRate  *prometheus.Desc
}

func newRegistryCollector(namespace string, reg *domaincache.Registry) *registryCollector {
	return &registryCollector{
		reg: reg,
		entries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "entries"),
			"Resident entries per domain store, expired ones included",
			[]string{"store"}, nil,
		),
		capacity: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "capacity"),
			"Maximum entries per domain store",
			[]string{"store"}, nil,
		),
		hitRate: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "hit_rate"),
			"Hit rate per domain store since start",
			[]string{"store"}, nil,
		),
	}
}

func (r *registryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- r.entries
	ch <- r.capacity
	ch <- r.hitRate
}

func (r *registryCollector) Collect(ch chan<- prometheus.Metric) {
	for _, d := range r.reg.Domains() {
		store, err := r.reg.Store(d)
		if err != nil {
			continue
		}
		stats := store.Stats()
		ch <- prometheus.MustNewConstMetric(r.entries, prometheus.GaugeValue, float64(stats.Size), stats.Name)
		ch <- prometheus.MustNewConstMetric(r.capacity, prometheus.GaugeValue, float64(stats.MaxSize), stats.Name)
		ch <- prometheus.MustNewConstMetric(r.hitRate, prometheus.GaugeValue, stats.HitRate, stats.Name)
	}
}
