// Package httpapi exposes the cache and query performance surface over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/goliatone/go-dispatch-cache/domaincache"
	"github.com/goliatone/go-dispatch-cache/optimizer"
	"github.com/goliatone/go-dispatch-cache/report"
)

// Performance is the optimizer surface served here.
type Performance interface {
	PerformanceMetrics() optimizer.PerformanceMetrics
	ClearMetrics(ctx context.Context) (int, error)
}

// Pinger probes the database. *bun.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SampleArchive reads archived performance samples.
type SampleArchive interface {
	Recent(limit int) ([]optimizer.Sample, error)
}

// RequestObserver records served requests, typically into prometheus.
type RequestObserver interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
}

// Deps are the collaborators of the router. Database, Archive, Metrics and
// Observer are optional.
type Deps struct {
	Caches      *domaincache.Registry
	Performance Performance
	Thresholds  report.Thresholds
	Database    Pinger
	Archive     SampleArchive
	Metrics     http.Handler
	Observer    RequestObserver
	Logger      *zap.Logger
	Now         func() time.Time
}

// Router wires the handlers.
type Router struct {
	deps   Deps
	logger *zap.Logger
}

func NewRouter(deps Deps) *Router {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Router{deps: deps, logger: deps.Logger}
}

// Setup builds the http.Handler.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(rt.logger, rt.deps.Observer))

	router.Get("/health", rt.health)
	if rt.deps.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.deps.Metrics)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/cache", func(r chi.Router) {
			r.Get("/metrics", rt.cacheMetrics)
			r.Delete("/", rt.clearAllCaches)
			r.Post("/{domain}/invalidate", rt.invalidateDomain)
			r.Post("/sweep", rt.sweep)
		})
		r.Route("/performance", func(r chi.Router) {
			r.Get("/metrics", rt.performanceMetrics)
			r.Delete("/metrics", rt.clearPerformanceMetrics)
			r.Get("/archive", rt.archivedSamples)
		})
		r.Get("/recommendations", rt.recommendations)
	})

	return router
}
