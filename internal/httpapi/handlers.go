package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	goerrors "github.com/goliatone/go-errors"
	"go.uber.org/zap"

	"github.com/goliatone/go-dispatch-cache/domaincache"
	"github.com/goliatone/go-dispatch-cache/report"
)

const (
	defaultArchiveLimit = 100
	maxArchiveLimit     = 1000
	pingTimeout         = 2 * time.Second
)

func (rt *Router) cacheMetrics(w http.ResponseWriter, r *http.Request) {
	rt.respondJSON(w, http.StatusOK, rt.deps.Caches.Metrics())
}

func (rt *Router) clearAllCaches(w http.ResponseWriter, r *http.Request) {
	rt.deps.Caches.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}

// invalidateDomain handles POST /cache/{domain}/invalidate?id=...
// Without an id the whole domain is cleared.
func (rt *Router) invalidateDomain(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "domain")
	d, ok := domaincache.ParseDomain(name)
	if !ok {
		rt.respondError(w, goerrors.New("unknown cache domain: "+name, goerrors.CategoryNotFound))
		return
	}

	removed, err := rt.deps.Caches.Invalidate(d, r.URL.Query().Get("id"))
	if err != nil {
		rt.respondError(w, err)
		return
	}
	rt.respondJSON(w, http.StatusOK, map[string]any{
		"domain":  d,
		"removed": removed,
	})
}

func (rt *Router) sweep(w http.ResponseWriter, r *http.Request) {
	removed := rt.deps.Caches.CleanupExpired()
	total := 0
	for _, n := range removed {
		total += n
	}
	rt.respondJSON(w, http.StatusOK, map[string]any{
		"removed": removed,
		"total":   total,
	})
}

func (rt *Router) performanceMetrics(w http.ResponseWriter, r *http.Request) {
	rt.respondJSON(w, http.StatusOK, rt.deps.Performance.PerformanceMetrics())
}

func (rt *Router) clearPerformanceMetrics(w http.ResponseWriter, r *http.Request) {
	cleared, err := rt.deps.Performance.ClearMetrics(r.Context())
	if err != nil {
		// the samples are gone either way, only the archive write failed
		rt.logger.Error("archive cleared samples", zap.Int("cleared", cleared), zap.Error(err))
	}
	rt.respondJSON(w, http.StatusOK, map[string]any{
		"cleared":  cleared,
		"archived": err == nil && rt.deps.Archive != nil,
	})
}

func (rt *Router) archivedSamples(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Archive == nil {
		rt.respondError(w, goerrors.New("sample archive is disabled", goerrors.CategoryNotFound))
		return
	}

	limit := defaultArchiveLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxArchiveLimit {
			rt.respondError(w, goerrors.New(fmt.Sprintf("limit must be between 1 and %d", maxArchiveLimit), goerrors.CategoryValidation))
			return
		}
		limit = n
	}

	samples, err := rt.deps.Archive.Recent(limit)
	if err != nil {
		rt.respondError(w, err)
		return
	}
	rt.respondJSON(w, http.StatusOK, map[string]any{
		"samples": samples,
		"count":   len(samples),
	})
}

func (rt *Router) recommendations(w http.ResponseWriter, r *http.Request) {
	recs := report.Build(rt.deps.Caches.Metrics(), rt.deps.Performance.PerformanceMetrics(), rt.deps.Thresholds)
	rt.respondJSON(w, http.StatusOK, map[string]any{
		"recommendations": recs,
		"generated_at":    rt.deps.Now(),
	})
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	in := report.HealthInput{
		Cache:       rt.deps.Caches.Metrics(),
		Performance: rt.deps.Performance.PerformanceMetrics(),
		Now:         rt.deps.Now(),
	}
	if rt.deps.Database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		in.Database = rt.deps.Database.PingContext(ctx)
		in.Probed = true
		cancel()
	}

	h := report.BuildHealth(in, rt.deps.Thresholds)
	status := http.StatusOK
	if h.Status == report.StatusDegraded {
		status = http.StatusServiceUnavailable
	}
	rt.respondJSON(w, status, h)
}

func (rt *Router) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		rt.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (rt *Router) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case goerrors.IsNotFound(err):
		status = http.StatusNotFound
	case goerrors.IsValidation(err):
		status = http.StatusBadRequest
	default:
		rt.logger.Error("request failed", zap.Error(err))
	}
	rt.respondJSON(w, status, map[string]any{
		"error": err.Error(),
	})
}
