package report

import (
	"time"

	"github.com/goliatone/go-dispatch-cache/domaincache"
	"github.com/goliatone/go-dispatch-cache/optimizer"
)

type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusUnknown  Status = "unknown"
)

// Check is the outcome for one component.
type Check struct {
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Health is a snapshot built only from measured values. Components this
// process cannot measure are reported as unknown rather than guessed.
type Health struct {
	Status      Status           `json:"status"`
	Checks      map[string]Check `json:"checks"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// HealthInput carries the measurements Health is derived from. Database is
// only consulted when Probed is set.
type HealthInput struct {
	Cache       domaincache.Metrics
	Performance optimizer.PerformanceMetrics
	Database    error
	Probed      bool
	Now         time.Time
}

// BuildHealth derives the health snapshot. The overall status is degraded
// when any measured check is degraded.
func BuildHealth(in HealthInput, th Thresholds) Health {
	h := Health{
		Status:      StatusOK,
		Checks:      make(map[string]Check, 4),
		GeneratedAt: in.Now,
	}

	cacheCheck := Check{Status: StatusOK}
	if in.Cache.Aggregate.UtilizationRate > th.Utilization {
		cacheCheck = Check{Status: StatusDegraded, Detail: "cache utilization above threshold"}
	}
	h.Checks["cache"] = cacheCheck

	perfCheck := Check{Status: StatusOK}
	if n := len(in.Performance.Samples); n > 0 && len(in.Performance.SlowSamples)*2 > n {
		perfCheck = Check{Status: StatusDegraded, Detail: "most recent queries are slow"}
	}
	h.Checks["queries"] = perfCheck

	switch {
	case !in.Probed:
		h.Checks["database"] = Check{Status: StatusUnknown}
	case in.Database != nil:
		h.Checks["database"] = Check{Status: StatusDegraded, Detail: in.Database.Error()}
	default:
		h.Checks["database"] = Check{Status: StatusOK}
	}

	h.Checks["messaging"] = Check{Status: StatusUnknown, Detail: "not measured by this process"}

	for _, c := range h.Checks {
		if c.Status == StatusDegraded {
			h.Status = StatusDegraded
			break
		}
	}
	return h
}
