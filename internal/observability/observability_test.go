package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-dispatch-cache/domaincache"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug", true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	logger, err = NewLogger("", false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))

	_, err = NewLogger("loud", false)
	assert.Error(t, err)
}

func TestCollector_CacheEvents(t *testing.T) {
	c := NewCollector("test")

	c.Hit("package")
	c.Hit("package")
	c.Miss("package")
	c.Evicted("trip")
	c.Expired("bid", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.CacheHits.WithLabelValues("package")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheMisses.WithLabelValues("package")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheEvictions.WithLabelValues("trip")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.CacheExpired.WithLabelValues("bid")))
}

func TestCollector_ObserveQuery(t *testing.T) {
	c := NewCollector("test")

	c.ObserveQuery("searchPackages", 20*time.Millisecond, 5, nil)
	c.ObserveQuery("searchPackages", 30*time.Millisecond, 0, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Queries.WithLabelValues("searchPackages", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Queries.WithLabelValues("searchPackages", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.QueryDuration))
}

func TestCollector_RegistryGaugesAndHandler(t *testing.T) {
	reg, err := domaincache.NewRegistry(domaincache.Options{MaxSize: 10, Observer: nil})
	require.NoError(t, err)
	reg.Package().Set("packages:list::a", 1)

	c := NewCollector("test")
	require.NoError(t, c.WatchRegistry("test", reg))
	reg.Package().Get("packages:list::a")
	c.Hit("package")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `test_cache_entries{store="package"} 1`)
	assert.Contains(t, body, `test_cache_capacity{store="trip"} 10`)
	assert.Contains(t, body, `test_cache_hit_rate{store="package"} 1`)
	assert.Contains(t, body, `test_cache_hits_total{store="package"} 1`)
}
