package domaincache

import (
	"strings"
	"time"

	"github.com/goliatone/go-dispatch-cache/cache"
	goerrors "github.com/goliatone/go-errors"
	"go.uber.org/zap"
)

// Options configures a Registry.
type Options struct {
	// MaxSize is the capacity shared by every domain store. Zero selects
	// the cache package default.
	MaxSize int

	// TTLs overrides the default TTL of individual domains.
	TTLs map[Domain]time.Duration

	// SingleFlight enables in-flight deduplication on every store.
	SingleFlight bool

	Clock    cache.Clock
	Observer cache.Observer
	Logger   *zap.Logger
}

// Registry owns one cache.Store per domain. Stores share no lock and no
// capacity.
type Registry struct {
	stores map[Domain]*cache.Store
	logger *zap.Logger
}

// NewRegistry builds every domain store. It fails if any resulting store
// configuration is invalid.
func NewRegistry(opts Options) (*Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxSize := opts.MaxSize
	if maxSize == 0 {
		maxSize = cache.DefaultConfig().MaxSize
	}

	var storeOpts []cache.Option
	if opts.Clock != nil {
		storeOpts = append(storeOpts, cache.WithClock(opts.Clock))
	}
	if opts.Observer != nil {
		storeOpts = append(storeOpts, cache.WithObserver(opts.Observer))
	}

	r := &Registry{
		stores: make(map[Domain]*cache.Store, len(allDomains)),
		logger: logger,
	}

	for _, d := range allDomains {
		ttl := defaultTTLs[d]
		if override, ok := opts.TTLs[d]; ok {
			ttl = override
		}

		store, err := cache.NewStore(cache.Config{
			Name:         string(d),
			MaxSize:      maxSize,
			DefaultTTL:   ttl,
			SingleFlight: opts.SingleFlight,
		}, storeOpts...)
		if err != nil {
			return nil, err
		}
		r.stores[d] = store
	}

	return r, nil
}

// Domains returns the registered domains in a fixed order.
func (r *Registry) Domains() []Domain {
	out := make([]Domain, len(allDomains))
	copy(out, allDomains)
	return out
}

// Store returns the store for d.
func (r *Registry) Store(d Domain) (*cache.Store, error) {
	store, ok := r.stores[d]
	if !ok {
		return nil, goerrors.New("unknown cache domain: "+string(d), goerrors.CategoryNotFound)
	}
	return store, nil
}

func (r *Registry) Package() *cache.Store   { return r.stores[Package] }
func (r *Registry) Trip() *cache.Store      { return r.stores[Trip] }
func (r *Registry) Bid() *cache.Store       { return r.stores[Bid] }
func (r *Registry) User() *cache.Store      { return r.stores[User] }
func (r *Registry) Dashboard() *cache.Store { return r.stores[Dashboard] }

// Invalidate removes cached data for d. With an id, only keys mentioning
// the id or living under the domain list namespace go; with an empty id the
// whole domain is cleared. It returns the number of removed entries.
func (r *Registry) Invalidate(d Domain, id string) (int, error) {
	store, err := r.Store(d)
	if err != nil {
		return 0, err
	}

	var removed int
	if id == "" {
		removed = store.Len()
		store.Clear()
	} else {
		namespace := listNamespaces[d]
		removed = store.RemoveMatching(func(key string) bool {
			return strings.Contains(key, id) || strings.HasPrefix(key, namespace)
		})
	}

	r.logger.Debug("cache invalidated",
		zap.String("domain", string(d)),
		zap.String("id", id),
		zap.Int("removed", removed),
	)
	return removed, nil
}

func (r *Registry) InvalidatePackage(id string) int   { return r.mustInvalidate(Package, id) }
func (r *Registry) InvalidateTrip(id string) int      { return r.mustInvalidate(Trip, id) }
func (r *Registry) InvalidateBid(id string) int       { return r.mustInvalidate(Bid, id) }
func (r *Registry) InvalidateUser(id string) int      { return r.mustInvalidate(User, id) }
func (r *Registry) InvalidateDashboard(id string) int { return r.mustInvalidate(Dashboard, id) }

// mustInvalidate is only called with registered domains.
func (r *Registry) mustInvalidate(d Domain, id string) int {
	removed, _ := r.Invalidate(d, id)
	return removed
}

// CleanupExpired sweeps every store and returns the removed count per domain.
func (r *Registry) CleanupExpired() map[Domain]int {
	out := make(map[Domain]int, len(r.stores))
	for _, d := range allDomains {
		out[d] = r.stores[d].CleanupExpired()
	}
	return out
}

// ClearAll empties every store.
func (r *Registry) ClearAll() {
	for _, d := range allDomains {
		r.stores[d].Clear()
	}
	r.logger.Info("all caches cleared")
}
