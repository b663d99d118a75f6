package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/sync/singleflight"
)

// entry is replaced wholesale on every write and never mutated in place.
type entry struct {
	value    any
	storedAt time.Time
	ttl      time.Duration
	seq      uint64
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.storedAt) > e.ttl
}

// older reports whether e was stored before other. Equal timestamps fall
// back to insertion order so eviction stays deterministic.
func (e *entry) older(other *entry) bool {
	if e.storedAt.Equal(other.storedAt) {
		return e.seq < other.seq
	}
	return e.storedAt.Before(other.storedAt)
}

// Store is an in-memory TTL cache bounded by a maximum number of entries.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	name         string
	maxSize      int
	defaultTTL   time.Duration
	singleFlight bool

	clock    Clock
	observer Observer

	mu      sync.Mutex
	entries map[string]*entry
	seq     uint64

	hits   atomic.Uint64
	misses atomic.Uint64

	group singleflight.Group
}

// Option customizes a Store at construction time.
type Option func(*Store)

// WithClock replaces the wall clock, mostly useful to simulate time in tests.
func WithClock(clock Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithObserver installs an Observer for hit, miss, eviction and expiry events.
func WithObserver(observer Observer) Option {
	return func(s *Store) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// NewStore validates cfg and returns an empty Store.
func NewStore(cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		name:         cfg.Name,
		maxSize:      cfg.MaxSize,
		defaultTTL:   cfg.DefaultTTL,
		singleFlight: cfg.SingleFlight,
		clock:        SystemClock{},
		observer:     NoopObserver{},
		entries:      make(map[string]*entry, cfg.MaxSize),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Name returns the store name.
func (s *Store) Name() string { return s.name }

// MaxSize returns the configured capacity.
func (s *Store) MaxSize() int { return s.maxSize }

// DefaultTTL returns the TTL applied when none is given.
func (s *Store) DefaultTTL() time.Duration { return s.defaultTTL }

// Get returns the value stored under key. Expired entries are removed and
// reported as a miss.
func (s *Store) Get(key string) (any, bool) {
	value, ok := s.lookup(key)
	if ok {
		s.hits.Add(1)
		s.observer.Hit(s.name)
		return value, true
	}
	s.misses.Add(1)
	s.observer.Miss(s.name)
	return nil, false
}

// lookup reads key, applying lazy expiry, without touching the counters.
func (s *Store) lookup(key string) (any, bool) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	if e.expired(s.clock.Now()) {
		delete(s.entries, key)
		s.mu.Unlock()
		s.observer.Expired(s.name, 1)
		return nil, false
	}
	s.mu.Unlock()
	return e.value, true
}

// Set stores value under key using the default TTL.
func (s *Store) Set(key string, value any) {
	s.SetWithTTL(key, value, 0)
}

// SetWithTTL stores value under key. A ttl <= 0 selects the default TTL.
// When key is new and the store is full, the oldest entry is evicted before
// the insert so the store never holds more than MaxSize entries.
func (s *Store) SetWithTTL(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	evicted := false
	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxSize {
		evicted = s.evictOldestLocked()
	}
	s.seq++
	s.entries[key] = &entry{
		value:    value,
		storedAt: s.clock.Now(),
		ttl:      ttl,
		seq:      s.seq,
	}
	s.mu.Unlock()

	if evicted {
		s.observer.Evicted(s.name)
	}
}

func (s *Store) evictOldestLocked() bool {
	var (
		oldestKey string
		oldest    *entry
	)
	for key, e := range s.entries {
		if oldest == nil || e.older(oldest) {
			oldestKey = key
			oldest = e
		}
	}
	if oldest == nil {
		return false
	}
	delete(s.entries, oldestKey)
	return true
}

// GetOrCompute returns the cached value for key or, on a miss, runs fn and
// caches its result for ttl (ttl <= 0 selects the default TTL).
// An error from fn is returned unchanged and nothing is stored.
func (s *Store) GetOrCompute(ctx context.Context, key string, ttl time.Duration, fn FetchFn[any]) (any, error) {
	if fn == nil {
		return nil, goerrors.New("fetch function cannot be nil", goerrors.CategoryBadInput)
	}

	if value, ok := s.Get(key); ok {
		return value, nil
	}

	if !s.singleFlight {
		return s.compute(ctx, key, ttl, fn)
	}

	value, err, _ := s.group.Do(key, func() (any, error) {
		// another caller may have filled the key while we queued
		if value, ok := s.lookup(key); ok {
			return value, nil
		}
		return s.compute(ctx, key, ttl, fn)
	})
	return value, err
}

func (s *Store) compute(ctx context.Context, key string, ttl time.Duration, fn FetchFn[any]) (any, error) {
	value, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	s.SetWithTTL(key, value, ttl)
	return value, nil
}

// Delete removes key and reports whether anything was removed.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	return true
}

// RemoveMatching deletes every key for which match returns true and returns
// the number of removed entries.
func (s *Store) RemoveMatching(match func(key string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if match(key) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// RemovePrefix deletes every key starting with prefix.
func (s *Store) RemovePrefix(prefix string) int {
	return s.RemoveMatching(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// RemoveContaining deletes every key that contains fragment.
func (s *Store) RemoveContaining(fragment string) int {
	if fragment == "" {
		return 0
	}
	return s.RemoveMatching(func(key string) bool {
		return strings.Contains(key, fragment)
	})
}

// Clear removes all entries. Hit and miss counters are kept.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]*entry, s.maxSize)
	s.mu.Unlock()
}

// CleanupExpired removes every expired entry and returns how many were removed.
func (s *Store) CleanupExpired() int {
	s.mu.Lock()
	now := s.clock.Now()
	removed := 0
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.observer.Expired(s.name, removed)
	}
	return removed
}

// Len returns the number of resident entries, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Keys returns the resident keys in lexical order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	sort.Strings(keys)
	return keys
}

// Stats returns a snapshot of the store. It never expires entries, so
// resident-but-stale entries are listed with an age above their TTL.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	now := s.clock.Now()
	entries := make([]EntryStats, 0, len(s.entries))
	for key, e := range s.entries {
		entries = append(entries, EntryStats{
			Key: key,
			Age: now.Sub(e.storedAt),
			TTL: e.ttl,
		})
	}
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	hits, misses := s.hits.Load(), s.misses.Load()
	return Stats{
		Name:    s.name,
		Size:    len(entries),
		MaxSize: s.maxSize,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate(hits, misses),
		Entries: entries,
	}
}

// AsService adapts the store to the CacheService interface.
func (s *Store) AsService() CacheService {
	return storeService{store: s}
}

type storeService struct {
	store *Store
}

func (s storeService) GetOrFetch(ctx context.Context, key string, fetchFn FetchFn[any]) (any, error) {
	return s.store.GetOrCompute(ctx, key, 0, fetchFn)
}

func (s storeService) Delete(_ context.Context, key string) error {
	s.store.Delete(key)
	return nil
}

func (s storeService) DeleteByPrefix(_ context.Context, prefix string) error {
	s.store.RemovePrefix(prefix)
	return nil
}
