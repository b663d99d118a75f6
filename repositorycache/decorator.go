package repositorycache

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-dispatch-cache/cache"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// Reader is the read side of a go-repository-bun repository that the
// decorator caches.
type Reader[T any] interface {
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error)
}

// Writer is the write side whose successful calls invalidate cached reads.
type Writer[T any] interface {
	Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error)
	Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error)
	Delete(ctx context.Context, record T) error
}

// Repository is satisfied by repository.Repository[T].
type Repository[T any] interface {
	Reader[T]
	Writer[T]
}

var _ Repository[any] = (repository.Repository[any])(nil)

// InvalidateFunc is called with the id of every record a write touched.
type InvalidateFunc func(ctx context.Context, id string)

// Options customizes a CachedRepository.
type Options[T any] struct {
	// Namespace prefixes every key. Defaults to the snake_case type name of T.
	Namespace string

	// IDFunc returns the id of a record. Defaults to reading an ID field.
	IDFunc func(T) string

	// OnInvalidate is notified after a write invalidated a record.
	OnInvalidate InvalidateFunc

	Logger *zap.Logger
}

// CachedRepository caches id lookups of a base repository and drops them
// again when a write through the decorator touches the record.
// Lookups with extra criteria bypass the cache: criteria are closures and
// have no stable key.
type CachedRepository[T any] struct {
	base          Repository[T]
	cache         cache.CacheService
	keySerializer cache.KeySerializer
	namespace     string
	idOf          func(T) string
	onInvalidate  InvalidateFunc
	logger        *zap.Logger

	// keys maps every key handed to the cache to the tags it was read under
	keys *xsync.MapOf[string, []string]
}

// New wraps base with caching over cacheService.
func New[T any](base Repository[T], cacheService cache.CacheService, keySerializer cache.KeySerializer, opts ...Options[T]) *CachedRepository[T] {
	var o Options[T]
	if len(opts) > 0 {
		o = opts[0]
	}

	c := &CachedRepository[T]{
		base:          base,
		cache:         cacheService,
		keySerializer: keySerializer,
		namespace:     o.Namespace,
		idOf:          o.IDFunc,
		onInvalidate:  o.OnInvalidate,
		logger:        o.Logger,
		keys:          xsync.NewMapOf[string, []string](),
	}
	if c.keySerializer == nil {
		c.keySerializer = cache.NewDefaultKeySerializer()
	}
	if c.namespace == "" {
		c.namespace = namespaceFor[T]()
	}
	if c.idOf == nil {
		c.idOf = extractID[T]
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Namespace returns the key prefix of this repository.
func (c *CachedRepository[T]) Namespace() string { return c.namespace }

func (c *CachedRepository[T]) key(method string, args ...any) string {
	return c.namespace + ":" + c.keySerializer.SerializeKey(method, args...)
}

// GetByID returns the record with id, reading through the cache.
// Tags attached with WithCacheTags are recorded against the key.
func (c *CachedRepository[T]) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error) {
	if len(criteria) > 0 {
		return c.base.GetByID(ctx, id, criteria...)
	}

	key := c.key("GetByID", id)
	c.trackKey(key, append(cacheTagsFromContext(ctx), id)...)

	return cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) (T, error) {
		return c.base.GetByID(ctx, id)
	})
}

// Create passes through and invalidates the tags carried by ctx.
func (c *CachedRepository[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	result, err := c.base.Create(ctx, record, criteria...)
	if err == nil {
		c.invalidateRecord(ctx, result)
	}
	return result, err
}

// Update passes through and invalidates every key read for the record.
func (c *CachedRepository[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.Update(ctx, record, criteria...)
	if err == nil {
		c.invalidateRecord(ctx, result)
	}
	return result, err
}

// Delete passes through and invalidates every key read for the record.
func (c *CachedRepository[T]) Delete(ctx context.Context, record T) error {
	err := c.base.Delete(ctx, record)
	if err == nil {
		c.invalidateRecord(ctx, record)
	}
	return err
}

// InvalidateID drops every cached read of the record with id.
func (c *CachedRepository[T]) InvalidateID(ctx context.Context, id string) int {
	return c.InvalidateTag(ctx, id)
}

// InvalidateTag drops every key that was read under tag.
func (c *CachedRepository[T]) InvalidateTag(ctx context.Context, tag string) int {
	if tag == "" {
		return 0
	}
	var doomed []string
	c.keys.Range(func(key string, tags []string) bool {
		for _, t := range tags {
			if t == tag {
				doomed = append(doomed, key)
				break
			}
		}
		return true
	})
	c.deleteKeys(ctx, doomed)
	return len(doomed)
}

// InvalidateAll drops every key under the namespace.
func (c *CachedRepository[T]) InvalidateAll(ctx context.Context) error {
	c.keys.Range(func(key string, _ []string) bool {
		c.keys.Delete(key)
		return true
	})
	return c.cache.DeleteByPrefix(ctx, c.namespace+":")
}

// TrackedKeys returns the number of keys currently tracked.
func (c *CachedRepository[T]) TrackedKeys() int {
	return c.keys.Size()
}

func (c *CachedRepository[T]) trackKey(key string, tags ...string) {
	c.keys.Compute(key, func(old []string, loaded bool) ([]string, bool) {
		return dedupeStrings(append(old, tags...)), false
	})
}

func (c *CachedRepository[T]) deleteKeys(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := c.cache.Delete(ctx, key); err != nil {
			c.logger.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
		}
		c.keys.Delete(key)
	}
}

func (c *CachedRepository[T]) invalidateRecord(ctx context.Context, record T) {
	for _, tag := range cacheTagsFromContext(ctx) {
		c.InvalidateTag(ctx, tag)
	}

	id := c.idOf(record)
	if id == "" {
		return
	}
	removed := c.InvalidateID(ctx, id)
	c.logger.Debug("repository cache invalidated",
		zap.String("namespace", c.namespace),
		zap.String("id", id),
		zap.Int("removed", removed),
	)
	if c.onInvalidate != nil {
		c.onInvalidate(ctx, id)
	}
}

// extractID reads an ID field by reflection.
func extractID[T any](record T) string {
	v := reflect.ValueOf(record)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return ""
	}

	for _, name := range []string{"ID", "Id"} {
		field := v.FieldByName(name)
		if !field.IsValid() || !field.CanInterface() {
			continue
		}
		if s, ok := field.Interface().(fmt.Stringer); ok {
			return s.String()
		}
		return strings.TrimSpace(fmt.Sprintf("%v", field.Interface()))
	}
	return ""
}
