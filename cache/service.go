package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidResultType is returned by the typed helpers when the cached value
// does not match the requested type.
var ErrInvalidResultType = errors.New("cache: invalid result type")

// KeySerializer builds a cache key from a method name + arbitrary args.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// FetchFn is the function signature used to compute a value on a cache miss.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService exposes the read-through operations shared by every cache
// backend: the in-memory Store (through Store.AsService) and the shared
// entity cache.
type CacheService interface {
	GetOrFetch(ctx context.Context, key string, fetchFn FetchFn[any]) (any, error)
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// GetOrFetch is a type-safe wrapper around CacheService.GetOrFetch.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetchFn FetchFn[T]) (T, error) {
	result, err := service.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetchFn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return castResult[T](result)
}

// GetOrCompute is a type-safe wrapper around Store.GetOrCompute.
func GetOrCompute[T any](ctx context.Context, store *Store, key string, ttl time.Duration, fetchFn FetchFn[T]) (T, error) {
	result, err := store.GetOrCompute(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return fetchFn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return castResult[T](result)
}

func castResult[T any](result any) (T, error) {
	var zero T
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%w: got %T, want %T", ErrInvalidResultType, result, zero)
	}
	return typed, nil
}
