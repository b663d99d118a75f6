package cacheinfra

import (
	"context"
	"strings"

	"github.com/goliatone/go-dispatch-cache/cache"
	"github.com/viccon/sturdyc"
)

var _ cache.CacheService = (*SturdycService)(nil)

// SturdycService implements cache.CacheService on top of a sturdyc client.
// It backs the entity cache shared by the cached repositories.
type SturdycService struct {
	client *sturdyc.Client[any]
}

// NewSturdycService validates cfg and builds the sturdyc client.
func NewSturdycService(cfg Config) (*SturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &SturdycService{client: client}, nil
}

// GetOrFetch implements cache.CacheService.GetOrFetch. Concurrent misses on
// the same key are deduplicated by sturdyc.
func (s *SturdycService) GetOrFetch(ctx context.Context, key string, fetchFn cache.FetchFn[any]) (any, error) {
	return s.client.GetOrFetch(ctx, key, sturdyc.FetchFn[any](fetchFn))
}

// Delete implements cache.CacheService.Delete.
func (s *SturdycService) Delete(ctx context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// DeleteByPrefix implements cache.CacheService.DeleteByPrefix by scanning
// the resident keys.
func (s *SturdycService) DeleteByPrefix(ctx context.Context, prefix string) error {
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
		}
	}
	return nil
}

// Size returns the number of resident entries.
func (s *SturdycService) Size() int {
	return s.client.Size()
}
