package cacheinfra

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/viccon/sturdyc"
)

// Config holds the settings of the shared entity cache.
type Config struct {
	// Capacity defines the maximum number of entries. Must be greater than 0.
	Capacity int `yaml:"capacity"`

	// NumShards determines the number of shards. Must be greater than 0.
	NumShards int `yaml:"num_shards"`

	// TTL is the lifetime of cached entries. Must be greater than 0.
	TTL time.Duration `yaml:"ttl"`

	// EvictionPercentage is the share of a full shard evicted at once (1-100).
	EvictionPercentage int `yaml:"eviction_percentage"`

	// EarlyRefresh enables background refreshes of hot entries. Nil disables it.
	EarlyRefresh *EarlyRefreshConfig `yaml:"early_refresh"`

	// MissingRecordStorage remembers lookups that returned sturdyc.ErrNotFound.
	MissingRecordStorage bool `yaml:"missing_record_storage"`

	// EvictionInterval sets how often expired entries are dropped. Zero keeps
	// the sturdyc default.
	EvictionInterval time.Duration `yaml:"eviction_interval"`
}

// EarlyRefreshConfig mirrors sturdyc.WithEarlyRefreshes.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration `yaml:"min_async_refresh_time"`
	MaxAsyncRefreshTime time.Duration `yaml:"max_async_refresh_time"`
	SyncRefreshTime     time.Duration `yaml:"sync_refresh_time"`
	RetryBaseDelay      time.Duration `yaml:"retry_base_delay"`
}

// DefaultConfig returns the entity cache defaults. User records are the
// main tenant, so the TTL matches the user domain.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          64,
		TTL:                10 * time.Minute,
		EvictionPercentage: 10,
		EarlyRefresh: &EarlyRefreshConfig{
			MinAsyncRefreshTime: 4 * time.Minute,
			MaxAsyncRefreshTime: 6 * time.Minute,
			SyncRefreshTime:     9 * time.Minute,
			RetryBaseDelay:      100 * time.Millisecond,
		},
		MissingRecordStorage: true,
	}
}

// ToSturdycOptions converts the optional settings. Capacity, NumShards, TTL
// and EvictionPercentage are constructor arguments of sturdyc.New.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate checks the configuration and reports every offending field.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.EarlyRefresh),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid entity cache configuration")
	}
	return nil
}

// Validate implements validation.Validatable so nested errors are reported
// under early_refresh.
func (e *EarlyRefreshConfig) Validate() error {
	if e == nil {
		return nil
	}
	return validation.ValidateStruct(e,
		validation.Field(&e.MinAsyncRefreshTime, validation.Min(time.Duration(0))),
		validation.Field(&e.MaxAsyncRefreshTime, validation.Min(e.MinAsyncRefreshTime)),
		validation.Field(&e.SyncRefreshTime, validation.Min(time.Duration(0))),
		validation.Field(&e.RetryBaseDelay, validation.Min(time.Duration(0))),
	)
}
