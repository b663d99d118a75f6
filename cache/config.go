package cache

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

// Config exposes the settings of a single Store.
type Config struct {
	// Name identifies the store in stats, logs and metrics.
	Name string

	// MaxSize bounds the number of resident entries. Must be greater than 0.
	MaxSize int

	// DefaultTTL is used when a value is stored without an explicit TTL.
	// Must be greater than 0.
	DefaultTTL time.Duration

	// SingleFlight collapses concurrent misses on the same key into a
	// single compute call. Disabled by default: every caller that misses
	// runs its own compute function.
	SingleFlight bool
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Name:       "default",
		MaxSize:    1000,
		DefaultTTL: 5 * time.Minute,
	}
}

// WithName returns a copy of the config using the provided name.
func (c Config) WithName(name string) Config {
	c.Name = name
	return c
}

// WithTTL returns a copy of the config using the provided default TTL.
func (c Config) WithTTL(ttl time.Duration) Config {
	c.DefaultTTL = ttl
	return c
}

// Validate checks whether the configuration values are valid.
// The returned error is a go-errors validation error carrying one entry per
// offending field.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.MaxSize, validation.Required, validation.Min(1)),
		validation.Field(&c.DefaultTTL, validation.Required, validation.Min(time.Millisecond)),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid cache configuration")
	}
	return nil
}
