// Package config loads the process configuration: built-in defaults, then
// an optional YAML file, then DISPATCH_CACHE_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-dispatch-cache/cache"
	"github.com/goliatone/go-dispatch-cache/domaincache"
	"github.com/goliatone/go-dispatch-cache/internal/cacheinfra"
	"github.com/goliatone/go-dispatch-cache/optimizer"
	"github.com/goliatone/go-dispatch-cache/persistence"
	"github.com/goliatone/go-dispatch-cache/report"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DISPATCH_CACHE_"

type Config struct {
	Server      ServerConfig       `yaml:"server"`
	Log         LogConfig          `yaml:"log"`
	Cache       CacheConfig        `yaml:"cache"`
	EntityCache cacheinfra.Config  `yaml:"entity_cache"`
	Optimizer   OptimizerConfig    `yaml:"optimizer"`
	Report      ReportConfig       `yaml:"report"`
	Database    persistence.Config `yaml:"database"`
	Archive     ArchiveConfig      `yaml:"archive"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// CacheConfig configures the domain stores.
type CacheConfig struct {
	MaxSize       int                      `yaml:"max_size"`
	SingleFlight  bool                     `yaml:"single_flight"`
	SweepInterval time.Duration            `yaml:"sweep_interval"`
	TTLs          map[string]time.Duration `yaml:"ttls"`
}

type OptimizerConfig struct {
	SampleCapacity int           `yaml:"sample_capacity"`
	SlowThreshold  time.Duration `yaml:"slow_threshold"`
	IndexThreshold time.Duration `yaml:"index_threshold"`
	RewriteAfter   time.Duration `yaml:"rewrite_threshold"`
	LargeResult    int           `yaml:"large_result_rows"`
}

type ReportConfig struct {
	Utilization float64       `yaml:"utilization"`
	MaxAvgAge   time.Duration `yaml:"max_average_age"`
	MinHitRate  float64       `yaml:"min_hit_rate"`
	MinLookups  uint64        `yaml:"min_lookups"`
}

// ArchiveConfig locates the sample archive. An empty Path disables it.
type ArchiveConfig struct {
	Path       string `yaml:"path"`
	MaxSamples int    `yaml:"max_samples"`
}

// Default returns the built-in configuration.
func Default() Config {
	th := optimizer.DefaultThresholds()
	rt := report.DefaultThresholds()

	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Cache: CacheConfig{
			MaxSize:       cache.DefaultConfig().MaxSize,
			SweepInterval: domaincache.DefaultSweepInterval,
		},
		EntityCache: cacheinfra.DefaultConfig(),
		Optimizer: OptimizerConfig{
			SampleCapacity: optimizer.DefaultSampleCapacity,
			SlowThreshold:  optimizer.DefaultSlowThreshold,
			IndexThreshold: th.Index,
			RewriteAfter:   th.QueryRewrite,
			LargeResult:    th.Rows,
		},
		Report: ReportConfig{
			Utilization: rt.Utilization,
			MaxAvgAge:   rt.MaxAvgAge,
			MinHitRate:  rt.MinHitRate,
			MinLookups:  rt.MinLookups,
		},
		Database: persistence.DefaultConfig(),
		Archive:  ArchiveConfig{MaxSamples: 100000},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, goerrors.New(fmt.Sprintf("parse config %s: %v", path, err), goerrors.CategoryValidation)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Server),
		validation.Field(&c.Log),
		validation.Field(&c.Cache),
		validation.Field(&c.Optimizer),
		validation.Field(&c.Report),
		validation.Field(&c.Database),
		validation.Field(&c.Archive),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid configuration")
	}
	return c.EntityCache.Validate()
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
		validation.Field(&s.ReadTimeout, validation.Min(time.Duration(0))),
		validation.Field(&s.WriteTimeout, validation.Min(time.Duration(0))),
		validation.Field(&s.ShutdownTimeout, validation.Required),
	)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error", "dpanic", "panic", "fatal")),
	)
}

func (c CacheConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxSize, validation.Required, validation.Min(1)),
		validation.Field(&c.SweepInterval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.TTLs, validation.By(validDomainTTLs)),
	)
}

func validDomainTTLs(value any) error {
	ttls, _ := value.(map[string]time.Duration)
	for name, ttl := range ttls {
		if _, ok := domaincache.ParseDomain(name); !ok {
			return fmt.Errorf("unknown cache domain %q", name)
		}
		if ttl < time.Millisecond {
			return fmt.Errorf("ttl of %s must be at least 1ms", name)
		}
	}
	return nil
}

func (o OptimizerConfig) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.SampleCapacity, validation.Required, validation.Min(1)),
		validation.Field(&o.SlowThreshold, validation.Required),
		validation.Field(&o.IndexThreshold, validation.Required),
		validation.Field(&o.RewriteAfter, validation.Required),
		validation.Field(&o.LargeResult, validation.Required, validation.Min(1)),
	)
}

func (r ReportConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Utilization, validation.Required, validation.Max(1.0)),
		validation.Field(&r.MaxAvgAge, validation.Required),
		validation.Field(&r.MinHitRate, validation.Min(0.0), validation.Max(1.0)),
	)
}

func (a ArchiveConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.MaxSamples, validation.Min(0)),
	)
}

// RegistryOptions converts the cache section. Unknown domains have been
// rejected by Validate.
func (c CacheConfig) RegistryOptions() domaincache.Options {
	ttls := make(map[domaincache.Domain]time.Duration, len(c.TTLs))
	for name, ttl := range c.TTLs {
		if d, ok := domaincache.ParseDomain(name); ok {
			ttls[d] = ttl
		}
	}
	return domaincache.Options{
		MaxSize:      c.MaxSize,
		TTLs:         ttls,
		SingleFlight: c.SingleFlight,
	}
}

// Thresholds returns the suggestion rule thresholds.
func (o OptimizerConfig) Thresholds() optimizer.Thresholds {
	return optimizer.Thresholds{
		Index:        o.IndexThreshold,
		QueryRewrite: o.RewriteAfter,
		Slow:         o.SlowThreshold,
		Rows:         o.LargeResult,
	}
}

func (r ReportConfig) Thresholds() report.Thresholds {
	return report.Thresholds{
		Utilization: r.Utilization,
		MaxAvgAge:   r.MaxAvgAge,
		MinHitRate:  r.MinHitRate,
		MinLookups:  r.MinLookups,
	}
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides the most commonly tuned settings.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	env := envReader{lookup: lookup}

	env.str("HTTP_ADDR", &cfg.Server.Addr)
	env.str("LOG_LEVEL", &cfg.Log.Level)
	env.boolean("LOG_DEVELOPMENT", &cfg.Log.Development)
	env.str("DB_DRIVER", &cfg.Database.Driver)
	env.str("DB_DSN", &cfg.Database.DSN)
	env.integer("CACHE_MAX_SIZE", &cfg.Cache.MaxSize)
	env.boolean("CACHE_SINGLE_FLIGHT", &cfg.Cache.SingleFlight)
	env.duration("SWEEP_INTERVAL", &cfg.Cache.SweepInterval)
	env.integer("SAMPLE_CAPACITY", &cfg.Optimizer.SampleCapacity)
	env.duration("SLOW_THRESHOLD", &cfg.Optimizer.SlowThreshold)
	env.str("ARCHIVE_PATH", &cfg.Archive.Path)

	return env.err
}

// envReader keeps the first parse failure.
type envReader struct {
	lookup lookupFunc
	err    error
}

func (e *envReader) get(name string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	return e.lookup(EnvPrefix + name)
}

func (e *envReader) fail(name, value string, err error) {
	e.err = goerrors.New(fmt.Sprintf("invalid %s%s=%q: %v", EnvPrefix, name, value, err), goerrors.CategoryValidation)
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) boolean(name string, dst *bool) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = b
}

func (e *envReader) integer(name string, dst *int) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = n
}

func (e *envReader) duration(name string, dst *time.Duration) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(name, v, err)
		return
	}
	*dst = d
}
