package di

import (
	"context"
	"errors"
	"net/http"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-dispatch-cache/cache"
	"github.com/goliatone/go-dispatch-cache/domaincache"
	"github.com/goliatone/go-dispatch-cache/internal/archive"
	"github.com/goliatone/go-dispatch-cache/internal/cacheinfra"
	"github.com/goliatone/go-dispatch-cache/internal/config"
	"github.com/goliatone/go-dispatch-cache/internal/httpapi"
	"github.com/goliatone/go-dispatch-cache/internal/observability"
	"github.com/goliatone/go-dispatch-cache/marketplace"
	"github.com/goliatone/go-dispatch-cache/model"
	"github.com/goliatone/go-dispatch-cache/optimizer"
	"github.com/goliatone/go-dispatch-cache/persistence"
	"github.com/goliatone/go-dispatch-cache/repositorycache"
)

// MetricsNamespace prefixes every exported prometheus metric.
const MetricsNamespace = "dispatch_cache"

// Container builds every component once and hands out the shared
// instances. Close releases what it opened.
type Container struct {
	config config.Config
	logger *zap.Logger

	collector     *observability.Collector
	caches        *domaincache.Registry
	sweeper       *domaincache.Sweeper
	entityCache   cache.CacheService
	keySerializer cache.KeySerializer

	db          *bun.DB
	repos       persistence.Repositories
	users       *repositorycache.CachedRepository[*model.User]
	archive     *archive.Archive
	optimizer   *optimizer.Optimizer
	marketplace *marketplace.Service
	handler     http.Handler
}

// Option customizes a Container.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger replaces the logger built from the log configuration.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// NewContainer validates cfg and wires the components it describes. The
// database is opened and migrated before it returns.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		if logger, err = observability.NewLogger(cfg.Log.Level, cfg.Log.Development); err != nil {
			return nil, err
		}
	}

	c := &Container{config: cfg, logger: logger}
	if err := c.build(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// NewContainerWithDefaults wires the built-in configuration: an in-memory
// sqlite database and no sample archive.
func NewContainerWithDefaults(ctx context.Context, opts ...Option) (*Container, error) {
	return NewContainer(ctx, config.Default(), opts...)
}

func (c *Container) build(ctx context.Context) error {
	cfg := c.config

	c.collector = observability.NewCollector(MetricsNamespace)

	registryOpts := cfg.Cache.RegistryOptions()
	registryOpts.Observer = c.collector
	registryOpts.Logger = c.logger.Named("cache")
	caches, err := domaincache.NewRegistry(registryOpts)
	if err != nil {
		return err
	}
	c.caches = caches
	if err := c.collector.WatchRegistry(MetricsNamespace, caches); err != nil {
		return err
	}
	c.sweeper = domaincache.NewSweeper(caches, cfg.Cache.SweepInterval, c.logger.Named("sweeper"))

	entityCache, err := cacheinfra.NewSturdycService(cfg.EntityCache)
	if err != nil {
		return err
	}
	c.entityCache = entityCache
	c.keySerializer = cache.NewDefaultKeySerializer()

	if c.db, err = persistence.Open(ctx, cfg.Database, c.logger); err != nil {
		return err
	}
	if err := persistence.Migrate(ctx, c.db); err != nil {
		return err
	}
	c.repos = persistence.NewRepositories(c.db)

	recorderCfg := optimizer.RecorderConfig{
		Capacity:      cfg.Optimizer.SampleCapacity,
		SlowThreshold: cfg.Optimizer.SlowThreshold,
		Rules:         optimizer.DefaultRules(cfg.Optimizer.Thresholds()),
	}
	if cfg.Archive.Path != "" {
		if c.archive, err = archive.Open(cfg.Archive.Path, archive.Options{MaxSamples: cfg.Archive.MaxSamples}); err != nil {
			return err
		}
		recorderCfg.Sink = c.archive
	}

	// the user repository hook needs the service, the service needs the
	// optimizer, and the optimizer reads users through the repository
	var svc *marketplace.Service
	c.users = NewCachedRepository(c, c.repos.Users, repositorycache.Options[*model.User]{
		Namespace: "user",
		IDFunc:    func(u *model.User) string { return u.ID.String() },
		OnInvalidate: func(ctx context.Context, id string) {
			svc.UserInvalidated(ctx, id)
		},
		Logger: c.logger.Named("users"),
	})

	// dashboards read users through the user domain store, which falls
	// back to the entity-cached repository
	sources := persistence.Sources(c.db, c.repos, c.users)
	sources.Users = marketplace.NewUserReader(caches, sources.Users)

	recorder, err := optimizer.NewRecorder(recorderCfg)
	if err != nil {
		return err
	}

	c.optimizer = optimizer.New(
		sources,
		optimizer.WithRecorder(recorder),
		optimizer.WithObserver(c.collector),
		optimizer.WithLogger(c.logger.Named("optimizer")),
	)
	svc = marketplace.NewService(caches, c.optimizer, c.logger.Named("marketplace"))
	c.marketplace = svc

	deps := httpapi.Deps{
		Caches:      caches,
		Performance: c.optimizer,
		Thresholds:  cfg.Report.Thresholds(),
		Database:    c.db,
		Metrics:     c.collector.Handler(),
		Observer:    c.collector,
		Logger:      c.logger.Named("http"),
	}
	if c.archive != nil {
		deps.Archive = c.archive
	}
	c.handler = httpapi.NewRouter(deps).Setup()

	return nil
}

// Start launches the background sweep. It stops with ctx or Close.
func (c *Container) Start(ctx context.Context) {
	c.sweeper.Start(ctx)
}

// Close stops the sweep and releases the archive and the database.
func (c *Container) Close() error {
	if c.sweeper != nil {
		c.sweeper.Stop()
	}
	var errs []error
	if c.archive != nil {
		errs = append(errs, c.archive.Close())
	}
	if c.db != nil {
		errs = append(errs, c.db.Close())
	}
	return errors.Join(errs...)
}

func (c *Container) Config() config.Config                  { return c.config }
func (c *Container) Logger() *zap.Logger                    { return c.logger }
func (c *Container) Collector() *observability.Collector    { return c.collector }
func (c *Container) Caches() *domaincache.Registry          { return c.caches }
func (c *Container) Sweeper() *domaincache.Sweeper          { return c.sweeper }
func (c *Container) DB() *bun.DB                            { return c.db }
func (c *Container) Repositories() persistence.Repositories { return c.repos }
func (c *Container) Optimizer() *optimizer.Optimizer        { return c.optimizer }
func (c *Container) Archive() *archive.Archive              { return c.archive }
func (c *Container) Marketplace() *marketplace.Service      { return c.marketplace }
func (c *Container) Handler() http.Handler                  { return c.handler }

// Users returns the user repository reading through the entity cache.
func (c *Container) Users() *repositorycache.CachedRepository[*model.User] { return c.users }

// CacheService returns the shared entity cache.
func (c *Container) CacheService() cache.CacheService { return c.entityCache }

// KeySerializer returns the key serializer used by cached repositories.
func (c *Container) KeySerializer() cache.KeySerializer { return c.keySerializer }

// NewCachedRepository wraps base with the shared entity cache and key
// serializer of the container.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
func NewCachedRepository[T any](c *Container, base repositorycache.Repository[T], opts ...repositorycache.Options[T]) *repositorycache.CachedRepository[T] {
	return repositorycache.New(base, c.entityCache, c.keySerializer, opts...)
}
