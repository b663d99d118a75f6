package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"

	"github.com/goliatone/go-dispatch-cache/model"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config selects the database driver and connection string.
type Config struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`

	// SlowQuery makes the query logger warn about statements slower than
	// this. Zero disables the warning.
	SlowQuery time.Duration `yaml:"slow_query"`
}

// DefaultConfig uses a private in-memory sqlite database.
func DefaultConfig() Config {
	return Config{
		Driver:    DriverSQLite,
		DSN:       "file::memory:?cache=shared",
		SlowQuery: 200 * time.Millisecond,
	}
}

// Validate checks the driver and that a DSN is set.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.SlowQuery, validation.Min(time.Duration(0))),
	)
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*bun.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "open database")
	}

	var db *bun.DB
	switch cfg.Driver {
	case DriverSQLite:
		if strings.Contains(cfg.DSN, ":memory:") || strings.Contains(cfg.DSN, "mode=memory") {
			// every connection would otherwise see its own empty database
			sqldb.SetMaxOpenConns(1)
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case DriverPostgres:
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		sqldb.Close()
		return nil, goerrors.New(fmt.Sprintf("unsupported database driver %q", cfg.Driver), goerrors.CategoryValidation)
	}

	db.AddQueryHook(&queryLogger{logger: logger.Named("sql"), slow: cfg.SlowQuery})

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "ping database")
	}
	return db, nil
}

var tables = []any{
	(*model.User)(nil),
	(*model.Package)(nil),
	(*model.Trip)(nil),
	(*model.Bid)(nil),
	(*model.Notification)(nil),
}

type index struct {
	model   any
	name    string
	columns []string
}

// indexes cover the filters the optimizer issues most often.
var indexes = []index{
	{(*model.Package)(nil), "packages_status_created_idx", []string{"status", "created_at"}},
	{(*model.Package)(nil), "packages_customer_idx", []string{"customer_id"}},
	{(*model.Trip)(nil), "trips_status_created_idx", []string{"status", "created_at"}},
	{(*model.Trip)(nil), "trips_driver_idx", []string{"driver_id"}},
	{(*model.Bid)(nil), "bids_package_idx", []string{"package_id"}},
	{(*model.Bid)(nil), "bids_driver_idx", []string{"driver_id"}},
	{(*model.Notification)(nil), "notifications_user_read_idx", []string{"user_id", "read"}},
}

// Migrate creates the marketplace tables and their indexes when missing.
func Migrate(ctx context.Context, db *bun.DB) error {
	for _, table := range tables {
		if _, err := db.NewCreateTable().Model(table).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", table, err)
		}
	}
	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// queryLogger reports failed and slow statements.
type queryLogger struct {
	logger *zap.Logger
	slow   time.Duration
}

var _ bun.QueryHook = (*queryLogger)(nil)

func (h *queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		h.logger.Error("query failed",
			zap.String("query", event.Query),
			zap.Duration("duration", elapsed),
			zap.Error(event.Err),
		)
	case h.slow > 0 && elapsed > h.slow:
		h.logger.Warn("slow query",
			zap.String("query", event.Query),
			zap.Duration("duration", elapsed),
		)
	}
}
