package optimizer

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-dispatch-cache/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Operation names recorded in samples.
const (
	OpSearchPackages    = "searchPackages"
	OpSearchTrips       = "searchTrips"
	OpListBids          = "listBids"
	OpListNotifications = "listNotifications"
	OpDashboard         = "dashboard"
)

// Observer is notified after every optimizer call.
type Observer interface {
	ObserveQuery(op string, d time.Duration, rows int, err error)
}

// Optimizer wraps the read-heavy marketplace queries with projection,
// parallel fetch and count, a uniform page envelope and instrumentation.
type Optimizer struct {
	sources  Sources
	recorder *Recorder
	observer Observer
	logger   *zap.Logger
}

// Option customizes an Optimizer.
type Option func(*Optimizer)

// WithRecorder replaces the default Recorder.
func WithRecorder(r *Recorder) Option {
	return func(o *Optimizer) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithObserver installs an Observer.
func WithObserver(obs Observer) Option {
	return func(o *Optimizer) {
		o.observer = obs
	}
}

// WithLogger sets the logger used for slow call warnings.
func WithLogger(l *zap.Logger) Option {
	return func(o *Optimizer) {
		if l != nil {
			o.logger = l
		}
	}
}

// New returns an Optimizer reading from sources.
func New(sources Sources, opts ...Option) *Optimizer {
	o := &Optimizer{
		sources: sources,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.recorder == nil {
		// the zero config always validates
		o.recorder, _ = NewRecorder(RecorderConfig{})
	}
	return o
}

// Recorder exposes the sample log.
func (o *Optimizer) Recorder() *Recorder { return o.recorder }

// PerformanceMetrics is a shortcut for o.Recorder().Metrics().
func (o *Optimizer) PerformanceMetrics() PerformanceMetrics {
	return o.recorder.Metrics()
}

// ClearMetrics truncates the sample log.
func (o *Optimizer) ClearMetrics(ctx context.Context) (int, error) {
	return o.recorder.Clear(ctx)
}

// track records a sample for op. It never alters err.
func (o *Optimizer) track(op string, start time.Time, rows int, err error) {
	d := time.Since(start)
	sample := o.recorder.Record(op, d, rows)

	if o.observer != nil {
		o.observer.ObserveQuery(op, d, rows, err)
	}
	if sample.Slow {
		o.logger.Warn("slow query",
			zap.String("operation", op),
			zap.Duration("duration", d),
			zap.Int("rows", rows),
		)
	}
}

// fetchPage runs find and count concurrently. The first error wins and is
// returned unchanged.
func fetchPage[T any](ctx context.Context, finder Finder[T], find, count Query) ([]T, int, error) {
	var (
		items []T
		total int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = finder.Find(gctx, find)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = finder.Count(gctx, count)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func missingSource(name string) error {
	return goerrors.New("optimizer: no "+name+" source configured", goerrors.CategoryInternal)
}

// SearchPackages lists packages matching f.
func (o *Optimizer) SearchPackages(ctx context.Context, f PackageFilter) (page Page[model.Package], err error) {
	start := time.Now()
	defer func() { o.track(OpSearchPackages, start, len(page.Items), err) }()

	if err = check(f); err != nil {
		return page, err
	}
	if o.sources.Packages == nil {
		return page, missingSource("package")
	}

	q := f.query(packageResource)
	if f.Status != "" {
		q = q.Where("status", f.Status)
	}
	if f.CustomerID != "" {
		q = q.Where("customer_id", f.CustomerID)
	}
	if f.Search != "" {
		q = q.Contains("description", f.Search)
	}

	items, total, err := fetchPage(ctx, o.sources.Packages, q, q)
	if err != nil {
		return page, err
	}
	return NewPage(items, total, q.Limit, q.Offset), nil
}

// SearchTrips lists trips matching f. With a radius the source is asked
// for twice the page size, trips with neither endpoint inside the radius are
// dropped and the rest truncated to the page size. The total still counts
// every trip matching the non geographic conditions.
func (o *Optimizer) SearchTrips(ctx context.Context, f TripFilter) (page Page[model.Trip], err error) {
	start := time.Now()
	defer func() { o.track(OpSearchTrips, start, len(page.Items), err) }()

	if err = check(f); err != nil {
		return page, err
	}
	if o.sources.Trips == nil {
		return page, missingSource("trip")
	}

	q := f.query(tripResource)
	if f.Status != "" {
		q = q.Where("status", f.Status)
	}
	if f.DriverID != "" {
		q = q.Where("driver_id", f.DriverID)
	}

	find := q
	if f.radius() {
		find.Limit = q.Limit * 2
		for _, c := range []string{"origin_lat", "origin_lng", "destination_lat", "destination_lng"} {
			if !contains(find.Columns, c) {
				find.Columns = append(find.Columns, c)
			}
		}
	}

	items, total, err := fetchPage(ctx, o.sources.Trips, find, q)
	if err != nil {
		return page, err
	}

	if f.radius() {
		items = withinRadius(items, *f.Near, f.RadiusKm)
		if len(items) > q.Limit {
			items = items[:q.Limit]
		}
	}
	return NewPage(items, total, q.Limit, q.Offset), nil
}

// ListBids lists bids matching f.
func (o *Optimizer) ListBids(ctx context.Context, f BidFilter) (page Page[model.Bid], err error) {
	start := time.Now()
	defer func() { o.track(OpListBids, start, len(page.Items), err) }()

	if err = check(f); err != nil {
		return page, err
	}
	if o.sources.Bids == nil {
		return page, missingSource("bid")
	}

	q := f.query(bidResource)
	if f.PackageID != "" {
		q = q.Where("package_id", f.PackageID)
	}
	if f.DriverID != "" {
		q = q.Where("driver_id", f.DriverID)
	}
	if f.Status != "" {
		q = q.Where("status", f.Status)
	}

	items, total, err := fetchPage(ctx, o.sources.Bids, q, q)
	if err != nil {
		return page, err
	}
	return NewPage(items, total, q.Limit, q.Offset), nil
}

// ListNotifications lists notifications matching f.
func (o *Optimizer) ListNotifications(ctx context.Context, f NotificationFilter) (page Page[model.Notification], err error) {
	start := time.Now()
	defer func() { o.track(OpListNotifications, start, len(page.Items), err) }()

	if err = check(f); err != nil {
		return page, err
	}
	if o.sources.Notifications == nil {
		return page, missingSource("notification")
	}

	q := f.query(notificationResource)
	if f.UserID != "" {
		q = q.Where("user_id", f.UserID)
	}
	if f.UnreadOnly {
		q = q.Where("read", false)
	}

	items, total, err := fetchPage(ctx, o.sources.Notifications, q, q)
	if err != nil {
		return page, err
	}
	return NewPage(items, total, q.Limit, q.Offset), nil
}
