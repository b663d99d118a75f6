// Package marketplace serves the marketplace read paths through the domain
// caches and drops the affected cache entries when records change.
package marketplace

import (
	"context"

	"go.uber.org/zap"

	"github.com/goliatone/go-dispatch-cache/cache"
	"github.com/goliatone/go-dispatch-cache/domaincache"
	"github.com/goliatone/go-dispatch-cache/model"
	"github.com/goliatone/go-dispatch-cache/optimizer"
)

// Queries is the optimizer surface the service reads through.
type Queries interface {
	SearchPackages(ctx context.Context, f optimizer.PackageFilter) (optimizer.Page[model.Package], error)
	SearchTrips(ctx context.Context, f optimizer.TripFilter) (optimizer.Page[model.Trip], error)
	ListBids(ctx context.Context, f optimizer.BidFilter) (optimizer.Page[model.Bid], error)
	ListNotifications(ctx context.Context, f optimizer.NotificationFilter) (optimizer.Page[model.Notification], error)
	Dashboard(ctx context.Context, userID string, role model.Role) (optimizer.DashboardData, error)
}

var _ Queries = (*optimizer.Optimizer)(nil)

// Service caches list results under the domain list namespaces and
// dashboards per user. Failed queries are returned as is and leave the
// caches untouched.
type Service struct {
	caches  *domaincache.Registry
	queries Queries
	logger  *zap.Logger
}

func NewService(caches *domaincache.Registry, queries Queries, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{caches: caches, queries: queries, logger: logger}
}

func listKey(d domaincache.Domain, filter any) string {
	return cache.GenerateKey(domaincache.ListNamespace(d), filter)
}

// DashboardKey is the cache key of the dashboard of userID seen as role.
func DashboardKey(userID string, role model.Role) string {
	return domaincache.ListNamespace(domaincache.Dashboard) + userID + ":" + string(role)
}

func (s *Service) SearchPackages(ctx context.Context, f optimizer.PackageFilter) (optimizer.Page[model.Package], error) {
	return cache.GetOrCompute(ctx, s.caches.Package(), listKey(domaincache.Package, f), 0,
		func(ctx context.Context) (optimizer.Page[model.Package], error) {
			return s.queries.SearchPackages(ctx, f)
		})
}

func (s *Service) SearchTrips(ctx context.Context, f optimizer.TripFilter) (optimizer.Page[model.Trip], error) {
	return cache.GetOrCompute(ctx, s.caches.Trip(), listKey(domaincache.Trip, f), 0,
		func(ctx context.Context) (optimizer.Page[model.Trip], error) {
			return s.queries.SearchTrips(ctx, f)
		})
}

func (s *Service) ListBids(ctx context.Context, f optimizer.BidFilter) (optimizer.Page[model.Bid], error) {
	return cache.GetOrCompute(ctx, s.caches.Bid(), listKey(domaincache.Bid, f), 0,
		func(ctx context.Context) (optimizer.Page[model.Bid], error) {
			return s.queries.ListBids(ctx, f)
		})
}

// ListNotifications is not cached: read state changes with every view.
func (s *Service) ListNotifications(ctx context.Context, f optimizer.NotificationFilter) (optimizer.Page[model.Notification], error) {
	return s.queries.ListNotifications(ctx, f)
}

func (s *Service) Dashboard(ctx context.Context, userID string, role model.Role) (optimizer.DashboardData, error) {
	return cache.GetOrCompute(ctx, s.caches.Dashboard(), DashboardKey(userID, role), 0,
		func(ctx context.Context) (optimizer.DashboardData, error) {
			return s.queries.Dashboard(ctx, userID, role)
		})
}

// PackageChanged drops cached package lists, entries naming the package
// and the dashboard of its customer.
func (s *Service) PackageChanged(p model.Package) {
	removed := s.caches.InvalidatePackage(p.ID.String())
	removed += s.dropDashboard(p.CustomerID.String())
	s.logChange("package", p.ID.String(), removed)
}

// TripChanged drops cached trip lists and the dashboard of the driver.
func (s *Service) TripChanged(t model.Trip) {
	removed := s.caches.InvalidateTrip(t.ID.String())
	removed += s.dropDashboard(t.DriverID.String())
	s.logChange("trip", t.ID.String(), removed)
}

// BidChanged drops cached bid lists and the dashboard of the bidding
// driver. Package lists are left alone.
func (s *Service) BidChanged(b model.Bid) {
	removed := s.caches.InvalidateBid(b.ID.String())
	removed += s.dropDashboard(b.DriverID.String())
	s.logChange("bid", b.ID.String(), removed)
}

// UserChanged drops everything cached for the user.
func (s *Service) UserChanged(u model.User) {
	s.UserInvalidated(context.Background(), u.ID.String())
}

// UserInvalidated is UserChanged keyed by id. Its signature matches the
// invalidation hook of the cached user repository.
func (s *Service) UserInvalidated(_ context.Context, id string) {
	removed := s.caches.InvalidateUser(id)
	removed += s.dropDashboard(id)
	s.logChange("user", id, removed)
}

// NotificationChanged only affects the unread count on the dashboard.
func (s *Service) NotificationChanged(n model.Notification) {
	removed := s.dropDashboard(n.UserID.String())
	s.logChange("notification", n.ID.String(), removed)
}

// dropDashboard removes only the dashboards of userID. Invalidating the
// dashboard domain by id would also match its list namespace, which every
// dashboard key lives under.
func (s *Service) dropDashboard(userID string) int {
	return s.caches.Dashboard().RemoveContaining(userID)
}

func (s *Service) logChange(kind, id string, removed int) {
	s.logger.Debug("record changed",
		zap.String("kind", kind),
		zap.String("id", id),
		zap.Int("removed", removed),
	)
}
