package optimizer

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-dispatch-cache/model"
	"golang.org/x/sync/errgroup"
)

// DashboardRecentLimit bounds each "recent" list on a dashboard.
const DashboardRecentLimit = 5

// DashboardData is the composed dashboard for one user.
type DashboardData struct {
	User                model.User      `json:"user"`
	Role                model.Role      `json:"role"`
	RecentPackages      []model.Package `json:"recent_packages,omitempty"`
	PackageCount        int             `json:"package_count"`
	RecentTrips         []model.Trip    `json:"recent_trips,omitempty"`
	TripCount           int             `json:"trip_count"`
	RecentBids          []model.Bid     `json:"recent_bids,omitempty"`
	BidCount            int             `json:"bid_count"`
	UnreadNotifications int             `json:"unread_notifications"`
	GeneratedAt         time.Time       `json:"generated_at"`
}

// Rows counts the records the dashboard carries.
func (d DashboardData) Rows() int {
	return 1 + len(d.RecentPackages) + len(d.RecentTrips) + len(d.RecentBids)
}

// Dashboard composes the dashboard of userID as seen by role. Customers see
// their packages, drivers their trips and bids, admins the whole
// marketplace. All sub-queries run in parallel.
func (o *Optimizer) Dashboard(ctx context.Context, userID string, role model.Role) (data DashboardData, err error) {
	start := time.Now()
	defer func() {
		rows := 0
		if err == nil {
			rows = data.Rows()
		}
		o.track(OpDashboard, start, rows, err)
	}()

	if userID == "" {
		return data, goerrors.New("dashboard: user id is required", goerrors.CategoryValidation)
	}
	if !role.Valid() {
		return data, goerrors.New("dashboard: unknown role "+string(role), goerrors.CategoryValidation)
	}
	if err = o.requireDashboardSources(role); err != nil {
		return data, err
	}

	data.Role = role
	recent := Query{Limit: DashboardRecentLimit, SortBy: DefaultSortBy, SortOrder: DefaultSortOrder}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		user, err := o.sources.Users.GetUser(gctx, userID)
		data.User = user
		return err
	})

	if o.sources.Notifications != nil {
		g.Go(func() error {
			q := Query{}.Where("user_id", userID).Where("read", false)
			n, err := o.sources.Notifications.Count(gctx, q)
			data.UnreadNotifications = n
			return err
		})
	}

	switch role {
	case model.RoleCustomer:
		q := recent.Where("customer_id", userID)
		q.Columns = packageResource.projection
		g.Go(func() error {
			items, total, err := fetchPage(gctx, o.sources.Packages, q, q)
			data.RecentPackages, data.PackageCount = items, total
			return err
		})

	case model.RoleDriver:
		tq := recent.Where("driver_id", userID)
		tq.Columns = tripResource.projection
		bq := recent.Where("driver_id", userID)
		bq.Columns = bidResource.projection
		g.Go(func() error {
			items, total, err := fetchPage(gctx, o.sources.Trips, tq, tq)
			data.RecentTrips, data.TripCount = items, total
			return err
		})
		g.Go(func() error {
			items, total, err := fetchPage(gctx, o.sources.Bids, bq, bq)
			data.RecentBids, data.BidCount = items, total
			return err
		})

	case model.RoleAdmin:
		pq, tq, bq := recent, recent, recent
		pq.Columns = packageResource.projection
		tq.Columns = tripResource.projection
		bq.Columns = bidResource.projection
		g.Go(func() error {
			items, total, err := fetchPage(gctx, o.sources.Packages, pq, pq)
			data.RecentPackages, data.PackageCount = items, total
			return err
		})
		g.Go(func() error {
			items, total, err := fetchPage(gctx, o.sources.Trips, tq, tq)
			data.RecentTrips, data.TripCount = items, total
			return err
		})
		g.Go(func() error {
			items, total, err := fetchPage(gctx, o.sources.Bids, bq, bq)
			data.RecentBids, data.BidCount = items, total
			return err
		})
	}

	if err = g.Wait(); err != nil {
		return DashboardData{}, err
	}
	data.GeneratedAt = o.recorder.clock.Now()
	return data, nil
}

func (o *Optimizer) requireDashboardSources(role model.Role) error {
	if o.sources.Users == nil {
		return missingSource("user")
	}
	needPackages := role == model.RoleCustomer || role == model.RoleAdmin
	needTrips := role == model.RoleDriver || role == model.RoleAdmin
	if needPackages && o.sources.Packages == nil {
		return missingSource("package")
	}
	if needTrips && (o.sources.Trips == nil || o.sources.Bids == nil) {
		return missingSource("trip or bid")
	}
	return nil
}
