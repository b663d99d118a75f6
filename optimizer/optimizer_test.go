package optimizer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-dispatch-cache/model"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFinder[T any] struct {
	mu       sync.Mutex
	items    []T
	total    int
	findErr  error
	countErr error
	finds    []Query
	counts   []Query
}

func (f *fakeFinder[T]) Find(ctx context.Context, q Query) ([]T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds = append(f.finds, q)
	if f.findErr != nil {
		return nil, f.findErr
	}
	items := f.items
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}
	return items, nil
}

func (f *fakeFinder[T]) Count(ctx context.Context, q Query) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = append(f.counts, q)
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.total, nil
}

type fakeUsers struct {
	users map[string]model.User
}

func (f fakeUsers) GetUser(ctx context.Context, id string) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, goerrors.New("user not found", goerrors.CategoryNotFound)
	}
	return u, nil
}

type recordedQuery struct {
	op   string
	rows int
	err  error
}

type fakeObserver struct {
	mu    sync.Mutex
	calls []recordedQuery
}

func (f *fakeObserver) ObserveQuery(op string, d time.Duration, rows int, err error) {
	f.mu.Lock()
	f.calls = append(f.calls, recordedQuery{op: op, rows: rows, err: err})
	f.mu.Unlock()
}

func packages(n int) []model.Package {
	out := make([]model.Package, n)
	for i := range out {
		out[i] = model.Package{ID: uuid.New(), Status: "pending"}
	}
	return out
}

func TestNewPage(t *testing.T) {
	p := NewPage([]int{1, 2}, 57, 20, 40)
	assert.Equal(t, 3, p.Pagination.Page)
	assert.Equal(t, 3, p.Pagination.TotalPages)
	assert.Equal(t, 57, p.Pagination.Total)
	assert.Equal(t, 57, p.Total)

	empty := NewPage[int](nil, 0, 20, 0)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 1, empty.Pagination.Page)
	assert.Equal(t, 0, empty.Pagination.TotalPages)

	exact := NewPage([]int{}, 40, 20, 20)
	assert.Equal(t, 2, exact.Pagination.Page)
	assert.Equal(t, 2, exact.Pagination.TotalPages)
}

func TestSearchPackages_BuildsQuery(t *testing.T) {
	finder := &fakeFinder[model.Package]{items: packages(3), total: 3}
	obs := &fakeObserver{}
	o := New(Sources{Packages: finder}, WithObserver(obs))

	page, err := o.SearchPackages(context.Background(), PackageFilter{
		Filter:     Filter{SortBy: "price", SortOrder: "ASC", Fields: []string{"status", "password", "price"}},
		Status:     "pending",
		CustomerID: "c-1",
		Search:     "fragile",
	})
	require.NoError(t, err)

	assert.Len(t, page.Items, 3)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, 20, page.Pagination.Limit)

	require.Len(t, finder.finds, 1)
	require.Len(t, finder.counts, 1)

	q := finder.finds[0]
	assert.Equal(t, 20, q.Limit)
	assert.Equal(t, 0, q.Offset)
	assert.Equal(t, "price", q.SortBy)
	assert.Equal(t, "asc", q.SortOrder)
	assert.Equal(t, []string{"id", "status", "price"}, q.Columns)
	assert.Equal(t, []Condition{
		{Field: "status", Op: OpEq, Value: "pending"},
		{Field: "customer_id", Op: OpEq, Value: "c-1"},
		{Field: "description", Op: OpContains, Value: "fragile"},
	}, q.Conditions)

	require.Len(t, obs.calls, 1)
	assert.Equal(t, OpSearchPackages, obs.calls[0].op)
	assert.Equal(t, 3, obs.calls[0].rows)

	metrics := o.PerformanceMetrics()
	require.Len(t, metrics.Samples, 1)
	assert.Equal(t, OpSearchPackages, metrics.Samples[0].Operation)
}

func TestSearchPackages_Defaults(t *testing.T) {
	finder := &fakeFinder[model.Package]{}
	o := New(Sources{Packages: finder})

	_, err := o.SearchPackages(context.Background(), PackageFilter{Filter: Filter{SortBy: "drop table"}})
	require.NoError(t, err)

	q := finder.finds[0]
	assert.Equal(t, DefaultSortBy, q.SortBy)
	assert.Equal(t, DefaultSortOrder, q.SortOrder)
	assert.Equal(t, packageResource.projection, q.Columns)
	assert.Empty(t, q.Conditions)
}

func TestSearchPackages_InvalidFilter(t *testing.T) {
	finder := &fakeFinder[model.Package]{}
	o := New(Sources{Packages: finder})

	tests := []PackageFilter{
		{Filter: Filter{Limit: 501}},
		{Filter: Filter{Limit: -1}},
		{Filter: Filter{Offset: -5}},
		{Filter: Filter{SortOrder: "sideways"}},
	}

	for _, f := range tests {
		_, err := o.SearchPackages(context.Background(), f)
		require.Error(t, err)
		assert.True(t, goerrors.IsValidation(err), "filter %+v", f)
	}
	assert.Empty(t, finder.finds)
	assert.Len(t, o.PerformanceMetrics().Samples, len(tests))
}

func TestSearchPackages_ErrorsPropagateVerbatim(t *testing.T) {
	boom := errors.New("connection reset")

	finder := &fakeFinder[model.Package]{countErr: boom}
	obs := &fakeObserver{}
	o := New(Sources{Packages: finder}, WithObserver(obs))

	_, err := o.SearchPackages(context.Background(), PackageFilter{})
	assert.Same(t, boom, err)
	require.Len(t, obs.calls, 1)
	assert.Same(t, boom, obs.calls[0].err)

	finder = &fakeFinder[model.Package]{findErr: boom}
	o = New(Sources{Packages: finder})
	_, err = o.SearchPackages(context.Background(), PackageFilter{})
	assert.Same(t, boom, err)
}

func TestSearchTrips_RadiusFilter(t *testing.T) {
	berlin := model.Point{Lat: 52.52, Lng: 13.405}
	far := model.Point{Lat: 48.137, Lng: 11.575}

	mk := func(origin, dest model.Point) model.Trip {
		return model.Trip{
			ID:        uuid.New(),
			OriginLat: origin.Lat, OriginLng: origin.Lng,
			DestinationLat: dest.Lat, DestinationLng: dest.Lng,
		}
	}

	trips := []model.Trip{
		mk(far, far),
		mk(berlin, far),
		mk(far, berlin),
		mk(far, far),
		mk(berlin, berlin),
		mk(far, far),
	}

	finder := &fakeFinder[model.Trip]{items: trips, total: 42}
	o := New(Sources{Trips: finder})

	page, err := o.SearchTrips(context.Background(), TripFilter{
		Filter:   Filter{Limit: 2, Fields: []string{"status"}},
		Near:     &berlin,
		RadiusKm: 25,
	})
	require.NoError(t, err)

	require.Len(t, finder.finds, 1)
	assert.Equal(t, 4, finder.finds[0].Limit)
	assert.Equal(t, 2, finder.counts[0].Limit)
	assert.Contains(t, finder.finds[0].Columns, "origin_lat")
	assert.Contains(t, finder.finds[0].Columns, "destination_lng")

	require.Len(t, page.Items, 2)
	assert.Equal(t, trips[1].ID, page.Items[0].ID)
	assert.Equal(t, trips[2].ID, page.Items[1].ID)

	// total comes from the unfiltered count
	assert.Equal(t, 42, page.Total)
	assert.Equal(t, 21, page.Pagination.TotalPages)
}

func TestSearchTrips_WithoutRadius(t *testing.T) {
	finder := &fakeFinder[model.Trip]{items: make([]model.Trip, 3), total: 3}
	o := New(Sources{Trips: finder})

	page, err := o.SearchTrips(context.Background(), TripFilter{Status: "scheduled", DriverID: "d-1"})
	require.NoError(t, err)

	assert.Len(t, page.Items, 3)
	assert.Equal(t, 20, finder.finds[0].Limit)
	assert.Len(t, finder.finds[0].Conditions, 2)
}

func TestListBidsAndNotifications(t *testing.T) {
	bids := &fakeFinder[model.Bid]{items: make([]model.Bid, 2), total: 12}
	notes := &fakeFinder[model.Notification]{items: make([]model.Notification, 1), total: 1}
	o := New(Sources{Bids: bids, Notifications: notes})

	bp, err := o.ListBids(context.Background(), BidFilter{
		Filter:    Filter{Limit: 5, Offset: 10},
		PackageID: "p-1",
		Status:    "open",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, bp.Pagination.Page)
	assert.Equal(t, 3, bp.Pagination.TotalPages)
	assert.Equal(t, []Condition{
		{Field: "package_id", Op: OpEq, Value: "p-1"},
		{Field: "status", Op: OpEq, Value: "open"},
	}, bids.finds[0].Conditions)

	np, err := o.ListNotifications(context.Background(), NotificationFilter{UserID: "u-1", UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, np.Items, 1)
	assert.Equal(t, []Condition{
		{Field: "user_id", Op: OpEq, Value: "u-1"},
		{Field: "read", Op: OpEq, Value: false},
	}, notes.finds[0].Conditions)
}

func TestMissingSource(t *testing.T) {
	o := New(Sources{})

	_, err := o.ListBids(context.Background(), BidFilter{})
	require.Error(t, err)
	_, err = o.ListNotifications(context.Background(), NotificationFilter{})
	require.Error(t, err)
	_, err = o.SearchTrips(context.Background(), TripFilter{})
	require.Error(t, err)
}

func TestDashboard(t *testing.T) {
	userID := uuid.NewString()
	users := fakeUsers{users: map[string]model.User{
		userID: {Name: "Dana", Role: model.RoleDriver},
	}}

	pkgs := &fakeFinder[model.Package]{items: packages(7), total: 7}
	trips := &fakeFinder[model.Trip]{items: make([]model.Trip, 2), total: 2}
	bids := &fakeFinder[model.Bid]{items: make([]model.Bid, 9), total: 9}
	notes := &fakeFinder[model.Notification]{total: 4}

	o := New(Sources{Packages: pkgs, Trips: trips, Bids: bids, Notifications: notes, Users: users})

	t.Run("driver", func(t *testing.T) {
		d, err := o.Dashboard(context.Background(), userID, model.RoleDriver)
		require.NoError(t, err)

		assert.Equal(t, "Dana", d.User.Name)
		assert.Equal(t, 2, d.TripCount)
		assert.Len(t, d.RecentBids, DashboardRecentLimit)
		assert.Equal(t, 9, d.BidCount)
		assert.Equal(t, 4, d.UnreadNotifications)
		assert.Empty(t, d.RecentPackages)
		assert.False(t, d.GeneratedAt.IsZero())
	})

	t.Run("admin", func(t *testing.T) {
		d, err := o.Dashboard(context.Background(), userID, model.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, 7, d.PackageCount)
		assert.Len(t, d.RecentPackages, DashboardRecentLimit)
		assert.Equal(t, 2, d.TripCount)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := o.Dashboard(context.Background(), userID, model.Role("guest"))
		require.Error(t, err)
		assert.True(t, goerrors.IsValidation(err))
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := o.Dashboard(context.Background(), "missing", model.RoleCustomer)
		require.Error(t, err)
		assert.True(t, goerrors.IsNotFound(err))
	})

	samples := o.PerformanceMetrics().Samples
	require.Len(t, samples, 4)
	for _, s := range samples {
		assert.Equal(t, OpDashboard, s.Operation)
	}
}

func TestDistance(t *testing.T) {
	origin := model.Point{}
	assert.Equal(t, 0.0, Distance(origin, origin))

	oneDegree := Distance(origin, model.Point{Lat: 0, Lng: 1})
	assert.InEpsilon(t, 111.2, oneDegree, 0.01)

	berlin := model.Point{Lat: 52.52, Lng: 13.405}
	munich := model.Point{Lat: 48.137, Lng: 11.575}
	assert.InEpsilon(t, 504, Distance(berlin, munich), 0.01)
	assert.InDelta(t, Distance(berlin, munich), Distance(munich, berlin), 1e-9)
}
