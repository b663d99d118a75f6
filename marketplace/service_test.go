package marketplace

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-dispatch-cache/domaincache"
	"github.com/goliatone/go-dispatch-cache/model"
	"github.com/goliatone/go-dispatch-cache/optimizer"
)

type fakeQueries struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func newFakeQueries() *fakeQueries {
	return &fakeQueries{calls: map[string]int{}}
}

func (f *fakeQueries) called(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeQueries) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.err
}

func (f *fakeQueries) SearchPackages(_ context.Context, filter optimizer.PackageFilter) (optimizer.Page[model.Package], error) {
	if err := f.record("packages"); err != nil {
		return optimizer.Page[model.Package]{}, err
	}
	return optimizer.NewPage([]model.Package{{Status: filter.Status}}, 1, filter.Limit, filter.Offset), nil
}

func (f *fakeQueries) SearchTrips(_ context.Context, filter optimizer.TripFilter) (optimizer.Page[model.Trip], error) {
	if err := f.record("trips"); err != nil {
		return optimizer.Page[model.Trip]{}, err
	}
	return optimizer.NewPage([]model.Trip{{Status: filter.Status}}, 1, filter.Limit, filter.Offset), nil
}

func (f *fakeQueries) ListBids(_ context.Context, filter optimizer.BidFilter) (optimizer.Page[model.Bid], error) {
	if err := f.record("bids"); err != nil {
		return optimizer.Page[model.Bid]{}, err
	}
	return optimizer.NewPage([]model.Bid{{Status: filter.Status}}, 1, filter.Limit, filter.Offset), nil
}

func (f *fakeQueries) ListNotifications(_ context.Context, filter optimizer.NotificationFilter) (optimizer.Page[model.Notification], error) {
	if err := f.record("notifications"); err != nil {
		return optimizer.Page[model.Notification]{}, err
	}
	return optimizer.NewPage([]model.Notification{}, 0, filter.Limit, filter.Offset), nil
}

func (f *fakeQueries) Dashboard(_ context.Context, userID string, role model.Role) (optimizer.DashboardData, error) {
	if err := f.record("dashboard:" + userID); err != nil {
		return optimizer.DashboardData{}, err
	}
	return optimizer.DashboardData{Role: role}, nil
}

func newTestService(t *testing.T) (*Service, *fakeQueries, *domaincache.Registry) {
	t.Helper()
	reg, err := domaincache.NewRegistry(domaincache.Options{MaxSize: 50})
	require.NoError(t, err)
	queries := newFakeQueries()
	return NewService(reg, queries, nil), queries, reg
}

func TestService_ListsAreCachedPerFilter(t *testing.T) {
	svc, queries, reg := newTestService(t)
	ctx := context.Background()

	open := optimizer.PackageFilter{Status: "open"}
	_, err := svc.SearchPackages(ctx, open)
	require.NoError(t, err)
	page, err := svc.SearchPackages(ctx, optimizer.PackageFilter{Status: "open"})
	require.NoError(t, err)

	assert.Equal(t, "open", page.Items[0].Status)
	assert.Equal(t, 1, queries.called("packages"))

	_, err = svc.SearchPackages(ctx, optimizer.PackageFilter{Status: "delivered"})
	require.NoError(t, err)
	assert.Equal(t, 2, queries.called("packages"))
	assert.Equal(t, 2, reg.Package().Len())

	for _, key := range reg.Package().Keys() {
		assert.Contains(t, key, domaincache.ListNamespace(domaincache.Package))
	}
}

func TestService_FailuresAreNotCached(t *testing.T) {
	svc, queries, reg := newTestService(t)
	boom := errors.New("db down")
	queries.err = boom

	_, err := svc.ListBids(context.Background(), optimizer.BidFilter{})
	assert.Same(t, boom, err)
	assert.Zero(t, reg.Bid().Len())

	queries.err = nil
	_, err = svc.ListBids(context.Background(), optimizer.BidFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, queries.called("bids"))
}

func TestService_NotificationsBypassCache(t *testing.T) {
	svc, queries, _ := newTestService(t)

	for i := 0; i < 2; i++ {
		_, err := svc.ListNotifications(context.Background(), optimizer.NotificationFilter{UserID: "u"})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, queries.called("notifications"))
}

func TestService_PackageChangedDropsListsAndOwnerDashboard(t *testing.T) {
	svc, queries, reg := newTestService(t)
	ctx := context.Background()

	customer, other := uuid.New(), uuid.New()
	_, err := svc.SearchPackages(ctx, optimizer.PackageFilter{})
	require.NoError(t, err)
	_, err = svc.SearchTrips(ctx, optimizer.TripFilter{})
	require.NoError(t, err)
	_, err = svc.Dashboard(ctx, customer.String(), model.RoleCustomer)
	require.NoError(t, err)
	_, err = svc.Dashboard(ctx, other.String(), model.RoleCustomer)
	require.NoError(t, err)

	svc.PackageChanged(model.Package{ID: uuid.New(), CustomerID: customer})

	assert.Zero(t, reg.Package().Len())
	assert.Equal(t, 1, reg.Trip().Len())
	assert.Equal(t, []string{DashboardKey(other.String(), model.RoleCustomer)}, reg.Dashboard().Keys())

	_, err = svc.Dashboard(ctx, customer.String(), model.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, 2, queries.called("dashboard:"+customer.String()))
	assert.Equal(t, 1, queries.called("dashboard:"+other.String()))
}

func TestService_TripAndBidChanges(t *testing.T) {
	svc, _, reg := newTestService(t)
	ctx := context.Background()
	driver := uuid.New()

	_, err := svc.SearchTrips(ctx, optimizer.TripFilter{Status: "scheduled"})
	require.NoError(t, err)
	_, err = svc.ListBids(ctx, optimizer.BidFilter{Status: "pending"})
	require.NoError(t, err)
	_, err = svc.Dashboard(ctx, driver.String(), model.RoleDriver)
	require.NoError(t, err)

	svc.BidChanged(model.Bid{ID: uuid.New(), DriverID: driver})
	assert.Zero(t, reg.Bid().Len())
	assert.Equal(t, 1, reg.Trip().Len())
	assert.Zero(t, reg.Dashboard().Len())

	svc.TripChanged(model.Trip{ID: uuid.New(), DriverID: driver})
	assert.Zero(t, reg.Trip().Len())
}

func TestService_UserAndNotificationChanges(t *testing.T) {
	svc, _, reg := newTestService(t)
	ctx := context.Background()
	user := uuid.New()

	reg.User().Set(domaincache.EntityKey(domaincache.User, user.String()), "cached")
	_, err := svc.Dashboard(ctx, user.String(), model.RoleAdmin)
	require.NoError(t, err)

	svc.NotificationChanged(model.Notification{ID: uuid.New(), UserID: user})
	assert.Zero(t, reg.Dashboard().Len())
	assert.Equal(t, 1, reg.User().Len())

	svc.UserChanged(model.User{ID: user})
	assert.Zero(t, reg.User().Len())
}

type fakeUsers struct {
	calls int
	err   error
}

func (f *fakeUsers) GetUser(_ context.Context, id string) (model.User, error) {
	f.calls++
	if f.err != nil {
		return model.User{}, f.err
	}
	return model.User{ID: uuid.MustParse(id), Name: "Dana"}, nil
}

func TestUserReader_FillsUserDomain(t *testing.T) {
	svc, _, reg := newTestService(t)
	inner := &fakeUsers{}
	users := NewUserReader(reg, inner)
	ctx := context.Background()
	id := uuid.NewString()

	for i := 0; i < 2; i++ {
		u, err := users.GetUser(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Dana", u.Name)
	}
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, []string{domaincache.EntityKey(domaincache.User, id)}, reg.User().Keys())
	assert.Equal(t, 1, reg.Metrics().Domains[domaincache.User].Size)

	svc.UserInvalidated(ctx, id)
	assert.Zero(t, reg.User().Len())

	_, err := users.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestUserReader_FailuresAreNotCached(t *testing.T) {
	_, _, reg := newTestService(t)
	inner := &fakeUsers{err: errors.New("no such user")}
	users := NewUserReader(reg, inner)

	_, err := users.GetUser(context.Background(), uuid.NewString())
	assert.EqualError(t, err, "no such user")
	assert.Zero(t, reg.User().Len())
}
