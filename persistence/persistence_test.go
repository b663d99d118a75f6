package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-dispatch-cache/model"
	"github.com/goliatone/go-dispatch-cache/optimizer"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()

	cfg := DefaultConfig()
	cfg.DSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())

	db, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(context.Background(), db))
	return db
}

type fixture struct {
	customer model.User
	driver   model.User
}

func seed(t *testing.T, db *bun.DB) fixture {
	t.Helper()
	ctx := context.Background()

	f := fixture{
		customer: model.User{ID: uuid.New(), Email: "ana@example.com", Name: "Ana", Role: model.RoleCustomer},
		driver:   model.User{ID: uuid.New(), Email: "bo@example.com", Name: "Bo", Role: model.RoleDriver},
	}
	for _, u := range []*model.User{&f.customer, &f.driver} {
		_, err := db.NewInsert().Model(u).Exec(ctx)
		require.NoError(t, err)
	}

	packages := []model.Package{
		{ID: uuid.New(), CustomerID: f.customer.ID, Status: "open", Description: "Fragile glassware", CreatedAt: base},
		{ID: uuid.New(), CustomerID: f.customer.ID, Status: "open", Description: "Books", CreatedAt: base.Add(time.Minute)},
		{ID: uuid.New(), CustomerID: f.customer.ID, Status: "delivered", Description: "Glass vase", CreatedAt: base.Add(2 * time.Minute)},
		{ID: uuid.New(), CustomerID: uuid.New(), Status: "open", Description: "Bike", CreatedAt: base.Add(3 * time.Minute)},
	}
	_, err := db.NewInsert().Model(&packages).Exec(ctx)
	require.NoError(t, err)

	trips := []model.Trip{
		// Berlin to Hamburg
		{ID: uuid.New(), DriverID: f.driver.ID, Status: "scheduled", OriginLat: 52.52, OriginLng: 13.405, DestinationLat: 53.5511, DestinationLng: 9.9937, CreatedAt: base},
		// Munich to Stuttgart
		{ID: uuid.New(), DriverID: f.driver.ID, Status: "scheduled", OriginLat: 48.1351, OriginLng: 11.582, DestinationLat: 48.7758, DestinationLng: 9.1829, CreatedAt: base.Add(time.Minute)},
	}
	_, err = db.NewInsert().Model(&trips).Exec(ctx)
	require.NoError(t, err)

	notifications := []model.Notification{
		{ID: uuid.New(), UserID: f.customer.ID, Title: "New bid", Read: false, CreatedAt: base},
		{ID: uuid.New(), UserID: f.customer.ID, Title: "Delivered", Read: true, CreatedAt: base.Add(time.Minute)},
	}
	_, err = db.NewInsert().Model(&notifications).Exec(ctx)
	require.NoError(t, err)

	return f
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle", DSN: "x"}, nil)
	require.Error(t, err)
	assert.True(t, goerrors.IsValidation(err))
}

func TestMigrate_IsIdempotent(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, Migrate(context.Background(), db))
}

func TestFinder_FindAppliesConditionsOrderAndPaging(t *testing.T) {
	db := openTestDB(t)
	seed(t, db)
	repos := NewRepositories(db)
	finder := NewFinder[model.Package](db, repos.Packages)

	q := optimizer.Query{Limit: 1, Offset: 1, SortBy: "created_at", SortOrder: "desc"}.Where("status", "open")

	items, err := finder.Find(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Books", items[0].Description)

	total, err := finder.Count(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestFinder_ContainsIsCaseInsensitive(t *testing.T) {
	db := openTestDB(t)
	seed(t, db)
	repos := NewRepositories(db)
	finder := NewFinder[model.Package](db, repos.Packages)

	q := optimizer.Query{SortBy: "created_at", SortOrder: "asc"}.Contains("description", "GLASS")

	items, err := finder.Find(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Fragile glassware", items[0].Description)
	assert.Equal(t, "Glass vase", items[1].Description)
}

func TestFinder_ProjectsColumns(t *testing.T) {
	db := openTestDB(t)
	seed(t, db)
	repos := NewRepositories(db)
	finder := NewFinder[model.Package](db, repos.Packages)

	q := optimizer.Query{Columns: []string{"id", "status"}, SortBy: "created_at", SortOrder: "asc"}

	items, err := finder.Find(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.NotEqual(t, uuid.Nil, items[0].ID)
	assert.Equal(t, "open", items[0].Status)
	assert.Empty(t, items[0].Description)
}

func TestUserReader_GetUser(t *testing.T) {
	db := openTestDB(t)
	f := seed(t, db)
	reader := NewUserReader(NewRepositories(db).Users)

	user, err := reader.GetUser(context.Background(), f.driver.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Bo", user.Name)
	assert.Equal(t, model.RoleDriver, user.Role)

	_, err = reader.GetUser(context.Background(), uuid.NewString())
	assert.Error(t, err)
}

func TestSources_DriveOptimizer(t *testing.T) {
	db := openTestDB(t)
	f := seed(t, db)
	opt := optimizer.New(Sources(db, NewRepositories(db), nil))
	ctx := context.Background()

	packages, err := opt.SearchPackages(ctx, optimizer.PackageFilter{
		Filter:     optimizer.Filter{Limit: 2},
		CustomerID: f.customer.ID.String(),
	})
	require.NoError(t, err)
	assert.Len(t, packages.Items, 2)
	assert.Equal(t, 3, packages.Total)
	assert.Equal(t, 2, packages.Pagination.TotalPages)

	berlin := model.Point{Lat: 52.52, Lng: 13.405}
	trips, err := opt.SearchTrips(ctx, optimizer.TripFilter{Near: &berlin, RadiusKm: 50})
	require.NoError(t, err)
	require.Len(t, trips.Items, 1)
	assert.InDelta(t, 52.52, trips.Items[0].OriginLat, 1e-9)
	assert.Equal(t, 2, trips.Total)

	unread, err := opt.ListNotifications(ctx, optimizer.NotificationFilter{UserID: f.customer.ID.String(), UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread.Items, 1)
	assert.Equal(t, "New bid", unread.Items[0].Title)

	dash, err := opt.Dashboard(ctx, f.customer.ID.String(), model.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, "Ana", dash.User.Name)
	assert.Equal(t, 3, dash.PackageCount)
	assert.Equal(t, 1, dash.UnreadNotifications)
}

func TestModelHooks_StampTimestamps(t *testing.T) {
	db := openTestDB(t)
	repos := NewRepositories(db)

	user, err := repos.Users.Create(context.Background(), &model.User{
		ID: uuid.New(), Email: "cy@example.com", Name: "Cy", Role: model.RoleAdmin,
	})
	require.NoError(t, err)
	assert.False(t, user.CreatedAt.IsZero())
	assert.Equal(t, user.CreatedAt, user.UpdatedAt)
}
