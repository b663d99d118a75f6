package marketplace

import (
	"context"

	"github.com/goliatone/go-dispatch-cache/cache"
	"github.com/goliatone/go-dispatch-cache/domaincache"
	"github.com/goliatone/go-dispatch-cache/model"
	"github.com/goliatone/go-dispatch-cache/optimizer"
)

// UserReader reads users through the user domain store, keyed by
// EntityKey(User, id), so dashboards and InvalidateUser share one view of
// each user.
type UserReader struct {
	store *cache.Store
	inner optimizer.UserReader
}

var _ optimizer.UserReader = (*UserReader)(nil)

func NewUserReader(caches *domaincache.Registry, inner optimizer.UserReader) *UserReader {
	return &UserReader{store: caches.User(), inner: inner}
}

func (r *UserReader) GetUser(ctx context.Context, id string) (model.User, error) {
	return cache.GetOrCompute(ctx, r.store, domaincache.EntityKey(domaincache.User, id), 0,
		func(ctx context.Context) (model.User, error) {
			return r.inner.GetUser(ctx, id)
		})
}
