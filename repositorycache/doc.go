// Package repositorycache caches id lookups of go-repository-bun
// repositories.
//
// # Overview
//
// CachedRepository wraps the read and write methods it needs from a
// repository.Repository[T] and stores GetByID results in any
// cache.CacheService: the in-memory domain stores or the shared sturdyc
// backed entity cache.
//
//	users := repository.NewRepository[model.User](db, handlers)
//	cached := repositorycache.New[model.User](users, entityCache, cache.NewDefaultKeySerializer())
//
//	user, err := cached.GetByID(ctx, id)
//
// # Keys
//
// Keys are built as "<namespace>:GetByID::<id>". The namespace defaults to
// the snake_case type name (model.User becomes "user"). Lookups that pass
// select criteria go straight to the base repository.
//
// # Invalidation
//
// Every key handed to the cache is tracked together with the record id and
// any tags attached to the context with WithCacheTags. A successful Create,
// Update or Delete drops the keys tagged with the record id and with the
// context tags, then calls Options.OnInvalidate so callers can clear derived
// caches such as list pages or dashboards.
//
//	ctx = repositorycache.WithCacheTags(ctx, "customer:"+customerID)
//
// # Error Handling
//
// Errors from the base repository are returned unchanged and never cached.
// Failed writes leave the cache untouched.
package repositorycache
