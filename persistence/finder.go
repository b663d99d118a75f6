package persistence

import (
	"context"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-dispatch-cache/model"
	"github.com/goliatone/go-dispatch-cache/optimizer"
)

// counter is the part of a repository a Finder counts with.
type counter interface {
	Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error)
}

// Finder runs optimizer queries against one table. Find selects only the
// projected columns; Count goes through the table repository and ignores
// paging, ordering and projection.
type Finder[T any] struct {
	db    bun.IDB
	count counter
}

var (
	_ optimizer.Finder[model.Package]      = (*Finder[model.Package])(nil)
	_ optimizer.Finder[model.Trip]         = (*Finder[model.Trip])(nil)
	_ optimizer.Finder[model.Bid]          = (*Finder[model.Bid])(nil)
	_ optimizer.Finder[model.Notification] = (*Finder[model.Notification])(nil)
)

// NewFinder returns a Finder reading from db and counting through repo.
func NewFinder[T any](db bun.IDB, repo counter) *Finder[T] {
	return &Finder[T]{db: db, count: repo}
}

func (f *Finder[T]) Find(ctx context.Context, q optimizer.Query) ([]T, error) {
	items := make([]T, 0, q.Limit)
	sel := f.db.NewSelect().Model(&items)
	for _, criteria := range SelectCriteria(q) {
		sel = criteria(sel)
	}
	if err := sel.Scan(ctx); err != nil {
		return nil, err
	}
	return items, nil
}

func (f *Finder[T]) Count(ctx context.Context, q optimizer.Query) (int, error) {
	return f.count.Count(ctx, ConditionCriteria(q)...)
}

// SelectCriteria translates q into repository criteria: projection,
// conditions, ordering and paging.
func SelectCriteria(q optimizer.Query) []repository.SelectCriteria {
	criteria := make([]repository.SelectCriteria, 0, len(q.Conditions)+3)
	if len(q.Columns) > 0 {
		columns := q.Columns
		criteria = append(criteria, func(sel *bun.SelectQuery) *bun.SelectQuery {
			return sel.Column(columns...)
		})
	}
	criteria = append(criteria, ConditionCriteria(q)...)
	if q.SortBy != "" {
		sortBy, order := q.SortBy, strings.ToUpper(q.SortOrder)
		if order != "ASC" {
			order = "DESC"
		}
		criteria = append(criteria, func(sel *bun.SelectQuery) *bun.SelectQuery {
			return sel.OrderExpr("? ?", bun.Ident(sortBy), bun.Safe(order))
		})
	}
	if q.Limit > 0 {
		limit, offset := q.Limit, q.Offset
		criteria = append(criteria, func(sel *bun.SelectQuery) *bun.SelectQuery {
			return sel.Limit(limit).Offset(offset)
		})
	}
	return criteria
}

// ConditionCriteria translates only the conditions of q.
func ConditionCriteria(q optimizer.Query) []repository.SelectCriteria {
	criteria := make([]repository.SelectCriteria, 0, len(q.Conditions))
	for _, cond := range q.Conditions {
		criteria = append(criteria, conditionCriteria(cond))
	}
	return criteria
}

func conditionCriteria(cond optimizer.Condition) repository.SelectCriteria {
	field, value := cond.Field, cond.Value
	switch cond.Op {
	case optimizer.OpContains:
		pattern := "%" + strings.ToLower(toString(value)) + "%"
		return func(sel *bun.SelectQuery) *bun.SelectQuery {
			return sel.Where("LOWER(?) LIKE ?", bun.Ident(field), pattern)
		}
	default:
		return func(sel *bun.SelectQuery) *bun.SelectQuery {
			return sel.Where("? = ?", bun.Ident(field), value)
		}
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}

// UserGetter loads a user by id. Both the plain and the cached user
// repositories satisfy it.
type UserGetter interface {
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*model.User, error)
}

// UserReader adapts a UserGetter to optimizer.UserReader.
type UserReader struct {
	users UserGetter
}

var _ optimizer.UserReader = UserReader{}

func NewUserReader(users UserGetter) UserReader {
	return UserReader{users: users}
}

func (r UserReader) GetUser(ctx context.Context, id string) (model.User, error) {
	user, err := r.users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if user == nil {
		return model.User{}, nil
	}
	return *user, nil
}

// Sources wires the optimizer to db. users defaults to repos.Users.
func Sources(db bun.IDB, repos Repositories, users UserGetter) optimizer.Sources {
	if users == nil {
		users = repos.Users
	}
	return optimizer.Sources{
		Packages:      NewFinder[model.Package](db, repos.Packages),
		Trips:         NewFinder[model.Trip](db, repos.Trips),
		Bids:          NewFinder[model.Bid](db, repos.Bids),
		Notifications: NewFinder[model.Notification](db, repos.Notifications),
		Users:         NewUserReader(users),
	}
}
