package optimizer

import (
	"context"

	"github.com/goliatone/go-dispatch-cache/model"
)

// Op is a comparison understood by every Finder.
type Op string

const (
	OpEq       Op = "eq"
	OpContains Op = "contains"
)

// Condition restricts a Query to rows where Field compares to Value by Op.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Query is what the data-fetch capability receives. Columns, SortBy and
// Condition fields are already whitelisted.
type Query struct {
	Limit      int
	Offset     int
	SortBy     string
	SortOrder  string
	Columns    []string
	Conditions []Condition
}

// Where returns a copy of q with an equality condition appended.
func (q Query) Where(field string, value any) Query {
	return q.with(Condition{Field: field, Op: OpEq, Value: value})
}

// Contains returns a copy of q with a case-insensitive substring condition appended.
func (q Query) Contains(field, fragment string) Query {
	return q.with(Condition{Field: field, Op: OpContains, Value: fragment})
}

func (q Query) with(c Condition) Query {
	conds := make([]Condition, len(q.Conditions), len(q.Conditions)+1)
	copy(conds, q.Conditions)
	q.Conditions = append(conds, c)
	return q
}

// Finder fetches one page of records and counts all records matching a Query.
// Count ignores Limit, Offset and Columns.
type Finder[T any] interface {
	Find(ctx context.Context, q Query) ([]T, error)
	Count(ctx context.Context, q Query) (int, error)
}

// UserReader loads a single user.
type UserReader interface {
	GetUser(ctx context.Context, id string) (model.User, error)
}

// Sources bundles the data-fetch capabilities used by the Optimizer.
type Sources struct {
	Packages      Finder[model.Package]
	Trips         Finder[model.Trip]
	Bids          Finder[model.Bid]
	Notifications Finder[model.Notification]
	Users         UserReader
}
