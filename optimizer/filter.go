package optimizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-dispatch-cache/model"
)

const (
	DefaultLimit     = 20
	MaxLimit         = 500
	DefaultSortBy    = "created_at"
	DefaultSortOrder = "desc"
)

// Filter carries the pagination and projection options shared by every
// optimizer operation.
type Filter struct {
	Limit     int      `json:"limit,omitempty" validate:"gte=0,lte=500"`
	Offset    int      `json:"offset,omitempty" validate:"gte=0"`
	SortBy    string   `json:"sort_by,omitempty"`
	SortOrder string   `json:"sort_order,omitempty" validate:"omitempty,oneof=asc desc ASC DESC"`
	Fields    []string `json:"fields,omitempty"`
}

type PackageFilter struct {
	Filter
	Status     string `json:"status,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	Search     string `json:"search,omitempty" validate:"omitempty,max=200"`
}

type TripFilter struct {
	Filter
	Status   string       `json:"status,omitempty"`
	DriverID string       `json:"driver_id,omitempty"`
	Near     *model.Point `json:"near,omitempty"`
	RadiusKm float64      `json:"radius_km,omitempty" validate:"gte=0"`
}

// radius reports whether the filter asks for a geographic restriction.
func (f TripFilter) radius() bool {
	return f.Near != nil && f.RadiusKm > 0
}

type BidFilter struct {
	Filter
	PackageID string `json:"package_id,omitempty"`
	DriverID  string `json:"driver_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

type NotificationFilter struct {
	Filter
	UserID     string `json:"user_id,omitempty"`
	UnreadOnly bool   `json:"unread_only,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// check runs the struct validation rules and reports failures as a
// go-errors validation error.
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return goerrors.New("invalid filter: "+err.Error(), goerrors.CategoryValidation)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
	}
	return goerrors.New("invalid filter: "+strings.Join(msgs, "; "), goerrors.CategoryValidation)
}

// resource describes the columns an operation may sort on and project.
type resource struct {
	sortable   map[string]bool
	columns    map[string]bool
	projection []string
}

func newResource(sortable, columns, projection []string) resource {
	r := resource{
		sortable:   make(map[string]bool, len(sortable)),
		columns:    make(map[string]bool, len(columns)),
		projection: projection,
	}
	for _, c := range sortable {
		r.sortable[c] = true
	}
	for _, c := range columns {
		r.columns[c] = true
	}
	return r
}

var (
	packageResource = newResource(
		[]string{"created_at", "updated_at", "price", "weight_kg", "status"},
		[]string{"id", "customer_id", "status", "description", "pickup_address", "delivery_address", "weight_kg", "price", "created_at", "updated_at"},
		[]string{"id", "customer_id", "status", "description", "pickup_address", "delivery_address", "price", "created_at"},
	)
	tripResource = newResource(
		[]string{"created_at", "departure_at", "capacity_kg", "status"},
		[]string{"id", "driver_id", "status", "origin_lat", "origin_lng", "destination_lat", "destination_lng", "capacity_kg", "departure_at", "created_at", "updated_at"},
		[]string{"id", "driver_id", "status", "origin_lat", "origin_lng", "destination_lat", "destination_lng", "departure_at", "created_at"},
	)
	bidResource = newResource(
		[]string{"created_at", "amount", "status"},
		[]string{"id", "package_id", "driver_id", "amount", "status", "created_at", "updated_at"},
		[]string{"id", "package_id", "driver_id", "amount", "status", "created_at"},
	)
	notificationResource = newResource(
		[]string{"created_at"},
		[]string{"id", "user_id", "title", "message", "read", "created_at"},
		[]string{"id", "user_id", "title", "message", "read", "created_at"},
	)
)

// query turns f into a Query for res, applying defaults, the sort column
// whitelist and the projection whitelist.
func (f Filter) query(res resource) Query {
	q := Query{
		Limit:     f.Limit,
		Offset:    f.Offset,
		SortBy:    f.SortBy,
		SortOrder: strings.ToLower(f.SortOrder),
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.SortOrder == "" {
		q.SortOrder = DefaultSortOrder
	}
	if !res.sortable[q.SortBy] {
		q.SortBy = DefaultSortBy
	}

	for _, field := range f.Fields {
		if res.columns[field] && !contains(q.Columns, field) {
			q.Columns = append(q.Columns, field)
		}
	}
	if len(q.Columns) == 0 {
		q.Columns = append([]string(nil), res.projection...)
	} else if !contains(q.Columns, "id") {
		q.Columns = append([]string{"id"}, q.Columns...)
	}

	return q
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
