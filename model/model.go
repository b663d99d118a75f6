// Package model holds the marketplace records read through the optimizer.
package model

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role is the kind of marketplace participant.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleDriver   Role = "driver"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Email     string    `bun:"email,notnull,unique" json:"email"`
	Name      string    `bun:"name,notnull" json:"name"`
	Role      Role      `bun:"role,notnull" json:"role"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

type Package struct {
	bun.BaseModel `bun:"table:packages,alias:p"`

	ID              uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	CustomerID      uuid.UUID `bun:"customer_id,type:uuid,notnull" json:"customer_id"`
	Status          string    `bun:"status,notnull" json:"status"`
	Description     string    `bun:"description" json:"description,omitempty"`
	PickupAddress   string    `bun:"pickup_address" json:"pickup_address,omitempty"`
	DeliveryAddress string    `bun:"delivery_address" json:"delivery_address,omitempty"`
	WeightKg        float64   `bun:"weight_kg" json:"weight_kg,omitempty"`
	Price           float64   `bun:"price" json:"price,omitempty"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

type Trip struct {
	bun.BaseModel `bun:"table:trips,alias:t"`

	ID             uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	DriverID       uuid.UUID `bun:"driver_id,type:uuid,notnull" json:"driver_id"`
	Status         string    `bun:"status,notnull" json:"status"`
	OriginLat      float64   `bun:"origin_lat" json:"origin_lat"`
	OriginLng      float64   `bun:"origin_lng" json:"origin_lng"`
	DestinationLat float64   `bun:"destination_lat" json:"destination_lat"`
	DestinationLng float64   `bun:"destination_lng" json:"destination_lng"`
	CapacityKg     float64   `bun:"capacity_kg" json:"capacity_kg,omitempty"`
	DepartureAt    time.Time `bun:"departure_at" json:"departure_at"`
	CreatedAt      time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// Origin returns the trip start coordinate.
func (t Trip) Origin() Point { return Point{Lat: t.OriginLat, Lng: t.OriginLng} }

// Destination returns the trip end coordinate.
func (t Trip) Destination() Point { return Point{Lat: t.DestinationLat, Lng: t.DestinationLng} }

type Bid struct {
	bun.BaseModel `bun:"table:bids,alias:b"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	PackageID uuid.UUID `bun:"package_id,type:uuid,notnull" json:"package_id"`
	DriverID  uuid.UUID `bun:"driver_id,type:uuid,notnull" json:"driver_id"`
	Amount    float64   `bun:"amount,notnull" json:"amount"`
	Status    string    `bun:"status,notnull" json:"status"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:n"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	UserID    uuid.UUID `bun:"user_id,type:uuid,notnull" json:"user_id"`
	Title     string    `bun:"title,notnull" json:"title"`
	Message   string    `bun:"message" json:"message,omitempty"`
	Read      bool      `bun:"read,notnull,default:false" json:"read"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// stamp fills missing timestamps on insert and refreshes updatedAt on update.
func stamp(query bun.Query, createdAt, updatedAt *time.Time) {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if createdAt.IsZero() {
			*createdAt = now
		}
		if updatedAt != nil && updatedAt.IsZero() {
			*updatedAt = *createdAt
		}
	case *bun.UpdateQuery:
		if updatedAt != nil {
			*updatedAt = now
		}
	}
}

var (
	_ bun.BeforeAppendModelHook = (*User)(nil)
	_ bun.BeforeAppendModelHook = (*Package)(nil)
	_ bun.BeforeAppendModelHook = (*Trip)(nil)
	_ bun.BeforeAppendModelHook = (*Bid)(nil)
	_ bun.BeforeAppendModelHook = (*Notification)(nil)
)

func (u *User) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	stamp(query, &u.CreatedAt, &u.UpdatedAt)
	return nil
}

func (p *Package) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	stamp(query, &p.CreatedAt, &p.UpdatedAt)
	return nil
}

func (t *Trip) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	stamp(query, &t.CreatedAt, &t.UpdatedAt)
	return nil
}

func (b *Bid) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	stamp(query, &b.CreatedAt, &b.UpdatedAt)
	return nil
}

func (n *Notification) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	stamp(query, &n.CreatedAt, nil)
	return nil
}
