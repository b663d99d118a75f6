package persistence

import (
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-dispatch-cache/model"
)

// Repositories bundles one go-repository-bun repository per table.
type Repositories struct {
	Users         repository.Repository[*model.User]
	Packages      repository.Repository[*model.Package]
	Trips         repository.Repository[*model.Trip]
	Bids          repository.Repository[*model.Bid]
	Notifications repository.Repository[*model.Notification]
}

// NewRepositories builds the repositories over db.
func NewRepositories(db *bun.DB) Repositories {
	return Repositories{
		Users: repository.NewRepository[*model.User](db, repository.ModelHandlers[*model.User]{
			NewRecord:     func() *model.User { return &model.User{} },
			GetID:         func(u *model.User) uuid.UUID { return u.ID },
			SetID:         func(u *model.User, id uuid.UUID) { u.ID = id },
			GetIdentifier: func() string { return "email" },
		}),
		Packages: repository.NewRepository[*model.Package](db, repository.ModelHandlers[*model.Package]{
			NewRecord:     func() *model.Package { return &model.Package{} },
			GetID:         func(p *model.Package) uuid.UUID { return p.ID },
			SetID:         func(p *model.Package, id uuid.UUID) { p.ID = id },
			GetIdentifier: func() string { return "id" },
		}),
		Trips: repository.NewRepository[*model.Trip](db, repository.ModelHandlers[*model.Trip]{
			NewRecord:     func() *model.Trip { return &model.Trip{} },
			GetID:         func(t *model.Trip) uuid.UUID { return t.ID },
			SetID:         func(t *model.Trip, id uuid.UUID) { t.ID = id },
			GetIdentifier: func() string { return "id" },
		}),
		Bids: repository.NewRepository[*model.Bid](db, repository.ModelHandlers[*model.Bid]{
			NewRecord:     func() *model.Bid { return &model.Bid{} },
			GetID:         func(b *model.Bid) uuid.UUID { return b.ID },
			SetID:         func(b *model.Bid, id uuid.UUID) { b.ID = id },
			GetIdentifier: func() string { return "id" },
		}),
		Notifications: repository.NewRepository[*model.Notification](db, repository.ModelHandlers[*model.Notification]{
			NewRecord:     func() *model.Notification { return &model.Notification{} },
			GetID:         func(n *model.Notification) uuid.UUID { return n.ID },
			SetID:         func(n *model.Notification, id uuid.UUID) { n.ID = id },
			GetIdentifier: func() string { return "id" },
		}),
	}
}
