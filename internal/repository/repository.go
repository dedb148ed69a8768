// Package repository declares the storage contracts the services depend on.
// internal/repository/sqlite is the production implementation; service tests
// use in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/wedding-rsvp/internal/model"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	IsSuperuser(ctx context.Context, id string) (bool, error)
	SetSuperuser(ctx context.Context, id string, superuser bool) error
}

// RSVPRepository stores RSVP records.
//
// SaveSubmission writes the own record (upserted on owner id, may be nil)
// and every on-behalf record in one transaction: either all rows land or
// none do.
type RSVPRepository interface {
	SaveSubmission(ctx context.Context, own *model.RSVP, onBehalf []*model.RSVP) error
	GetRSVPByID(ctx context.Context, id string) (*model.RSVP, error)
	GetRSVPByOwner(ctx context.Context, userID string) (*model.RSVP, error)
	ListRSVPs(ctx context.Context) ([]model.RSVP, error)
	UpdateRSVP(ctx context.Context, id string, patch model.RSVPPatch) (*model.RSVP, error)
	DeleteRSVP(ctx context.Context, id string) error
	CountAttending(ctx context.Context) (int, error)
}

type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *model.GuestMessage) error
	GetMessageByID(ctx context.Context, id string) (*model.GuestMessage, error)
	ListVisibleMessages(ctx context.Context, opts ListOptions) ([]model.GuestMessage, error)
}

type ListOptions struct {
	Limit  int
	Offset int
}
