package repository

import (
	"context"
	"errors"

	"vidtube-server/internal/domain"
)

// ErrPreconditionFailed is returned by UpdateFields when the stored record no longer
// satisfies the supplied UpdateCondition.
var ErrPreconditionFailed = errors.New("update precondition failed")

// UserRepository is the credential store. Implementations report missing records with
// domain.ErrNotFound and uniqueness violations with domain.ErrConflict.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// FindByUsernameOrEmail matches either field; empty arguments are ignored.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error)
	// UpdateFields applies update atomically, only if cond (when non-nil) holds on the stored record.
	UpdateFields(ctx context.Context, id string, update domain.UserUpdate, cond *domain.UpdateCondition) (*domain.User, error)
}

func notFound() error {
	return domain.NewError(domain.ErrNotFound, "user does not exist")
}

func conflict(field string) error {
	return domain.NewError(domain.ErrConflict, field+" already exists")
}
