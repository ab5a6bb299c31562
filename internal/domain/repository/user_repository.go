package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/burenotti/health-backend/internal/domain/entity"
)

var (
	// ErrUserNotFound indicates a lookup with no matching user.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a uniqueness violation on the user id or
	// email during commit.
	ErrUserAlreadyExists = errors.New("user with given id or email already exists")
)

// UserRepository is the persistence contract consumed by the unit of work.
// Implementations are bound to a live transaction and load/store the full
// aggregate (user plus its authorization set) as one unit.
type UserRepository interface {
	// Add stages a new aggregate for insertion.
	Add(ctx context.Context, user *entity.User) error

	// Persist upserts an existing aggregate, replacing the stored
	// authorization set with the current one. Revocation mutates existing
	// records, so this must not be append-only.
	Persist(ctx context.Context, user *entity.User) error

	// Get loads the aggregate by id. Returns ErrUserNotFound when absent.
	Get(ctx context.Context, userID uuid.UUID) (*entity.User, error)

	// GetByEmail loads the aggregate by its login identifier. Returns
	// ErrUserNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*entity.User, error)

	// GetByAuthorization loads the user owning the authorization with the
	// given id, regardless of that authorization's active or revoked state.
	// Returns ErrUserNotFound when no user owns it.
	GetByAuthorization(ctx context.Context, authorizationID uuid.UUID) (*entity.User, error)

	// CollectEvents drains pending events from every aggregate touched
	// through this repository instance, in ascending timestamp order. Each
	// event is delivered exactly once per transaction.
	CollectEvents() []entity.DomainEvent
}
