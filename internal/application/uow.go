package application

import (
	"context"
	"errors"

	"github.com/burenotti/health-backend/internal/domain/entity"
	"github.com/burenotti/health-backend/internal/domain/repository"
)

// ErrUnitOfWorkMisuse signals a violated unit-of-work contract: Begin while a
// transaction is active, or Commit/Rollback/Close while idle. It is a
// programming error and must propagate to the caller, never be swallowed.
var ErrUnitOfWorkMisuse = errors.New("unit of work misuse")

// UnitOfWork is a single atomic transactional scope. An instance holds at
// most one live transaction at a time; repositories returned by Users are
// bound to that transaction and are rebuilt on every Begin.
//
// Commit persists staged changes and, only after the write is durable, hands
// the collected domain events to the message bus in ascending timestamp
// order. Close rolls back whatever remains uncommitted, tears down the
// repositories and returns the instance to its reusable idle state; callers
// must Close on every exit path.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close(ctx context.Context) error

	Users() repository.UserRepository
}

// UnitOfWorkFactory builds a fresh unit of work per operation so concurrent
// requests never share a transactional scope.
type UnitOfWorkFactory func() UnitOfWork

// MessageBus receives the committed transaction's events, ascending by
// timestamp. Publication is fire-and-forget; no delivery guarantee beyond the
// call itself is assumed.
type MessageBus interface {
	Publish(ctx context.Context, events ...entity.DomainEvent) error
}
