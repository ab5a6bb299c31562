package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/burenotti/health-backend/internal/application"
	"github.com/burenotti/health-backend/internal/domain/repository"
)

// UnitOfWork coordinates one pgx transaction and the repositories bound to
// it. The zero value is idle; Begin opens the transaction and rebuilds the
// repositories, Close returns the instance to idle.
type UnitOfWork struct {
	pool   *pgxpool.Pool
	bus    application.MessageBus
	logger *logrus.Logger

	tx    pgx.Tx
	users *UserRepository
}

func NewUnitOfWork(pool *pgxpool.Pool, bus application.MessageBus, logger *logrus.Logger) *UnitOfWork {
	return &UnitOfWork{pool: pool, bus: bus, logger: logger}
}

// NewUnitOfWorkFactory builds idle units of work sharing the pool, bus and
// logger. The service layer obtains a fresh one per operation.
func NewUnitOfWorkFactory(pool *pgxpool.Pool, bus application.MessageBus, logger *logrus.Logger) application.UnitOfWorkFactory {
	return func() application.UnitOfWork {
		return NewUnitOfWork(pool, bus, logger)
	}
}

func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("%w: begin while a transaction is active", application.ErrUnitOfWorkMisuse)
	}
	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	u.tx = tx
	u.users = NewUserRepository(tx)
	return nil
}

// Commit makes the staged changes durable and only then publishes the
// collected domain events. Publication failures are logged, not returned:
// the committed state wins over the notification.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return fmt.Errorf("%w: commit while idle", application.ErrUnitOfWorkMisuse)
	}
	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	events := u.users.CollectEvents()
	if len(events) == 0 {
		return nil
	}
	if err := u.bus.Publish(ctx, events...); err != nil {
		u.logger.WithError(err).WithField("events", len(events)).Error("event publication failed")
	}
	return nil
}

func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return fmt.Errorf("%w: rollback while idle", application.ErrUnitOfWorkMisuse)
	}
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

// Close rolls back whatever remains uncommitted, tears down the repositories
// and returns the unit of work to its reusable idle state. A rollback after a
// successful commit is a no-op at the driver level.
func (u *UnitOfWork) Close(ctx context.Context) error {
	if u.tx == nil {
		return fmt.Errorf("%w: close while idle", application.ErrUnitOfWorkMisuse)
	}
	err := u.Rollback(ctx)
	u.users = nil
	u.tx = nil
	return err
}

func (u *UnitOfWork) Users() repository.UserRepository {
	return u.users
}

var _ application.UnitOfWork = (*UnitOfWork)(nil)
