package postgres

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/burenotti/health-backend/internal/domain/entity"
	"github.com/burenotti/health-backend/internal/domain/repository"
)

// UserRepository persists the user aggregate graph within one transaction.
// Instances are constructed per transaction by the unit of work and must not
// outlive it.
type UserRepository struct {
	tx   pgx.Tx
	seen map[uuid.UUID]*entity.User
}

func NewUserRepository(tx pgx.Tx) *UserRepository {
	return &UserRepository{tx: tx, seen: make(map[uuid.UUID]*entity.User)}
}

func (r *UserRepository) Add(ctx context.Context, user *entity.User) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO users (user_id, kind, email, password_hash, salt, first_name, last_name, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.Kind, user.Email, user.PasswordHash, user.Salt,
		user.FirstName, user.LastName, user.IsActive)
	if err != nil {
		return translateError(err)
	}
	if err := r.upsertAuthorizations(ctx, user); err != nil {
		return err
	}
	r.seen[user.ID] = user
	return nil
}

func (r *UserRepository) Persist(ctx context.Context, user *entity.User) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO users (user_id, kind, email, password_hash, salt, first_name, last_name, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			kind = EXCLUDED.kind,
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			salt = EXCLUDED.salt,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			is_active = EXCLUDED.is_active,
			updated_at = now()
	`, user.ID, user.Kind, user.Email, user.PasswordHash, user.Salt,
		user.FirstName, user.LastName, user.IsActive)
	if err != nil {
		return translateError(err)
	}
	if err := r.upsertAuthorizations(ctx, user); err != nil {
		return err
	}
	r.seen[user.ID] = user
	return nil
}

func (r *UserRepository) Get(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	return r.getOne(ctx, `
		SELECT user_id, kind, email, password_hash, salt, first_name, last_name, is_active
		FROM users
		WHERE user_id = $1
	`, userID)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.getOne(ctx, `
		SELECT user_id, kind, email, password_hash, salt, first_name, last_name, is_active
		FROM users
		WHERE email = $1
	`, email)
}

func (r *UserRepository) GetByAuthorization(ctx context.Context, authorizationID uuid.UUID) (*entity.User, error) {
	return r.getOne(ctx, `
		SELECT u.user_id, u.kind, u.email, u.password_hash, u.salt, u.first_name, u.last_name, u.is_active
		FROM users u
		JOIN authorizations a ON a.user_id = u.user_id
		WHERE a.authorization_id = $1
	`, authorizationID)
}

// CollectEvents drains the pending events of every aggregate this repository
// touched, ascending by timestamp. A second call within the same transaction
// returns nothing.
func (r *UserRepository) CollectEvents() []entity.DomainEvent {
	var events []entity.DomainEvent
	for _, user := range r.seen {
		for event := user.PopEvent(); event != nil; event = user.PopEvent() {
			events = append(events, event)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].OccurredAt().Before(events[j].OccurredAt())
	})
	return events
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*entity.User, error) {
	user := &entity.User{}
	row := r.tx.QueryRow(ctx, query, arg)
	if err := row.Scan(&user.ID, &user.Kind, &user.Email, &user.PasswordHash,
		&user.Salt, &user.FirstName, &user.LastName, &user.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrUserNotFound
		}
		return nil, err
	}
	if err := r.loadAuthorizations(ctx, user); err != nil {
		return nil, err
	}
	r.seen[user.ID] = user
	return user, nil
}

func (r *UserRepository) loadAuthorizations(ctx context.Context, user *entity.User) error {
	rows, err := r.tx.Query(ctx, `
		SELECT authorization_id, active_until, logout_at
		FROM authorizations
		WHERE user_id = $1
		ORDER BY active_until
	`, user.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	user.Authorizations = []entity.Authorization{}
	for rows.Next() {
		var auth entity.Authorization
		var logoutAt *time.Time
		if err := rows.Scan(&auth.ID, &auth.ActiveUntil, &logoutAt); err != nil {
			return err
		}
		auth.LogoutAt = logoutAt
		user.Authorizations = append(user.Authorizations, auth)
	}
	return rows.Err()
}

func (r *UserRepository) upsertAuthorizations(ctx context.Context, user *entity.User) error {
	for _, auth := range user.Authorizations {
		_, err := r.tx.Exec(ctx, `
			INSERT INTO authorizations (authorization_id, user_id, active_until, logout_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (authorization_id) DO UPDATE SET
				active_until = EXCLUDED.active_until,
				logout_at = EXCLUDED.logout_at,
				updated_at = now()
		`, auth.ID, user.ID, auth.ActiveUntil, auth.LogoutAt)
		if err != nil {
			return translateError(err)
		}
	}
	return nil
}

const uniqueViolationCode = "23505"

// translateError maps storage-level uniqueness violations to the
// distinguishable repository sentinel.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return repository.ErrUserAlreadyExists
	}
	return err
}

var _ repository.UserRepository = (*UserRepository)(nil)
