package application

import (
	"context"
	"fmt"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burenotti/health-backend/internal/domain/entity"
	"github.com/burenotti/health-backend/internal/domain/repository"
	"github.com/burenotti/health-backend/pkg/helpers"
)

// recordingBus captures published events in publication order.
type recordingBus struct {
	published []entity.DomainEvent
}

func (b *recordingBus) Publish(_ context.Context, events ...entity.DomainEvent) error {
	b.published = append(b.published, events...)
	return nil
}

// memoryStore is the committed state shared by all units of work in a test.
type memoryStore struct {
	users map[uuid.UUID]*entity.User
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: make(map[uuid.UUID]*entity.User)}
}

func cloneUser(u *entity.User) *entity.User {
	return &entity.User{
		ID:             u.ID,
		Kind:           u.Kind,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		PasswordHash:   u.PasswordHash,
		Salt:           u.Salt,
		IsActive:       u.IsActive,
		Authorizations: append([]entity.Authorization{}, u.Authorizations...),
	}
}

// memoryRepository stages changes until the unit of work commits them.
type memoryRepository struct {
	store   *memoryStore
	added   map[uuid.UUID]*entity.User
	changed map[uuid.UUID]*entity.User
	seen    map[uuid.UUID]*entity.User
}

func newMemoryRepository(store *memoryStore) *memoryRepository {
	return &memoryRepository{
		store:   store,
		added:   make(map[uuid.UUID]*entity.User),
		changed: make(map[uuid.UUID]*entity.User),
		seen:    make(map[uuid.UUID]*entity.User),
	}
}

func (r *memoryRepository) Add(_ context.Context, user *entity.User) error {
	r.added[user.ID] = user
	r.seen[user.ID] = user
	return nil
}

func (r *memoryRepository) Persist(_ context.Context, user *entity.User) error {
	r.changed[user.ID] = user
	r.seen[user.ID] = user
	return nil
}

func (r *memoryRepository) Get(_ context.Context, userID uuid.UUID) (*entity.User, error) {
	stored, ok := r.store.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	loaded := cloneUser(stored)
	r.seen[userID] = loaded
	return loaded, nil
}

func (r *memoryRepository) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	for _, stored := range r.store.users {
		if stored.Email == email {
			loaded := cloneUser(stored)
			r.seen[loaded.ID] = loaded
			return loaded, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *memoryRepository) GetByAuthorization(_ context.Context, authorizationID uuid.UUID) (*entity.User, error) {
	for _, stored := range r.store.users {
		if stored.FindAuthorization(authorizationID) != nil {
			loaded := cloneUser(stored)
			r.seen[loaded.ID] = loaded
			return loaded, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *memoryRepository) CollectEvents() []entity.DomainEvent {
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

// memoryUnitOfWork mirrors the transactional contract over the memory store:
// staged changes become visible only on commit, uniqueness is checked at
// commit time and events are published after the state is applied.
type memoryUnitOfWork struct {
	store  *memoryStore
	bus    MessageBus
	active bool
	repo   *memoryRepository
}

func (u *memoryUnitOfWork) Begin(context.Context) error {
	if u.active {
		return fmt.Errorf("%w: begin while a transaction is active", ErrUnitOfWorkMisuse)
	}
	u.active = true
	u.repo = newMemoryRepository(u.store)
	return nil
}

func (u *memoryUnitOfWork) Commit(ctx context.Context) error {
	if !u.active {
		return fmt.Errorf("%w: commit while idle", ErrUnitOfWorkMisuse)
	}
	for id, user := range u.repo.added {
		if _, ok := u.store.users[id]; ok {
			return repository.ErrUserAlreadyExists
		}
		for _, existing := range u.store.users {
			if existing.Email == user.Email {
				return repository.ErrUserAlreadyExists
			}
		}
	}
	for id, user := range u.repo.added {
		u.store.users[id] = cloneUser(user)
	}
	for id, user := range u.repo.changed {
		u.store.users[id] = cloneUser(user)
	}
	u.repo.added = make(map[uuid.UUID]*entity.User)
	u.repo.changed = make(map[uuid.UUID]*entity.User)

	if events := u.repo.CollectEvents(); len(events) > 0 {
		return u.bus.Publish(ctx, events...)
	}
	return nil
}

func (u *memoryUnitOfWork) Rollback(context.Context) error {
	if !u.active {
		return fmt.Errorf("%w: rollback while idle", ErrUnitOfWorkMisuse)
	}
	u.repo.added = make(map[uuid.UUID]*entity.User)
	u.repo.changed = make(map[uuid.UUID]*entity.User)
	return nil
}

func (u *memoryUnitOfWork) Close(context.Context) error {
	if !u.active {
		return fmt.Errorf("%w: close while idle", ErrUnitOfWorkMisuse)
	}
	u.active = false
	u.repo = nil
	return nil
}

func (u *memoryUnitOfWork) Users() repository.UserRepository {
	return u.repo
}

func newTestService() (*Service, *memoryStore, *recordingBus) {
	store := newMemoryStore()
	bus := &recordingBus{}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	jwt := helpers.NewJWTManager("testsecret", time.Hour, 7*24*time.Hour)
	factory := func() UnitOfWork {
		return &memoryUnitOfWork{store: store, bus: bus}
	}
	return NewService(factory, jwt, logger), store, bus
}

func registerInput(id uuid.UUID, email string) RegisterInput {
	return RegisterInput{
		ID:        id,
		Kind:      entity.UserKindTrainee,
		Email:     email,
		FirstName: "John",
		LastName:  "Doe",
		Password:  "strong_passw0rd",
	}
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("success publishes the creation event after commit", func(t *testing.T) {
		service, store, bus := newTestService()
		userID := uuid.New()

		user, err := service.Register(ctx, registerInput(userID, "a@x.com"))
		require.NoError(t, err)
		assert.Equal(t, userID, user.ID)

		require.Contains(t, store.users, userID)
		require.Len(t, bus.published, 1)
		assert.Equal(t, "user.created", bus.published[0].Name())
	})

	t.Run("duplicate email leaves no partial state", func(t *testing.T) {
		service, store, bus := newTestService()

		_, err := service.Register(ctx, registerInput(uuid.New(), "a@x.com"))
		require.NoError(t, err)

		_, err = service.Register(ctx, registerInput(uuid.New(), "a@x.com"))
		assert.ErrorIs(t, err, ErrUserAlreadyExists)

		assert.Len(t, store.users, 1)
		assert.Len(t, bus.published, 1, "failed transaction must not publish events")
	})

	t.Run("duplicate id", func(t *testing.T) {
		service, _, _ := newTestService()
		userID := uuid.New()

		_, err := service.Register(ctx, registerInput(userID, "a@x.com"))
		require.NoError(t, err)

		_, err = service.Register(ctx, registerInput(userID, "b@x.com"))
		assert.ErrorIs(t, err, ErrUserAlreadyExists)
	})
}

func TestService_GetUserByID(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()
	userID := uuid.New()

	_, err := service.Register(ctx, registerInput(userID, "a@x.com"))
	require.NoError(t, err)

	user, err := service.GetUserByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", user.Email)

	_, err = service.GetUserByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("success records the authorization and issues a pair", func(t *testing.T) {
		service, store, _ := newTestService()
		userID := uuid.New()

		_, err := service.Register(ctx, registerInput(userID, "a@x.com"))
		require.NoError(t, err)

		pair, err := service.Login(ctx, "a@x.com", "strong_passw0rd")
		require.NoError(t, err)
		assert.Equal(t, "bearer", pair.TokenType)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)

		claims, err := service.ValidateToken(pair.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, userID.String(), claims.Subject)
		assert.Equal(t, "a@x.com", claims.Email)
		assert.Equal(t, "John", claims.FirstName)
		assert.Equal(t, "Doe", claims.LastName)

		stored := store.users[userID]
		require.Len(t, stored.Authorizations, 1, "minted authorization must be committed")

		refreshClaims, err := service.JWT.DecodeRefreshToken(pair.RefreshToken)
		require.NoError(t, err)
		authID, err := refreshClaims.AuthorizationID()
		require.NoError(t, err)
		assert.Equal(t, stored.Authorizations[0].ID, authID,
			"refresh token must reference the committed authorization")
	})

	t.Run("unknown email", func(t *testing.T) {
		service, _, _ := newTestService()
		_, err := service.Login(ctx, "nobody@x.com", "strong_passw0rd")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("wrong password", func(t *testing.T) {
		service, store, _ := newTestService()
		userID := uuid.New()

		_, err := service.Register(ctx, registerInput(userID, "a@x.com"))
		require.NoError(t, err)

		_, err = service.Login(ctx, "a@x.com", "wrong_password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Empty(t, store.users[userID].Authorizations, "failed login must not mint")
	})
}

func TestService_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("returns a fresh access token and the same refresh token", func(t *testing.T) {
		service, _, _ := newTestService()
		_, err := service.Register(ctx, registerInput(uuid.New(), "a@x.com"))
		require.NoError(t, err)

		pair, err := service.Login(ctx, "a@x.com", "strong_passw0rd")
		require.NoError(t, err)

		// expiry claims have second resolution
		time.Sleep(1100 * time.Millisecond)

		refreshed, err := service.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, pair.RefreshToken, refreshed.RefreshToken, "refresh token is not rotated")

		oldClaims, err := service.ValidateToken(pair.AccessToken)
		require.NoError(t, err)
		newClaims, err := service.ValidateToken(refreshed.AccessToken)
		require.NoError(t, err)
		assert.Greater(t, newClaims.ExpiresAt.Unix(), oldClaims.ExpiresAt.Unix())
	})

	t.Run("expired authorization", func(t *testing.T) {
		service, store, _ := newTestService()
		userID := uuid.New()

		_, err := service.Register(ctx, registerInput(userID, "a@x.com"))
		require.NoError(t, err)

		expired := entity.Authorization{
			ID:          uuid.New(),
			ActiveUntil: time.Now().UTC().Add(-time.Hour),
		}
		store.users[userID].Authorizations = append(store.users[userID].Authorizations, expired)

		token, _, err := service.JWT.GenerateRefreshToken(userID, expired.ID)
		require.NoError(t, err)

		_, err = service.Refresh(ctx, token)
		assert.ErrorIs(t, err, ErrAuthorizationExpired)
		assert.ErrorIs(t, err, ErrInvalidCredentials, "expiry specializes invalid credentials")
	})

	t.Run("revoked but unexpired authorization still refreshes", func(t *testing.T) {
		// Revocation is only consulted at validation of the stored expiry
		// window; a logged-out session keeps refreshing until active_until
		// passes. Kept as-is deliberately.
		service, store, _ := newTestService()
		userID := uuid.New()

		_, err := service.Register(ctx, registerInput(userID, "a@x.com"))
		require.NoError(t, err)
		pair, err := service.Login(ctx, "a@x.com", "strong_passw0rd")
		require.NoError(t, err)

		authID := store.users[userID].Authorizations[0].ID
		require.NoError(t, service.Logout(ctx, authID))
		require.NotNil(t, store.users[userID].Authorizations[0].LogoutAt)

		_, err = service.Refresh(ctx, pair.RefreshToken)
		assert.NoError(t, err)
	})

	t.Run("unknown authorization", func(t *testing.T) {
		service, _, _ := newTestService()
		token, _, err := service.JWT.GenerateRefreshToken(uuid.New(), uuid.New())
		require.NoError(t, err)

		_, err = service.Refresh(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("malformed token", func(t *testing.T) {
		service, _, _ := newTestService()
		_, err := service.Refresh(ctx, "garbage")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestService_ValidateToken(t *testing.T) {
	service, _, _ := newTestService()

	_, err := service.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes and is idempotent", func(t *testing.T) {
		service, store, _ := newTestService()
		userID := uuid.New()

		_, err := service.Register(ctx, registerInput(userID, "a@x.com"))
		require.NoError(t, err)
		_, err = service.Login(ctx, "a@x.com", "strong_passw0rd")
		require.NoError(t, err)

		authID := store.users[userID].Authorizations[0].ID

		require.NoError(t, service.Logout(ctx, authID))
		first := store.users[userID].Authorizations[0].LogoutAt
		require.NotNil(t, first)

		require.NoError(t, service.Logout(ctx, authID))
		assert.Equal(t, *first, *store.users[userID].Authorizations[0].LogoutAt)
	})

	t.Run("unknown authorization", func(t *testing.T) {
		service, _, _ := newTestService()
		assert.ErrorIs(t, service.Logout(ctx, uuid.New()), ErrUserNotFound)
	})
}

func TestUnitOfWork_EventOrdering(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	bus := &recordingBus{}
	uow := &memoryUnitOfWork{store: store, bus: bus}

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	t1, t2, t3 := base, base.Add(time.Second), base.Add(2*time.Second)

	require.NoError(t, uow.Begin(ctx))
	// events arrive out of order across two aggregates
	for i, at := range []time.Time{t2, t1, t3} {
		user, err := entity.NewUser(entity.UserKindCoach, uuid.New(),
			fmt.Sprintf("user%d@x.com", i), "John", "Doe", "strong_passw0rd")
		require.NoError(t, err)
		for user.PopEvent() != nil { // drop the factory event
		}
		user.PushEvent(entity.UserCreated{At: at, UserID: user.ID, Email: user.Email, Kind: user.Kind})
		require.NoError(t, uow.Users().Persist(ctx, user))
	}
	require.NoError(t, uow.Commit(ctx))
	require.NoError(t, uow.Close(ctx))

	require.Len(t, bus.published, 3)
	assert.Equal(t, []time.Time{t1, t2, t3}, []time.Time{
		bus.published[0].OccurredAt(),
		bus.published[1].OccurredAt(),
		bus.published[2].OccurredAt(),
	})
}

func TestUnitOfWork_Misuse(t *testing.T) {
	ctx := context.Background()
	uow := &memoryUnitOfWork{store: newMemoryStore(), bus: &recordingBus{}}

	assert.ErrorIs(t, uow.Commit(ctx), ErrUnitOfWorkMisuse)
	assert.ErrorIs(t, uow.Rollback(ctx), ErrUnitOfWorkMisuse)
	assert.ErrorIs(t, uow.Close(ctx), ErrUnitOfWorkMisuse)

	require.NoError(t, uow.Begin(ctx))
	assert.ErrorIs(t, uow.Begin(ctx), ErrUnitOfWorkMisuse)
	require.NoError(t, uow.Close(ctx))

	// idle again: reusable
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.Close(ctx))
}
