package entity

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/burenotti/health-backend/pkg/helpers"
)

// AuthorizationTTL bounds how long a minted authorization stays active.
const AuthorizationTTL = 7 * 24 * time.Hour

// ErrAuthorizationNotFound is returned by Logout when no authorization with
// the given id belongs to the user.
var ErrAuthorizationNotFound = errors.New("authorization not found")

type UserKind string

const (
	UserKindCoach   UserKind = "coach"
	UserKindTrainee UserKind = "trainee"
)

// User is the aggregate root for the auth domain. Authorizations are owned
// exclusively by the user and may only be mutated through its methods.
//
// Passwords are stored as a salted SHA-256 hex digest in PasswordHash.
type User struct {
	Aggregate

	ID             uuid.UUID
	Kind           UserKind
	Email          string
	FirstName      string
	LastName       string
	PasswordHash   string
	Salt           string
	IsActive       bool
	Authorizations []Authorization
}

// Authorization is a server-side session record proving a prior successful
// authentication. Its ID doubles as the refresh-token identity (jti).
type Authorization struct {
	ID          uuid.UUID
	ActiveUntil time.Time
	LogoutAt    *time.Time
}

// IsActive reports whether the authorization is usable at the given instant.
// Revocation is permanent: once LogoutAt is set it never reverts.
func (a *Authorization) IsActive(at time.Time) bool {
	return a.LogoutAt == nil && at.Before(a.ActiveUntil)
}

// NewUser creates an active user with a freshly salted password hash and
// buffers a UserCreated event. Email uniqueness is enforced at the storage
// boundary, not here.
func NewUser(kind UserKind, id uuid.UUID, email, firstName, lastName, password string) (*User, error) {
	passwordHash, salt, err := helpers.HashPassword(password, "")
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:             id,
		Kind:           kind,
		Email:          email,
		FirstName:      firstName,
		LastName:       lastName,
		PasswordHash:   passwordHash,
		Salt:           salt,
		IsActive:       true,
		Authorizations: []Authorization{},
	}
	user.PushEvent(UserCreated{
		At:     now(),
		UserID: id,
		Email:  email,
		Kind:   kind,
	})
	return user, nil
}

// Authenticate checks the password against the stored hash. On mismatch it
// returns nil; the caller decides how to report that. On success it mints,
// records and returns a new authorization valid for AuthorizationTTL.
func (u *User) Authenticate(password string) *Authorization {
	if !helpers.ValidatePassword(password, u.PasswordHash, u.Salt) {
		return nil
	}

	auth := Authorization{
		ID:          uuid.New(),
		ActiveUntil: now().Add(AuthorizationTTL),
	}
	u.Authorizations = append(u.Authorizations, auth)
	return &u.Authorizations[len(u.Authorizations)-1]
}

// Logout revokes the authorization with the given id. Idempotent: a second
// call leaves LogoutAt at its first-set value.
func (u *User) Logout(authorizationID uuid.UUID) error {
	auth := u.FindAuthorization(authorizationID)
	if auth == nil {
		return ErrAuthorizationNotFound
	}
	if auth.LogoutAt == nil {
		at := now()
		auth.LogoutAt = &at
	}
	return nil
}

// FindAuthorization returns the owned authorization with the given id, or nil.
// Lookup is by identity, regardless of the authorization's active state.
func (u *User) FindAuthorization(authorizationID uuid.UUID) *Authorization {
	for i := range u.Authorizations {
		if u.Authorizations[i].ID == authorizationID {
			return &u.Authorizations[i]
		}
	}
	return nil
}
