package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/burenotti/health-backend/internal/domain/entity"
	"github.com/burenotti/health-backend/internal/domain/repository"
	"github.com/burenotti/health-backend/pkg/helpers"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAuthorizationExpired specializes ErrInvalidCredentials: the refresh
	// session's validity window has elapsed.
	ErrAuthorizationExpired = fmt.Errorf("%w: authorization expired", ErrInvalidCredentials)

	ErrUserAlreadyExists = errors.New("user with given id or email already exists")
	ErrUserNotFound      = errors.New("user not found")
)

// Service orchestrates the authentication flows. Every operation runs inside
// exactly one unit-of-work scope; the service itself keeps no per-call state.
type Service struct {
	NewUnitOfWork UnitOfWorkFactory
	JWT           *helpers.JWTManager
	Logger        *logrus.Logger
}

func NewService(factory UnitOfWorkFactory, jwt *helpers.JWTManager, logger *logrus.Logger) *Service {
	return &Service{NewUnitOfWork: factory, JWT: jwt, Logger: logger}
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// RegisterInput carries the caller-supplied identity for a new user.
type RegisterInput struct {
	ID        uuid.UUID
	Kind      entity.UserKind
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// Register creates a user and commits it. A uniqueness violation on the id or
// email surfaces as ErrUserAlreadyExists.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	var user *entity.User
	err := s.inScope(ctx, func(uow UnitOfWork) error {
		var err error
		user, err = entity.NewUser(in.Kind, in.ID, in.Email, in.FirstName, in.LastName, in.Password)
		if err != nil {
			return err
		}
		if err := uow.Users().Add(ctx, user); err != nil {
			return err
		}
		return uow.Commit(ctx)
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}
	s.Logger.WithFields(logrus.Fields{"user_id": in.ID, "kind": in.Kind}).Info("user registered")
	return user, nil
}

// GetUserByID loads a user profile.
func (s *Service) GetUserByID(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	var user *entity.User
	err := s.inScope(ctx, func(uow UnitOfWork) error {
		var err error
		user, err = uow.Users().Get(ctx, userID)
		return err
	})
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates the credentials, records the minted authorization and
// issues an access/refresh token pair. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	var pair TokenPair
	err := s.inScope(ctx, func(uow UnitOfWork) error {
		user, err := uow.Users().GetByEmail(ctx, email)
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidCredentials
		}
		if err != nil {
			return err
		}

		auth := user.Authenticate(password)
		if auth == nil {
			return ErrInvalidCredentials
		}

		if err := uow.Users().Persist(ctx, user); err != nil {
			return err
		}
		if err := uow.Commit(ctx); err != nil {
			return err
		}

		pair, err = s.issuePair(user, auth.ID)
		return err
	})
	if err != nil {
		return TokenPair{}, err
	}
	s.Logger.WithField("email", email).Debug("user logged in")
	return pair, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh token
// itself is decoded permissively and returned unrotated; trust comes from the
// stored authorization record, whose expiry window alone decides validity.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.JWT.DecodeRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	authID, err := claims.AuthorizationID()
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}

	var pair TokenPair
	err = s.inScope(ctx, func(uow UnitOfWork) error {
		user, err := uow.Users().GetByAuthorization(ctx, authID)
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidCredentials
		}
		if err != nil {
			return err
		}

		auth := user.FindAuthorization(authID)
		if auth == nil {
			return ErrInvalidCredentials
		}
		if !time.Now().UTC().Before(auth.ActiveUntil) {
			return ErrAuthorizationExpired
		}

		access, _, err := s.JWT.GenerateAccessToken(user.ID, user.Email, user.FirstName, user.LastName)
		if err != nil {
			return err
		}
		pair = TokenPair{AccessToken: access, RefreshToken: refreshToken, TokenType: "bearer"}
		return nil
	})
	if err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// ValidateToken verifies an access token's signature and expiry. Malformed,
// expired and badly signed tokens are not distinguished to the caller.
func (s *Service) ValidateToken(token string) (*helpers.AccessClaims, error) {
	claims, err := s.JWT.ParseAccessToken(token)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	return claims, nil
}

// Logout revokes the authorization with the given id and commits the change.
func (s *Service) Logout(ctx context.Context, authorizationID uuid.UUID) error {
	err := s.inScope(ctx, func(uow UnitOfWork) error {
		user, err := uow.Users().GetByAuthorization(ctx, authorizationID)
		if err != nil {
			return err
		}
		if err := user.Logout(authorizationID); err != nil {
			return err
		}
		if err := uow.Users().Persist(ctx, user); err != nil {
			return err
		}
		return uow.Commit(ctx)
	})
	if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, entity.ErrAuthorizationNotFound) {
		return ErrUserNotFound
	}
	return err
}

// issuePair mints the dual tokens for a freshly authenticated user.
func (s *Service) issuePair(user *entity.User, authorizationID uuid.UUID) (TokenPair, error) {
	access, _, err := s.JWT.GenerateAccessToken(user.ID, user.Email, user.FirstName, user.LastName)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := s.JWT.GenerateRefreshToken(user.ID, authorizationID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

// inScope runs fn inside a fresh unit-of-work scope. Close runs on every exit
// path, performing a defensive rollback of anything left uncommitted.
func (s *Service) inScope(ctx context.Context, fn func(uow UnitOfWork) error) error {
	uow := s.NewUnitOfWork()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		if err := uow.Close(ctx); err != nil {
			s.Logger.WithError(err).Error("unit of work close failed")
		}
	}()
	return fn(uow)
}
