package helpers

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTManager signs and verifies the HS256 access/refresh token pair with a
// single shared secret.
type JWTManager struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func NewJWTManager(secret string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		Secret:     []byte(secret),
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
	}
}

// AccessClaims are self-contained: the profile fields are embedded so callers
// can authorize a request without a database round-trip.
type AccessClaims struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	jwt.RegisteredClaims
}

// RefreshClaims reference a server-side authorization record: ID (jti) is the
// authorization id, Subject the owning user id.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

func (c *RefreshClaims) AuthorizationID() (uuid.UUID, error) {
	return uuid.Parse(c.ID)
}

func (c *RefreshClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// GenerateAccessToken issues a short-lived access token for the user.
func (m *JWTManager) GenerateAccessToken(userID uuid.UUID, email, firstName, lastName string) (string, time.Time, error) {
	nowT := time.Now().UTC()
	exp := nowT.Add(m.AccessTTL)
	claims := &AccessClaims{
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(nowT),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
	return token, exp, err
}

// GenerateRefreshToken issues a refresh token bound to an authorization id.
func (m *JWTManager) GenerateRefreshToken(userID, authorizationID uuid.UUID) (string, time.Time, error) {
	nowT := time.Now().UTC()
	exp := nowT.Add(m.RefreshTTL)
	claims := &RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        authorizationID.String(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(nowT),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
	return token, exp, err
}

// ParseAccessToken verifies the signature and the registered claims (incl.
// expiry) and returns the decoded claims.
func (m *JWTManager) ParseAccessToken(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// DecodeRefreshToken extracts refresh claims without verifying signature or
// expiry. The claims only locate the authorization record; trust is
// re-established by loading that record, not by the token itself.
func (m *JWTManager) DecodeRefreshToken(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
