package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenSignature = errors.New("token signature is invalid")
	ErrTokenExpired   = errors.New("token is expired")
)

// TokenService issues and verifies stateless HS256 bearer tokens binding a
// request to a user id. There is no revocation: a token stays valid until
// its expiry regardless of logout.
type TokenService struct {
	secret []byte
	expiry time.Duration
}

func NewTokenService(secret string, expiry time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), expiry: expiry}
}

// Issue signs a token for the given user id, valid for the configured window.
func (s *TokenService) Issue(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": now.Unix(),
		"exp": now.Add(s.expiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses and validates a token and returns the user id it binds to.
// Failures are reported as ErrTokenMalformed, ErrTokenSignature or
// ErrTokenExpired so callers can distinguish them.
func (s *TokenService) Verify(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return uuid.Nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return uuid.Nil, ErrTokenSignature
		default:
			return uuid.Nil, ErrTokenMalformed
		}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrTokenMalformed
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, ErrTokenMalformed
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, ErrTokenMalformed
	}

	return userID, nil
}
