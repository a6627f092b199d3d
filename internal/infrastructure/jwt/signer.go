package jwtinfra

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-session-auth/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// CookieSigner turns a session id into the value stored in the client cookie.
// The token carries nothing but the opaque session id and its expiry; all
// identity data stays server-side.
type CookieSigner struct {
	secret []byte
}

func NewCookieSigner(secret string) (*CookieSigner, error) {
	if secret == "" {
		return nil, errors.New("session secret must not be empty")
	}
	return &CookieSigner{secret: []byte(secret)}, nil
}

func (s *CookieSigner) Sign(sessionID string, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        sessionID,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies the signature and expiry and returns the session id.
func (s *CookieSigner) Parse(tokenStr string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("session cookie: %v: %w", err, domain.ErrUnauthorized)
	}
	if !token.Valid || claims.ID == "" {
		return "", fmt.Errorf("session cookie: missing session id: %w", domain.ErrUnauthorized)
	}
	return claims.ID, nil
}
