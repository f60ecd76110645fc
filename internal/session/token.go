package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSecret is the fallback signing secret. It exists so the
// server runs out of the box; production deployments must override.
const DefaultSecret = "your-secret-key-change-in-production"

// DefaultExpirationDays is how long sessions live unless configured.
const DefaultExpirationDays = 365

// TokenConfig holds the signing parameters for session tokens.
type TokenConfig struct {
	Secret         string
	ExpirationDays int
}

func (c TokenConfig) withDefaults() TokenConfig {
	if c.Secret == "" {
		c.Secret = DefaultSecret
	}
	if c.ExpirationDays <= 0 {
		c.ExpirationDays = DefaultExpirationDays
	}
	return c
}

// Claims is the JWT payload for a session token.
type Claims struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
	jwt.RegisteredClaims
}

func (c TokenConfig) sign(sess Session) (string, error) {
	claims := Claims{
		SessionID: sess.ID,
		Username:  sess.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(c.Secret))
}

func (c TokenConfig) parse(tokenString string, now time.Time) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return []byte(c.Secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
