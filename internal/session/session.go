// Package session issues and validates signed player sessions.
//
// A session ID doubles as the player ID everywhere else in the
// server. Tokens are stateless JWTs, but validation also consults the
// store so deleting a session revokes its token.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidToken indicates the token is missing, malformed,
	// expired or revoked.
	ErrInvalidToken = errors.New("session: invalid token")
)

// Session is the stored record of an issued session.
type Session struct {
	ID           string
	Username     string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastAccessed time.Time
}

// Credentials are returned to a client on session creation.
type Credentials struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	Username  string `json:"username"`
	PlayerID  string `json:"player_id"`
}

// Identity is the authenticated principal attached to a request.
type Identity struct {
	SessionID string
	Username  string
	PlayerID  string
}

// Registrar is the slice of the identity registry sessions need.
type Registrar interface {
	Register(playerID, name string) error
}

// Service creates and validates sessions.
type Service struct {
	store     Store
	tokens    TokenConfig
	registrar Registrar
	clock     quartz.Clock
	logger    zerolog.Logger
}

// NewService wires a session service.
func NewService(store Store, tokens TokenConfig, registrar Registrar, clock quartz.Clock, logger zerolog.Logger) *Service {
	tokens = tokens.withDefaults()
	if tokens.Secret == DefaultSecret {
		logger.Warn().Msg("using the default JWT secret, set JWT_SECRET in production")
	}
	return &Service{
		store:     store,
		tokens:    tokens,
		registrar: registrar,
		clock:     clock,
		logger:    logger.With().Str("component", "session").Logger(),
	}
}

// Create issues a fresh anonymous session with a generated username.
func (s *Service) Create(ctx context.Context) (Credentials, error) {
	now := s.clock.Now().UTC()
	sess := Session{
		ID:           uuid.NewString(),
		Username:     petname.Generate(2, "-"),
		CreatedAt:    now,
		ExpiresAt:    now.AddDate(0, 0, s.tokens.ExpirationDays),
		LastAccessed: now,
	}

	if err := s.store.Save(ctx, sess); err != nil {
		return Credentials{}, fmt.Errorf("save session: %w", err)
	}
	if err := s.registrar.Register(sess.ID, sess.Username); err != nil {
		return Credentials{}, fmt.Errorf("register identity: %w", err)
	}

	token, err := s.tokens.sign(sess)
	if err != nil {
		return Credentials{}, fmt.Errorf("sign token: %w", err)
	}

	s.logger.Info().
		Str("session", sess.ID).
		Str("username", sess.Username).
		Time("expires", sess.ExpiresAt).
		Msg("session created")

	return Credentials{
		SessionID: sess.ID,
		Token:     token,
		Username:  sess.Username,
		PlayerID:  sess.ID,
	}, nil
}

// Validate checks a token's signature and lifetime, then confirms the
// session still exists in the store. Last access is refreshed as a
// side effect, best effort.
func (s *Service) Validate(ctx context.Context, token string) (Identity, error) {
	claims, err := s.tokens.parse(token, s.clock.Now())
	if err != nil {
		return Identity{}, err
	}

	sess, err := s.store.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, fmt.Errorf("%w: session revoked", ErrInvalidToken)
		}
		return Identity{}, fmt.Errorf("look up session: %w", err)
	}
	if s.clock.Now().After(sess.ExpiresAt) {
		return Identity{}, fmt.Errorf("%w: session expired", ErrInvalidToken)
	}

	if err := s.store.Touch(ctx, sess.ID, s.clock.Now().UTC()); err != nil {
		s.logger.Warn().Err(err).Str("session", sess.ID).Msg("failed to touch session")
	}

	return Identity{
		SessionID: sess.ID,
		Username:  sess.Username,
		PlayerID:  sess.ID,
	}, nil
}

// Revoke deletes a session, invalidating its outstanding tokens.
func (s *Service) Revoke(ctx context.Context, sessionID string) error {
	return s.store.Delete(ctx, sessionID)
}
