// Package identity maps player IDs to display names. Sessions and
// bots register here once; everything that renders a name looks it up.
package identity

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// BotPrefix marks bot player IDs, which are UUIDs behind the prefix.
const BotPrefix = "bot-"

// NameResolver is the read side of the registry.
type NameResolver interface {
	Resolve(playerID string) (string, bool)
	ResolveAll(ids []string) map[string]string
}

// Service is the full registry. It is safe for concurrent use.
type Service struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewService creates an empty registry.
func NewService() *Service {
	return &Service{names: make(map[string]string)}
}

// Register records a player's display name. The ID must be a UUID,
// optionally behind the bot prefix. Registering an ID twice is an
// error; duplicate names are allowed.
func (s *Service) Register(playerID, name string) error {
	if err := validateID(playerID); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("player %s: empty name", playerID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.names[playerID]; exists {
		return fmt.Errorf("player %s already registered", playerID)
	}
	s.names[playerID] = name
	return nil
}

// Remove forgets a player.
func (s *Service) Remove(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.names, playerID)
}

// Resolve returns the display name for a player ID.
func (s *Service) Resolve(playerID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.names[playerID]
	return name, ok
}

// ResolveAll returns the known names among ids. Unknown IDs are
// simply absent from the result.
func (s *Service) ResolveAll(ids []string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if name, ok := s.names[id]; ok {
			out[id] = name
		}
	}
	return out
}

// IsBot reports whether a player ID belongs to a bot.
func IsBot(playerID string) bool {
	return strings.HasPrefix(playerID, BotPrefix)
}

func validateID(playerID string) error {
	raw := strings.TrimPrefix(playerID, BotPrefix)
	if err := uuid.Validate(raw); err != nil {
		return fmt.Errorf("invalid player id %q: %w", playerID, err)
	}
	return nil
}
