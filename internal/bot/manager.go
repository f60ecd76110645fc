package bot

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mkchan/bigtwo/internal/events"
	"github.com/mkchan/bigtwo/internal/identity"
	"github.com/mkchan/bigtwo/internal/room"
)

// MaxBotsPerRoom keeps at least one human seat at every table.
const MaxBotsPerRoom = 3

var (
	// ErrTooManyBots rejects a fourth bot.
	ErrTooManyBots = errors.New("bot: room already has the maximum number of bots")
	// ErrBotNotFound rejects removal of an unknown bot.
	ErrBotNotFound = errors.New("bot: not found in room")
)

// Bot is a seated bot.
type Bot struct {
	ID         string `json:"bot_id"`
	Name       string `json:"name"`
	Difficulty string `json:"difficulty"`
}

// Rooms is the slice of the room service the manager needs.
type Rooms interface {
	Get(roomID string) (room.Room, error)
	Join(roomID, playerID string) (room.Room, error)
	Leave(roomID, playerID string) error
}

// Registrar is the slice of the identity registry the manager needs.
type Registrar interface {
	Register(playerID, name string) error
	Remove(playerID string)
}

// Manager seats and removes bots on host command.
type Manager struct {
	logger zerolog.Logger
	bus    *events.Bus
	rooms  Rooms
	ids    Registrar

	mu   sync.RWMutex
	bots map[string]map[string]Bot // room -> bot id -> bot
}

// NewManager creates an empty bot manager.
func NewManager(bus *events.Bus, rooms Rooms, ids Registrar, logger zerolog.Logger) *Manager {
	return &Manager{
		logger: logger.With().Str("component", "bots").Logger(),
		bus:    bus,
		rooms:  rooms,
		ids:    ids,
		bots:   make(map[string]map[string]Bot),
	}
}

// Add seats a bot in a room. Host only.
func (m *Manager) Add(roomID, requesterID, difficulty string) (Bot, error) {
	r, err := m.rooms.Get(roomID)
	if err != nil {
		return Bot{}, err
	}
	if r.Host != requesterID {
		return Bot{}, room.ErrNotHost
	}
	if difficulty == "" {
		difficulty = DefaultDifficulty
	}

	b := Bot{
		ID:         identity.BotPrefix + uuid.NewString(),
		Name:       petname.Generate(2, "-") + " Bot",
		Difficulty: difficulty,
	}

	m.mu.Lock()
	if len(m.bots[roomID]) >= MaxBotsPerRoom {
		m.mu.Unlock()
		return Bot{}, ErrTooManyBots
	}
	if m.bots[roomID] == nil {
		m.bots[roomID] = make(map[string]Bot)
	}
	m.bots[roomID][b.ID] = b
	m.mu.Unlock()

	if err := m.ids.Register(b.ID, b.Name); err != nil {
		m.forget(roomID, b.ID)
		return Bot{}, fmt.Errorf("register bot identity: %w", err)
	}
	if _, err := m.rooms.Join(roomID, b.ID); err != nil {
		m.forget(roomID, b.ID)
		m.ids.Remove(b.ID)
		return Bot{}, err
	}

	m.logger.Info().
		Str("room", roomID).
		Str("bot", b.ID).
		Str("name", b.Name).
		Msg("bot added")
	m.bus.Publish(events.BotAdded{Base: events.In(roomID), BotID: b.ID, Name: b.Name})
	return b, nil
}

// Remove unseats a bot. Host only.
func (m *Manager) Remove(roomID, requesterID, botID string) error {
	r, err := m.rooms.Get(roomID)
	if err != nil {
		return err
	}
	if r.Host != requesterID {
		return room.ErrNotHost
	}

	m.mu.RLock()
	b, ok := m.bots[roomID][botID]
	m.mu.RUnlock()
	if !ok {
		return ErrBotNotFound
	}

	if err := m.rooms.Leave(roomID, botID); err != nil && !errors.Is(err, room.ErrNotFound) {
		return err
	}
	m.forget(roomID, botID)
	m.ids.Remove(botID)

	m.logger.Info().Str("room", roomID).Str("bot", botID).Msg("bot removed")
	m.bus.Publish(events.BotRemoved{Base: events.In(roomID), BotID: botID, Name: b.Name})
	return nil
}

// Bots lists a room's bots in a stable order.
func (m *Manager) Bots(roomID string) []Bot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Bot, 0, len(m.bots[roomID]))
	for _, b := range m.bots[roomID] {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Has reports whether a bot is seated in a room.
func (m *Manager) Has(roomID, botID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.bots[roomID][botID]
	return ok
}

// DropRoom forgets a deleted room's bots and their identities.
func (m *Manager) DropRoom(roomID string) {
	m.mu.Lock()
	bots := m.bots[roomID]
	delete(m.bots, roomID)
	m.mu.Unlock()

	for id := range bots {
		m.ids.Remove(id)
	}
}

func (m *Manager) forget(roomID, botID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bots[roomID], botID)
	if len(m.bots[roomID]) == 0 {
		delete(m.bots, roomID)
	}
}
