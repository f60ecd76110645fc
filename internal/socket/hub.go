package socket

import (
	"sync"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/mkchan/bigtwo/internal/protocol"
)

// Hub indexes live connections by room and player. It is the one
// place that knows who is reachable; everything above it addresses
// players by ID.
type Hub struct {
	logger zerolog.Logger
	clock  quartz.Clock

	mu    sync.RWMutex
	rooms map[string]map[string]*Conn
}

// NewHub creates an empty hub.
func NewHub(clock quartz.Clock, logger zerolog.Logger) *Hub {
	return &Hub{
		logger: logger.With().Str("component", "hub").Logger(),
		clock:  clock,
		rooms:  make(map[string]map[string]*Conn),
	}
}

// Register attaches a player's connection, displacing any previous
// one (a reconnect closes the stale socket).
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	conns, ok := h.rooms[c.roomID]
	if !ok {
		conns = make(map[string]*Conn)
		h.rooms[c.roomID] = conns
	}
	old := conns[c.playerID]
	conns[c.playerID] = c
	h.mu.Unlock()

	if old != nil {
		old.Close()
	}
	h.logger.Debug().Str("room", c.roomID).Str("player", c.playerID).Msg("connection registered")
}

// Unregister detaches a connection. A newer connection for the same
// player is left in place.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.rooms[c.roomID]
	if conns[c.playerID] != c {
		return
	}
	delete(conns, c.playerID)
	if len(conns) == 0 {
		delete(h.rooms, c.roomID)
	}
}

// Broadcast sends an envelope to every connected player in a room.
func (h *Hub) Broadcast(roomID string, env protocol.Envelope) {
	frame, err := env.Encode()
	if err != nil {
		h.logger.Error().Err(err).Str("type", env.Type).Msg("failed to encode broadcast")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[roomID] {
		c.Send(frame)
	}
}

// Unicast sends an envelope to one player, if connected.
func (h *Hub) Unicast(roomID, playerID string, env protocol.Envelope) {
	h.mu.RLock()
	c, ok := h.rooms[roomID][playerID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	c.SendEnvelope(env)
}

// SendError delivers an ERROR envelope to the one client whose
// request was rejected.
func (h *Hub) SendError(roomID, playerID, code, message string) {
	env, err := protocol.NewEnvelope(protocol.TypeError, protocol.ErrorPayload{
		Code:    code,
		Message: message,
	}, h.clock.Now())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to build error envelope")
		return
	}
	h.Unicast(roomID, playerID, env)
}

// Connected lists the players with a live socket in a room.
func (h *Hub) Connected(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.rooms[roomID]))
	for id := range h.rooms[roomID] {
		out = append(out, id)
	}
	return out
}

// CloseRoom drops every connection in a room.
func (h *Hub) CloseRoom(roomID string) {
	h.mu.Lock()
	conns := h.rooms[roomID]
	delete(h.rooms, roomID)
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

// Close drops every connection on the hub.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.rooms
	h.rooms = make(map[string]map[string]*Conn)
	h.mu.Unlock()

	for _, conns := range all {
		for _, c := range conns {
			c.Close()
		}
	}
}
