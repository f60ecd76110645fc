package socket

import (
	"context"
	"net/http"
	"strings"

	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mkchan/bigtwo/internal/card"
	"github.com/mkchan/bigtwo/internal/events"
	"github.com/mkchan/bigtwo/internal/protocol"
	"github.com/mkchan/bigtwo/internal/session"
)

// Error codes for frames rejected before they reach the bus.
const (
	codeParseError  = "PARSE_ERROR"
	codeInvalidCard = "INVALID_CARD"
	codeUnknownType = "UNKNOWN_TYPE"
)

// bearerProtocol is the subprotocol browsers use to smuggle the
// token through the upgrade: Sec-WebSocket-Protocol: bearer, <jwt>.
const bearerProtocol = "bearer"

// Validator authenticates an upgrade request's token.
type Validator interface {
	Validate(ctx context.Context, token string) (session.Identity, error)
}

// ReadyRooms is the slice of the room service ingress needs: the
// membership check before upgrade plus the ready toggle, which is a
// direct service call like the REST mutations (the service emits the
// fact after the state change).
type ReadyRooms interface {
	RoomSource
	SetReady(roomID, playerID string, ready bool) error
}

// Ingress upgrades connections at /ws/{room_id} and turns their
// frames into intent events.
type Ingress struct {
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	bus      *events.Bus
	hub      *Hub
	sessions Validator
	rooms    ReadyRooms
	clock    quartz.Clock
}

// NewIngress wires the upgrade handler.
func NewIngress(bus *events.Bus, hub *Hub, sessions Validator, rooms ReadyRooms, clock quartz.Clock, logger zerolog.Logger) *Ingress {
	return &Ingress{
		logger: logger.With().Str("component", "ingress").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{bearerProtocol},
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		bus:      bus,
		hub:      hub,
		sessions: sessions,
		rooms:    rooms,
		clock:    clock,
	}
}

// ServeHTTP authenticates and upgrades a client. Auth and room
// checks both happen before the upgrade so failures stay plain HTTP.
func (i *Ingress) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")

	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	ident, err := i.sessions.Validate(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	rm, err := i.rooms.Get(roomID)
	if err != nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	if !rm.HasPlayer(ident.PlayerID) {
		http.Error(w, "not a member of this room", http.StatusForbidden)
		return
	}

	ws, err := i.upgrader.Upgrade(w, r, nil)
	if err != nil {
		i.logger.Debug().Err(err).Str("room", roomID).Msg("upgrade failed")
		return
	}

	conn := newConn(ws, roomID, ident.PlayerID, i.logger)
	i.hub.Register(conn)

	i.logger.Info().
		Str("room", roomID).
		Str("player", ident.PlayerID).
		Str("username", ident.Username).
		Msg("client connected")

	conn.start(
		func(frame []byte) { i.handleFrame(conn, frame) },
		func() {
			i.hub.Unregister(conn)
			i.bus.Publish(events.PlayerDisconnected{Base: events.In(roomID), Player: conn.playerID})
			i.logger.Info().
				Str("room", roomID).
				Str("player", conn.playerID).
				Msg("client disconnected")
		},
	)

	i.bus.Publish(events.PlayerConnected{Base: events.In(roomID), Player: ident.PlayerID})
}

// handleFrame parses one inbound frame into an intent event. Bad
// frames earn an ERROR envelope; the connection survives.
func (i *Ingress) handleFrame(c *Conn, frame []byte) {
	env, err := protocol.Decode(frame)
	if err != nil {
		i.hub.SendError(c.roomID, c.playerID, codeParseError, err.Error())
		return
	}

	base := events.In(c.roomID)
	switch env.Type {
	case protocol.TypeChat:
		var p protocol.ChatPayload
		if err := env.DecodePayload(&p); err != nil {
			i.hub.SendError(c.roomID, c.playerID, codeParseError, err.Error())
			return
		}
		i.bus.Publish(events.ChatMessageReceived{Base: base, Player: c.playerID, Text: p.Content})

	case protocol.TypeMove:
		var p protocol.MovePayload
		if err := env.DecodePayload(&p); err != nil {
			i.hub.SendError(c.roomID, c.playerID, codeParseError, err.Error())
			return
		}
		cards, err := card.ParseCards(p.Cards)
		if err != nil {
			i.hub.SendError(c.roomID, c.playerID, codeInvalidCard, err.Error())
			return
		}
		i.bus.Publish(events.TryPlayMove{Base: base, Player: c.playerID, Cards: cards})

	case protocol.TypePass:
		i.bus.Publish(events.TryPass{Base: base, Player: c.playerID})

	case protocol.TypeStartGame:
		i.bus.Publish(events.TryStartGame{Base: base, Requester: c.playerID})

	case protocol.TypeLeave:
		i.bus.Publish(events.PlayerLeaveRequested{Base: base, Player: c.playerID})

	case protocol.TypeReady:
		p := protocol.ReadyPayload{Ready: true}
		_ = env.DecodePayload(&p) // bare READY means ready; repeats are no-ops
		if err := i.rooms.SetReady(c.roomID, c.playerID, p.Ready); err != nil {
			i.logger.Debug().Err(err).Str("room", c.roomID).Msg("ready toggle rejected")
		}

	default:
		i.hub.SendError(c.roomID, c.playerID, codeUnknownType, "unknown message type "+env.Type)
	}
}

// bearerToken pulls the session token from the upgrade request. The
// subprotocol header is the one browsers reliably forward; the
// Authorization header and a token query parameter serve native
// clients.
func bearerToken(r *http.Request) string {
	for _, part := range strings.Split(r.Header.Get("Sec-WebSocket-Protocol"), ",") {
		part = strings.TrimSpace(part)
		if part != "" && part != bearerProtocol {
			return part
		}
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
