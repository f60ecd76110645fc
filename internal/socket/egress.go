package socket

import (
	"context"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/mkchan/bigtwo/internal/bot"
	"github.com/mkchan/bigtwo/internal/card"
	"github.com/mkchan/bigtwo/internal/events"
	"github.com/mkchan/bigtwo/internal/gameflow"
	"github.com/mkchan/bigtwo/internal/identity"
	"github.com/mkchan/bigtwo/internal/protocol"
	"github.com/mkchan/bigtwo/internal/room"
	"github.com/mkchan/bigtwo/internal/stats"
)

// RoomSource is the read side of the room service egress needs.
type RoomSource interface {
	Get(roomID string) (room.Room, error)
}

// StatsSource serves ledger snapshots for STATS_UPDATED frames.
type StatsSource interface {
	RoomStats(roomID string) (stats.RoomStats, bool)
}

// BotSource lists a room's seated bots for the players list.
type BotSource interface {
	Bots(roomID string) []bot.Bot
}

// Egress renders state events into wire envelopes. Most frames
// broadcast; GAME_STARTED and reconnect snapshots carry a private
// hand and unicast.
type Egress struct {
	logger zerolog.Logger
	bus    *events.Bus
	hub    *Hub
	rooms  RoomSource
	ids    identity.NameResolver
	games  gameflow.GameView
	stats  StatsSource
	bots   BotSource
	clock  quartz.Clock
}

// NewEgress wires the fan-out subscriber.
func NewEgress(bus *events.Bus, hub *Hub, rooms RoomSource, ids identity.NameResolver, games gameflow.GameView, statsSrc StatsSource, bots BotSource, clock quartz.Clock, logger zerolog.Logger) *Egress {
	return &Egress{
		logger: logger.With().Str("component", "egress").Logger(),
		bus:    bus,
		hub:    hub,
		rooms:  rooms,
		ids:    ids,
		games:  games,
		stats:  statsSrc,
		bots:   bots,
		clock:  clock,
	}
}

// Run consumes a room's events until the room closes or ctx ends.
// Teardown drops every connection so clients see EOF rather than a
// silent room.
func (e *Egress) Run(ctx context.Context, roomID string) error {
	ch, cancel := e.bus.Subscribe(roomID, "egress")
	defer cancel()
	defer e.hub.CloseRoom(roomID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			e.handle(ev)
		}
	}
}

func (e *Egress) handle(ev events.Event) {
	roomID := ev.RoomID()
	switch ev := ev.(type) {
	case events.PlayerJoined, events.PlayerReadyToggled, events.PlayerDisconnected:
		e.broadcastPlayersList(roomID)

	case events.PlayerConnected:
		e.broadcastPlayersList(roomID)
		e.sendSnapshot(roomID, ev.Player)

	case events.PlayerLeft:
		e.broadcastPlayersList(roomID)

	case events.HostChanged:
		e.broadcast(roomID, protocol.TypeHostChange, protocol.HostChangePayload{Host: ev.NewHost})
		e.broadcastPlayersList(roomID)

	case events.BotAdded:
		e.broadcast(roomID, protocol.TypeBotAdded, protocol.BotPayload{BotID: ev.BotID, Name: ev.Name})
		e.broadcastPlayersList(roomID)

	case events.BotRemoved:
		e.broadcast(roomID, protocol.TypeBotRemoved, protocol.BotPayload{BotID: ev.BotID, Name: ev.Name})
		e.broadcastPlayersList(roomID)

	case events.ChatMessageReceived:
		name, _ := e.ids.Resolve(ev.Player)
		e.broadcast(roomID, protocol.TypeChat, protocol.ChatBroadcastPayload{
			Player:  ev.Player,
			Name:    name,
			Content: ev.Text,
		})

	case events.GameStarted:
		e.sendGameStarted(roomID, ev)

	case events.MovePlayed:
		e.broadcast(roomID, protocol.TypeMovePlayed, protocol.MovePlayedPayload{
			Player:    ev.Player,
			Cards:     card.Strings(ev.Cards),
			HandName:  ev.HandName,
			Remaining: ev.Remaining,
		})

	case events.Passed:
		e.broadcast(roomID, protocol.TypePassed, protocol.PassedPayload{
			Player:     ev.Player,
			TrickEnded: ev.TrickEnded,
		})

	case events.TurnChanged:
		e.broadcast(roomID, protocol.TypeTurnChange, protocol.TurnChangePayload{Player: ev.Player})

	case events.GameWon:
		e.broadcast(roomID, protocol.TypeGameWon, protocol.GameWonPayload{
			Winner:     ev.Winner,
			GameNumber: ev.GameNumber,
			CardCounts: ev.CardCounts,
		})

	case events.GameReset:
		e.broadcast(roomID, protocol.TypeGameReset, protocol.GameResetPayload{
			NextGameNumber: ev.NextGameNumber,
			Reason:         ev.Reason,
		})

	case events.StatsUpdated:
		if snap, ok := e.stats.RoomStats(roomID); ok {
			e.broadcast(roomID, protocol.TypeStatsUpdated, snap)
		}
	}
}

func (e *Egress) broadcast(roomID, msgType string, payload any) {
	env, err := protocol.NewEnvelope(msgType, payload, e.clock.Now())
	if err != nil {
		e.logger.Error().Err(err).Str("type", msgType).Msg("failed to build envelope")
		return
	}
	e.hub.Broadcast(roomID, env)
}

func (e *Egress) unicast(roomID, playerID, msgType string, payload any) {
	env, err := protocol.NewEnvelope(msgType, payload, e.clock.Now())
	if err != nil {
		e.logger.Error().Err(err).Str("type", msgType).Msg("failed to build envelope")
		return
	}
	e.hub.Unicast(roomID, playerID, env)
}

// broadcastPlayersList rebuilds and fans out the roster frame.
func (e *Egress) broadcastPlayersList(roomID string) {
	r, err := e.rooms.Get(roomID)
	if err != nil {
		return
	}

	bots := e.bots.Bots(roomID)
	botIDs := make([]string, len(bots))
	for i, b := range bots {
		botIDs[i] = b.ID
	}

	e.broadcast(roomID, protocol.TypePlayersList, protocol.PlayersListPayload{
		Players:   r.Players,
		Names:     e.ids.ResolveAll(r.Players),
		Bots:      botIDs,
		Ready:     r.Ready,
		Host:      r.Host,
		Connected: e.hub.Connected(roomID),
	})
}

// sendGameStarted unicasts each seat its private deal.
func (e *Egress) sendGameStarted(roomID string, ev events.GameStarted) {
	snap, ok := e.games.Snapshot(roomID)
	if !ok {
		e.logger.Warn().Str("room", roomID).Msg("game started but no snapshot available")
		return
	}

	for _, seat := range ev.Seats {
		if identity.IsBot(seat) {
			continue
		}
		hand, ok := e.games.HandOf(roomID, seat)
		if !ok {
			continue
		}
		e.unicast(roomID, seat, protocol.TypeGameStarted, protocol.GameStartedPayload{
			GameNumber:    ev.GameNumber,
			Seats:         ev.Seats,
			Hand:          card.Strings(hand),
			CardCounts:    snap.CardCounts,
			OpeningPlayer: ev.OpeningPlayer,
		})
	}
}

// sendSnapshot rebuilds a reconnecting client's view of a live game.
func (e *Egress) sendSnapshot(roomID, playerID string) {
	snap, ok := e.games.Snapshot(roomID)
	if !ok {
		return
	}
	hand, _ := e.games.HandOf(roomID, playerID)

	e.unicast(roomID, playerID, protocol.TypeSnapshot, protocol.SnapshotPayload{
		GameNumber: snap.GameNumber,
		Seats:      snap.Seats,
		Hand:       card.Strings(hand),
		CardCounts: snap.CardCounts,
		Turn:       snap.Turn,
		LastPlay:   card.Strings(snap.LastPlay),
		LastSeat:   snap.LastSeat,
	})
}
