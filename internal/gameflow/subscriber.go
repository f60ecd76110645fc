package gameflow

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkchan/bigtwo/internal/engine"
	"github.com/mkchan/bigtwo/internal/events"
	"github.com/mkchan/bigtwo/internal/identity"
	"github.com/mkchan/bigtwo/internal/room"
)

// resetDelay is how long a won game stays on screen before the room
// returns to the lobby.
const resetDelay = 5 * time.Second

// ErrorSink delivers a rejection to the one client whose request
// failed. Rule errors are never broadcast.
type ErrorSink interface {
	SendError(roomID, playerID, code, message string)
}

// Subscriber consumes a room's intent events and applies them to the
// rules engine. It is the only writer of game state.
type Subscriber struct {
	logger zerolog.Logger
	bus    *events.Bus
	games  *Service
	rooms  Rooms
	errs   ErrorSink
}

// NewSubscriber wires the game registry to the bus.
func NewSubscriber(bus *events.Bus, games *Service, rooms Rooms, errs ErrorSink, logger zerolog.Logger) *Subscriber {
	return &Subscriber{
		logger: logger.With().Str("component", "gameflow").Logger(),
		bus:    bus,
		games:  games,
		rooms:  rooms,
		errs:   errs,
	}
}

// Run consumes a room's events until the room closes or ctx ends.
func (s *Subscriber) Run(ctx context.Context, roomID string) error {
	ch, cancel := s.bus.Subscribe(roomID, "gameflow")
	defer cancel()
	defer s.teardown(roomID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(e)
		}
	}
}

func (s *Subscriber) teardown(roomID string) {
	if t := s.games.drop(roomID); t != nil {
		t.Stop()
	}
}

func (s *Subscriber) handle(e events.Event) {
	switch ev := e.(type) {
	case events.TryStartGame:
		s.startGame(ev)
	case events.TryPlayMove:
		s.playMove(ev)
	case events.TryPass:
		s.pass(ev)
	case events.PlayerLeaveRequested:
		s.leave(ev)
	case events.RoomDeleted:
		s.teardown(ev.RoomID())
	}
}

func (s *Subscriber) startGame(ev events.TryStartGame) {
	roomID := ev.RoomID()

	r, err := s.rooms.Get(roomID)
	if err != nil {
		s.errs.SendError(roomID, ev.Requester, CodeRoomNotReady, "room no longer exists")
		return
	}
	if r.Host != ev.Requester {
		s.errs.SendError(roomID, ev.Requester, CodeNotHost, "only the host can start the game")
		return
	}
	if r.Status == room.StatusPlaying {
		s.errs.SendError(roomID, ev.Requester, CodeGameInProgress, "a game is already in progress")
		return
	}
	if len(r.Players) != room.MaxPlayers {
		s.errs.SendError(roomID, ev.Requester, CodeRoomNotReady, "the table needs four players")
		return
	}
	for _, p := range r.Players {
		if !identity.IsBot(p) && !r.IsReady(p) {
			s.errs.SendError(roomID, ev.Requester, CodeRoomNotReady, "all players must be ready")
			return
		}
	}

	g, number, err := s.games.start(roomID, r.Players)
	if err != nil {
		s.logger.Error().Err(err).Str("room", roomID).Msg("failed to start game")
		s.errs.SendError(roomID, ev.Requester, CodeRoomNotReady, "could not start the game")
		return
	}
	if err := s.rooms.SetStatus(roomID, room.StatusPlaying); err != nil {
		s.logger.Error().Err(err).Str("room", roomID).Msg("failed to mark room playing")
	}

	s.logger.Info().
		Str("room", roomID).
		Int("game", number).
		Str("opening", g.Turn()).
		Msg("game started")

	s.bus.Publish(events.GameCreated{Base: events.In(roomID)})
	s.bus.Publish(events.GameStarted{
		Base:          events.In(roomID),
		GameNumber:    number,
		Seats:         g.Seats(),
		OpeningPlayer: g.Turn(),
	})
	s.bus.Publish(events.TurnChanged{Base: events.In(roomID), Player: g.Turn()})
}

func (s *Subscriber) playMove(ev events.TryPlayMove) {
	roomID := ev.RoomID()

	g, result, err := s.games.applyMove(roomID, ev.Player, ev.Cards)
	if errors.Is(err, ErrNoGame) {
		s.errs.SendError(roomID, ev.Player, CodeNoGame, "no game in progress")
		return
	}
	if err != nil {
		s.rejectRule(roomID, ev.Player, err)
		return
	}

	s.bus.Publish(events.MovePlayed{
		Base:      events.In(roomID),
		Player:    ev.Player,
		Cards:     result.Hand.Cards,
		HandName:  result.Hand.Kind.String(),
		Remaining: result.Remaining,
	})

	if result.Won {
		s.win(roomID, ev.Player, g)
		return
	}
	s.bus.Publish(events.TurnChanged{Base: events.In(roomID), Player: result.NextTurn})
}

func (s *Subscriber) pass(ev events.TryPass) {
	roomID := ev.RoomID()

	result, err := s.games.applyPass(roomID, ev.Player)
	if errors.Is(err, ErrNoGame) {
		s.errs.SendError(roomID, ev.Player, CodeNoGame, "no game in progress")
		return
	}
	if err != nil {
		s.rejectRule(roomID, ev.Player, err)
		return
	}

	s.bus.Publish(events.Passed{
		Base:       events.In(roomID),
		Player:     ev.Player,
		TrickEnded: result.TrickEnded,
	})
	s.bus.Publish(events.TurnChanged{Base: events.In(roomID), Player: result.NextTurn})
}

// win closes out a finished game and schedules the lobby reset.
func (s *Subscriber) win(roomID, winner string, g *engine.Game) {
	counts := g.CardCounts()
	number := g.GameNumber()
	next := s.games.finish(roomID, winner)

	s.logger.Info().
		Str("room", roomID).
		Int("game", number).
		Str("winner", winner).
		Msg("game won")

	s.bus.Publish(events.GameWon{
		Base:       events.In(roomID),
		Winner:     winner,
		GameNumber: number,
		CardCounts: counts,
	})

	timer := s.games.clock.AfterFunc(resetDelay, func() {
		if s.games.takeResetTimer(roomID) == nil {
			return
		}
		s.reset(roomID, next, "")
	})
	s.games.setResetTimer(roomID, timer)
}

// reset returns a room to the lobby.
func (s *Subscriber) reset(roomID string, nextNumber int, reason string) {
	if err := s.rooms.SetStatus(roomID, room.StatusWaiting); err != nil && !errors.Is(err, room.ErrNotFound) {
		s.logger.Warn().Err(err).Str("room", roomID).Msg("failed to reset room status")
	}
	s.bus.Publish(events.GameReset{
		Base:           events.In(roomID),
		NextGameNumber: nextNumber,
		Reason:         reason,
	})
}

// leave aborts any live game, cancels a pending reset and removes the
// player from the room.
func (s *Subscriber) leave(ev events.PlayerLeaveRequested) {
	roomID := ev.RoomID()

	pendingReset := false
	if t := s.games.takeResetTimer(roomID); t != nil {
		t.Stop()
		pendingReset = true
	}

	if g, ok := s.games.get(roomID); ok && g.HandOf(ev.Player) != nil {
		s.games.abort(roomID)
		s.logger.Info().
			Str("room", roomID).
			Str("player", ev.Player).
			Msg("game aborted, player left")
		s.reset(roomID, g.GameNumber(), "player left")
	} else if pendingReset {
		// The countdown was cancelled; put the room back in the
		// lobby now rather than never.
		s.reset(roomID, s.games.nextNumber(roomID), "player left")
	}

	if err := s.rooms.Leave(roomID, ev.Player); err != nil && !errors.Is(err, room.ErrNotFound) {
		s.logger.Warn().Err(err).
			Str("room", roomID).
			Str("player", ev.Player).
			Msg("leave failed")
	}
}

func (s *Subscriber) rejectRule(roomID, playerID string, err error) {
	if re, ok := engine.AsRuleError(err); ok {
		s.errs.SendError(roomID, playerID, string(re.Code), re.Message)
		return
	}
	s.logger.Error().Err(err).Str("room", roomID).Msg("unexpected engine error")
	s.errs.SendError(roomID, playerID, CodeNoGame, err.Error())
}
