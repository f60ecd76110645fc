// Package gameflow drives games from the event bus. One subscriber
// goroutine per room consumes intent events and owns every mutation
// of that room's game; everything else observes the facts it emits.
package gameflow

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/mkchan/bigtwo/internal/card"
	"github.com/mkchan/bigtwo/internal/engine"
	"github.com/mkchan/bigtwo/internal/hand"
	"github.com/mkchan/bigtwo/internal/room"
)

// Error codes for rejected start requests; engine codes cover moves.
const (
	CodeNotHost        = "NOT_HOST"
	CodeRoomNotReady   = "ROOM_NOT_READY"
	CodeGameInProgress = "GAME_IN_PROGRESS"
	CodeNoGame         = "NO_GAME"
)

// ResetDelay is how long a finished game lingers before the room
// returns to the lobby.
const ResetDelay = resetDelay

// ErrNoGame reports an action against a room with no live game.
var ErrNoGame = errors.New("no game in progress")

// GameView is the read side of the game registry. Egress uses it to
// build private hands and reconnect snapshots; bots use it to choose
// moves.
type GameView interface {
	HandOf(roomID, playerID string) ([]card.Card, bool)
	Snapshot(roomID string) (engine.Snapshot, bool)
	LastPlay(roomID string) (lastSize int, beats func(cards []card.Card) bool, live bool)
	MustIncludeOpening(roomID string) bool
}

// Rooms is the slice of the room service gameflow needs.
type Rooms interface {
	Get(roomID string) (room.Room, error)
	SetStatus(roomID string, status room.Status) error
	Leave(roomID, playerID string) error
}

type gameState struct {
	game       *engine.Game
	nextNumber int    // next game to deal in this room
	lastWinner string // opens the next game; empty before game one ends
	resetTimer *quartz.Timer
}

// Service is the per-process game registry. The room's subscriber
// goroutine is the only writer and mutates games through applyMove and
// applyPass, which hold the write lock; the view methods take the read
// lock, so egress snapshots and bot hand lookups on other goroutines
// never observe a half-applied move.
type Service struct {
	logger zerolog.Logger
	rooms  Rooms
	clock  quartz.Clock

	mu    sync.RWMutex
	games map[string]*gameState
	rng   *rand.Rand
}

// NewService creates an empty game registry. The rand source seeds
// every deal; pass a seeded source for deterministic games.
func NewService(rooms Rooms, clock quartz.Clock, rng *rand.Rand, logger zerolog.Logger) *Service {
	return &Service{
		logger: logger.With().Str("component", "gameflow").Logger(),
		rooms:  rooms,
		clock:  clock,
		games:  make(map[string]*gameState),
		rng:    rng,
	}
}

// start deals and registers a game for a room, returning the fresh
// engine state. Validation against the room roster happens in the
// subscriber before this is called.
func (s *Service) start(roomID string, seats []string) (*engine.Game, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.games[roomID]
	if !ok {
		st = &gameState{nextNumber: 1}
		s.games[roomID] = st
	}
	if st.game != nil {
		return nil, 0, fmt.Errorf("room %s already has a game", roomID)
	}

	deck := card.NewDeck(s.rng)
	deck.Shuffle()
	dealt := deck.DealHands()

	hands := make(map[string][]card.Card, len(seats))
	for i, seat := range seats {
		hands[seat] = dealt[i]
	}

	opener := ""
	if st.nextNumber > 1 {
		opener = st.lastWinner
	}
	g, err := engine.NewGame(seats, hands, st.nextNumber, opener)
	if err != nil {
		return nil, 0, err
	}

	st.game = g
	return g, st.nextNumber, nil
}

// get returns the live game for a room.
func (s *Service) get(roomID string) (*engine.Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.games[roomID]
	if !ok || st.game == nil {
		return nil, false
	}
	return st.game, true
}

// applyMove runs a move against the live game under the write lock.
// The game is returned for the caller's post-win bookkeeping.
func (s *Service) applyMove(roomID, player string, cards []card.Card) (*engine.Game, engine.MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.games[roomID]
	if !ok || st.game == nil {
		return nil, engine.MoveResult{}, ErrNoGame
	}
	result, err := st.game.ApplyMove(player, cards)
	return st.game, result, err
}

// applyPass runs a pass against the live game under the write lock.
func (s *Service) applyPass(roomID, player string) (engine.PassResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.games[roomID]
	if !ok || st.game == nil {
		return engine.PassResult{}, ErrNoGame
	}
	return st.game.ApplyPass(player)
}

// finish records the winner and clears the live game, returning the
// game number the next deal will carry.
func (s *Service) finish(roomID, winner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.games[roomID]
	if !ok || st.game == nil {
		return 0
	}
	st.game = nil
	st.lastWinner = winner
	st.nextNumber++
	return st.nextNumber
}

// abort throws the live game away without recording a winner.
func (s *Service) abort(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.games[roomID]
	if !ok || st.game == nil {
		return false
	}
	st.game = nil
	return true
}

// drop forgets a room entirely, returning any pending reset timer for
// the caller to stop.
func (s *Service) drop(roomID string) *quartz.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.games[roomID]
	if !ok {
		return nil
	}
	delete(s.games, roomID)
	return st.resetTimer
}

// nextNumber returns the number the room's next deal will carry.
func (s *Service) nextNumber(roomID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.games[roomID]; ok {
		return st.nextNumber
	}
	return 1
}

func (s *Service) setResetTimer(roomID string, t *quartz.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.games[roomID]; ok {
		st.resetTimer = t
	}
}

func (s *Service) takeResetTimer(roomID string) *quartz.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.games[roomID]
	if !ok || st.resetTimer == nil {
		return nil
	}
	t := st.resetTimer
	st.resetTimer = nil
	return t
}

// HandOf returns a copy of a player's current hand.
func (s *Service) HandOf(roomID, playerID string) ([]card.Card, bool) {
	g, ok := s.get(roomID)
	if !ok {
		return nil, false
	}
	hand := g.HandOf(playerID)
	if hand == nil {
		return nil, false
	}
	return hand, true
}

// Snapshot returns the public view of a room's live game.
func (s *Service) Snapshot(roomID string) (engine.Snapshot, bool) {
	g, ok := s.get(roomID)
	if !ok {
		return engine.Snapshot{}, false
	}
	return g.Snapshot(), true
}

// LastPlay describes the hand to beat. The returned closure reports
// whether a candidate card set would beat it; live is false when the
// trick is empty and any legal hand may lead.
func (s *Service) LastPlay(roomID string) (int, func([]card.Card) bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.games[roomID]
	if !ok || st.game == nil {
		return 0, nil, false
	}
	last, _, live := st.game.LastPlay()
	if !live {
		return 0, nil, false
	}
	beats := func(cards []card.Card) bool {
		h, err := hand.Classify(cards)
		if err != nil || h.Size() != last.Size() {
			return false
		}
		return hand.Beats(h, last)
	}
	return last.Size(), beats, true
}

// MustIncludeOpening reports whether the room's game still awaits the
// three-of-diamonds opening move.
func (s *Service) MustIncludeOpening(roomID string) bool {
	g, ok := s.get(roomID)
	if !ok {
		return false
	}
	return g.MustIncludeOpening()
}
