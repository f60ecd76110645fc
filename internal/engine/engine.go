// Package engine implements the Big Two trick state machine.
//
// A Game is pure state: no I/O, no clock, no locks. All mutation goes
// through ApplyMove and ApplyPass, which either update the game and
// return a result or leave it untouched and return a RuleError. The
// caller is responsible for confining a Game to a single goroutine.
package engine

import (
	"errors"
	"fmt"

	"github.com/mkchan/bigtwo/internal/card"
	"github.com/mkchan/bigtwo/internal/hand"
)

// Game holds the live state of a single Big Two game.
type Game struct {
	seats      []string
	hands      map[string][]card.Card
	turn       int
	lastPlay   *hand.Hand
	lastSeat   int
	passes     int
	gameNumber int
	firstMove  bool
	winner     string
}

// MoveResult describes a successfully applied move.
type MoveResult struct {
	Hand      hand.Hand
	Remaining int
	Won       bool
	NextTurn  string // empty once the game is won
}

// PassResult describes a successfully applied pass.
type PassResult struct {
	TrickEnded bool
	NextTurn   string
}

// Snapshot is a read-only view of the game for clients.
type Snapshot struct {
	GameNumber int
	Seats      []string
	CardCounts map[string]int
	Turn       string
	LastPlay   []card.Card // nil when the trick is empty
	LastSeat   string
}

// NewGame starts a game with the given seat order and dealt hands.
// For a room's first game pass opener as the empty string: the seat
// holding the three of diamonds opens and must include it in the
// opening play. For later games pass the previous winner as opener.
func NewGame(seats []string, hands map[string][]card.Card, gameNumber int, opener string) (*Game, error) {
	if len(seats) != card.Seats {
		return nil, fmt.Errorf("a game needs exactly %d seats, got %d", card.Seats, len(seats))
	}

	unique := make(map[string]bool, len(seats))
	for _, seat := range seats {
		if seat == "" {
			return nil, errors.New("empty seat id")
		}
		if unique[seat] {
			return nil, fmt.Errorf("duplicate seat %s", seat)
		}
		unique[seat] = true
		if len(hands[seat]) != card.HandSize {
			return nil, fmt.Errorf("seat %s dealt %d cards, want %d", seat, len(hands[seat]), card.HandSize)
		}
	}

	g := &Game{
		seats:      append([]string(nil), seats...),
		hands:      make(map[string][]card.Card, len(seats)),
		gameNumber: gameNumber,
		lastSeat:   -1,
	}
	for _, seat := range seats {
		g.hands[seat] = card.Sorted(hands[seat])
	}

	if opener == "" {
		g.firstMove = true
		g.turn = -1
		for i, seat := range seats {
			if card.Contains(g.hands[seat], card.ThreeOfDiamonds) {
				g.turn = i
				break
			}
		}
		if g.turn < 0 {
			return nil, errors.New("no seat holds the three of diamonds")
		}
		return g, nil
	}

	g.turn = -1
	for i, seat := range seats {
		if seat == opener {
			g.turn = i
			break
		}
	}
	if g.turn < 0 {
		return nil, fmt.Errorf("opener %s is not seated", opener)
	}
	return g, nil
}

// ApplyMove validates and applies a played card set for a player.
func (g *Game) ApplyMove(playerID string, cards []card.Card) (MoveResult, error) {
	if g.winner != "" {
		return MoveResult{}, ruleError(CodeGameOver, "the game is over")
	}
	if g.seats[g.turn] != playerID {
		return MoveResult{}, ruleError(CodeNotYourTurn, "it is not your turn")
	}
	if !card.ContainsAll(g.hands[playerID], cards) {
		return MoveResult{}, ruleError(CodeDontOwnCards, "you do not hold those cards")
	}

	played, err := hand.Classify(cards)
	if err != nil {
		if errors.Is(err, hand.ErrCardCount) {
			return MoveResult{}, ruleError(CodeWrongCardCount, "%s", err.Error())
		}
		return MoveResult{}, ruleError(CodeInvalidHand, "%s", err.Error())
	}

	if g.firstMove && !card.Contains(cards, card.ThreeOfDiamonds) {
		return MoveResult{}, ruleError(CodeMustIncludeLowest, "the opening play must include the three of diamonds")
	}

	if g.lastPlay != nil {
		if played.Size() != g.lastPlay.Size() {
			return MoveResult{}, ruleError(CodeWrongCardCount,
				"the trick is %d cards, you played %d", g.lastPlay.Size(), played.Size())
		}
		if !hand.Beats(played, *g.lastPlay) {
			return MoveResult{}, ruleError(CodeCannotBeatLastHand,
				"%s does not beat %s", played, g.lastPlay)
		}
	}

	g.hands[playerID] = card.Remove(g.hands[playerID], cards)
	g.lastPlay = &played
	g.lastSeat = g.turn
	g.passes = 0
	g.firstMove = false

	result := MoveResult{
		Hand:      played,
		Remaining: len(g.hands[playerID]),
	}

	if result.Remaining == 0 {
		g.winner = playerID
		result.Won = true
		return result, nil
	}

	g.advanceTurn()
	result.NextTurn = g.seats[g.turn]
	return result, nil
}

// ApplyPass validates and applies a pass for a player. Passing is
// never legal for the trick leader; when every other seat has passed
// the trick dies and the seat that played the last hand leads fresh.
func (g *Game) ApplyPass(playerID string) (PassResult, error) {
	if g.winner != "" {
		return PassResult{}, ruleError(CodeGameOver, "the game is over")
	}
	if g.seats[g.turn] != playerID {
		return PassResult{}, ruleError(CodeNotYourTurn, "it is not your turn")
	}
	if g.lastPlay == nil {
		return PassResult{}, ruleError(CodeLeaderCannotPass, "the trick leader must play")
	}

	g.passes++
	g.advanceTurn()

	result := PassResult{NextTurn: g.seats[g.turn]}
	if g.passes >= g.activeSeats()-1 {
		g.lastPlay = nil
		g.passes = 0
		g.turn = g.lastSeat
		result.TrickEnded = true
		result.NextTurn = g.seats[g.turn]
	}
	return result, nil
}

// advanceTurn moves to the next seat still holding cards.
func (g *Game) advanceTurn() {
	for i := 0; i < len(g.seats); i++ {
		g.turn = (g.turn + 1) % len(g.seats)
		if len(g.hands[g.seats[g.turn]]) > 0 {
			return
		}
	}
}

func (g *Game) activeSeats() int {
	n := 0
	for _, seat := range g.seats {
		if len(g.hands[seat]) > 0 {
			n++
		}
	}
	return n
}

// Turn returns the player to act.
func (g *Game) Turn() string {
	return g.seats[g.turn]
}

// Winner returns the winning player once a hand has been emptied.
func (g *Game) Winner() (string, bool) {
	return g.winner, g.winner != ""
}

// GameNumber returns the sequence number of this game within its room.
func (g *Game) GameNumber() int {
	return g.gameNumber
}

// Seats returns the seat order.
func (g *Game) Seats() []string {
	return append([]string(nil), g.seats...)
}

// HandOf returns a copy of a player's remaining cards.
func (g *Game) HandOf(playerID string) []card.Card {
	return append([]card.Card(nil), g.hands[playerID]...)
}

// CardCounts returns the number of cards each seat still holds.
func (g *Game) CardCounts() map[string]int {
	counts := make(map[string]int, len(g.seats))
	for _, seat := range g.seats {
		counts[seat] = len(g.hands[seat])
	}
	return counts
}

// LastPlay returns the hand on the table and the seat that played it.
func (g *Game) LastPlay() (hand.Hand, string, bool) {
	if g.lastPlay == nil {
		return hand.Hand{}, "", false
	}
	return *g.lastPlay, g.seats[g.lastSeat], true
}

// TrickLeader reports whether playerID leads a fresh trick.
func (g *Game) TrickLeader(playerID string) bool {
	return g.lastPlay == nil && g.seats[g.turn] == playerID
}

// MustIncludeOpening reports whether the next move still has to
// include the three of diamonds.
func (g *Game) MustIncludeOpening() bool {
	return g.firstMove
}

// Snapshot returns a client-safe view of the game. Hands are not
// included; use HandOf for the single hand a client may see.
func (g *Game) Snapshot() Snapshot {
	snap := Snapshot{
		GameNumber: g.gameNumber,
		Seats:      g.Seats(),
		CardCounts: g.CardCounts(),
		Turn:       g.seats[g.turn],
	}
	if g.lastPlay != nil {
		snap.LastPlay = append([]card.Card(nil), g.lastPlay.Cards...)
		snap.LastSeat = g.seats[g.lastSeat]
	}
	return snap
}
