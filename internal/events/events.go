// Package events defines the room event set and the in-process bus
// that fans events out to subscribers.
//
// Events split into intents (requests raised by ingress on behalf of a
// client) and facts (state changes announced by the services that made
// them). Subscribers consume events and call services; they never
// republish the event they are handling.
package events

import "github.com/mkchan/bigtwo/internal/card"

// Event is implemented by the types in this package; the unexported
// marker method keeps the set closed to outside implementations.
type Event interface {
	RoomID() string
	Type() string
	isEvent()
}

// Base carries the room an event belongs to and is embedded by every
// event type.
type Base struct {
	Room string
}

// RoomID returns the room the event belongs to.
func (b Base) RoomID() string { return b.Room }

func (b Base) isEvent() {}

// In builds the Base for a room: events.TryPass{Base: events.In(room)}.
func In(roomID string) Base {
	return Base{Room: roomID}
}

// Intent events.

// TryStartGame asks for the room's game to begin.
type TryStartGame struct {
	Base
	Requester string
}

// TryPlayMove asks for a card set to be played.
type TryPlayMove struct {
	Base
	Player string
	Cards  []card.Card
}

// TryPass asks for the acting player to pass.
type TryPass struct {
	Base
	Player string
}

// PlayerLeaveRequested asks for a player to be removed from the room.
type PlayerLeaveRequested struct {
	Base
	Player string
}

// ChatMessageReceived carries a chat line for broadcast.
type ChatMessageReceived struct {
	Base
	Player string
	Text   string
}

// PlayerReadyToggled records a ready checkbox flip in the lobby.
type PlayerReadyToggled struct {
	Base
	Player string
	Ready  bool
}

// State events.

// PlayerJoined announces a new room member.
type PlayerJoined struct {
	Base
	Player string
}

// PlayerLeft announces a departed member and any host handover.
type PlayerLeft struct {
	Base
	Player  string
	WasHost bool
	NewHost string
}

// HostChanged announces a new room host.
type HostChanged struct {
	Base
	NewHost string
}

// PlayerConnected announces a live socket for a member.
type PlayerConnected struct {
	Base
	Player string
}

// PlayerDisconnected announces a dropped socket. The member keeps
// their seat and may reconnect.
type PlayerDisconnected struct {
	Base
	Player string
}

// GameCreated announces that a deal has been registered for the room,
// just before GameStarted carries the public details.
type GameCreated struct {
	Base
}

// GameStarted announces a dealt game. Hands are not carried here;
// consumers that may see a hand fetch it through a game view.
type GameStarted struct {
	Base
	GameNumber    int
	Seats         []string
	OpeningPlayer string
}

// MovePlayed announces a successful play.
type MovePlayed struct {
	Base
	Player    string
	Cards     []card.Card
	HandName  string
	Remaining int
}

// TurnChanged announces the next player to act.
type TurnChanged struct {
	Base
	Player string
}

// Passed announces a pass; TrickEnded marks the pass that killed the
// trick, handing the lead to the last played hand.
type Passed struct {
	Base
	Player     string
	TrickEnded bool
}

// GameWon announces a finished game. CardCounts holds every seat's
// remaining cards so the stats pipeline can score without touching
// game state that the reset timer is about to replace.
type GameWon struct {
	Base
	Winner     string
	GameNumber int
	CardCounts map[string]int
}

// GameReset announces the room returning to the lobby.
type GameReset struct {
	Base
	NextGameNumber int
	Reason         string
}

// StatsUpdated announces fresh room statistics.
type StatsUpdated struct {
	Base
}

// BotAdded announces a bot taking a seat.
type BotAdded struct {
	Base
	BotID string
	Name  string
}

// BotRemoved announces a bot leaving a seat.
type BotRemoved struct {
	Base
	BotID string
	Name  string
}

// RoomDeleted announces room teardown; subscribers drop their state.
type RoomDeleted struct {
	Base
}

func (TryStartGame) Type() string         { return "try_start_game" }
func (TryPlayMove) Type() string          { return "try_play_move" }
func (TryPass) Type() string              { return "try_pass" }
func (PlayerLeaveRequested) Type() string { return "player_leave_requested" }
func (ChatMessageReceived) Type() string  { return "chat_message_received" }
func (PlayerReadyToggled) Type() string   { return "player_ready_toggled" }
func (PlayerJoined) Type() string         { return "player_joined" }
func (PlayerLeft) Type() string           { return "player_left" }
func (HostChanged) Type() string          { return "host_changed" }
func (PlayerConnected) Type() string      { return "player_connected" }
func (PlayerDisconnected) Type() string   { return "player_disconnected" }
func (GameCreated) Type() string          { return "game_created" }
func (GameStarted) Type() string          { return "game_started" }
func (MovePlayed) Type() string           { return "move_played" }
func (TurnChanged) Type() string          { return "turn_changed" }
func (Passed) Type() string               { return "passed" }
func (GameWon) Type() string              { return "game_won" }
func (GameReset) Type() string            { return "game_reset" }
func (StatsUpdated) Type() string         { return "stats_updated" }
func (BotAdded) Type() string             { return "bot_added" }
func (BotRemoved) Type() string           { return "bot_removed" }
func (RoomDeleted) Type() string          { return "room_deleted" }
