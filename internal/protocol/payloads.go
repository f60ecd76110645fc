package protocol

// Client to server payloads.

// ChatPayload is a chat line from a client.
type ChatPayload struct {
	Content string `json:"content"`
}

// MovePayload is a played card set in wire form, e.g. ["3d","3h"].
// An empty or absent card list is rejected; passing uses PASS.
type MovePayload struct {
	Cards []string `json:"cards"`
}

// ReadyPayload toggles the sender's lobby ready mark.
type ReadyPayload struct {
	Ready bool `json:"ready"`
}

// Server to client payloads.

// PlayersListPayload describes the current roster.
type PlayersListPayload struct {
	Players   []string          `json:"players"` // join order
	Names     map[string]string `json:"names"`
	Bots      []string          `json:"bots"`
	Ready     []string          `json:"ready"`
	Host      string            `json:"host"`
	Connected []string          `json:"connected"`
}

// HostChangePayload announces the new host.
type HostChangePayload struct {
	Host string `json:"host"`
}

// ChatBroadcastPayload is a chat line fanned out to the room.
type ChatBroadcastPayload struct {
	Player  string `json:"player"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// GameStartedPayload is unicast per player: each sees only their own
// hand plus the public seat order and card counts.
type GameStartedPayload struct {
	GameNumber    int            `json:"game_number"`
	Seats         []string       `json:"seats"`
	Hand          []string       `json:"hand"`
	CardCounts    map[string]int `json:"card_counts"`
	OpeningPlayer string         `json:"opening_player"`
}

// MovePlayedPayload announces a successful play.
type MovePlayedPayload struct {
	Player    string   `json:"player"`
	Cards     []string `json:"cards"`
	HandName  string   `json:"hand_name"`
	Remaining int      `json:"remaining"`
}

// PassedPayload announces a pass.
type PassedPayload struct {
	Player     string `json:"player"`
	TrickEnded bool   `json:"trick_ended"`
}

// TurnChangePayload announces the next player to act.
type TurnChangePayload struct {
	Player string `json:"player"`
}

// GameWonPayload announces the winner and everyone's leftover counts.
type GameWonPayload struct {
	Winner     string         `json:"winner"`
	GameNumber int            `json:"game_number"`
	CardCounts map[string]int `json:"card_counts"`
}

// GameResetPayload announces the room returning to the lobby.
type GameResetPayload struct {
	NextGameNumber int    `json:"next_game_number"`
	Reason         string `json:"reason,omitempty"`
}

// BotPayload announces a bot joining or leaving.
type BotPayload struct {
	BotID string `json:"bot_id"`
	Name  string `json:"name"`
}

// SnapshotPayload is unicast on (re)connect while a game is live so
// the client can rebuild its view.
type SnapshotPayload struct {
	GameNumber int            `json:"game_number"`
	Seats      []string       `json:"seats"`
	Hand       []string       `json:"hand"`
	CardCounts map[string]int `json:"card_counts"`
	Turn       string         `json:"turn"`
	LastPlay   []string       `json:"last_play,omitempty"`
	LastSeat   string         `json:"last_seat,omitempty"`
}

// ErrorPayload is unicast to the client whose request failed.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
