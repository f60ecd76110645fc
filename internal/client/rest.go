package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Session is the credentials response from POST /session.
type Session struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	Username  string `json:"username"`
	PlayerID  string `json:"player_id"`
}

// Room is the full room view from the room endpoints.
type Room struct {
	ID      string            `json:"id"`
	Host    string            `json:"host"`
	Players []string          `json:"players"`
	Names   map[string]string `json:"names"`
	Ready   []string          `json:"ready"`
	Status  string            `json:"status"`
}

// RoomSummary is one row of GET /rooms.
type RoomSummary struct {
	ID          string `json:"id"`
	Host        string `json:"host"`
	PlayerCount int    `json:"player_count"`
	Status      string `json:"status"`
}

// Bot is the response from adding a bot.
type Bot struct {
	ID         string `json:"bot_id"`
	Name       string `json:"name"`
	Difficulty string `json:"difficulty"`
}

// PlayerTotals is one player's running tally in a room ledger.
type PlayerTotals struct {
	Player        string `json:"player"`
	GamesPlayed   int    `json:"games_played"`
	Score         int    `json:"score"`
	Wins          int    `json:"wins"`
	CurrentStreak int    `json:"current_streak"`
	BestStreak    int    `json:"best_streak"`
}

// RoomStats is the per-room ledger from GET /room/{id}/stats.
type RoomStats struct {
	Room        string         `json:"room"`
	GamesPlayed int            `json:"games_played"`
	Players     []PlayerTotals `json:"players"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// REST talks to the server's HTTP API. It is safe for concurrent use
// once the session is set.
type REST struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *log.Logger
}

// NewREST creates a REST client against a server base URL.
func NewREST(cfg Config, logger *log.Logger) *REST {
	return &REST{
		baseURL: cfg.Server.URL,
		http: &http.Client{
			Timeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
		},
		logger: logger.WithPrefix("rest"),
	}
}

// BaseURL returns the server base URL the client was built with.
func (r *REST) BaseURL() string {
	return r.baseURL
}

// SetToken attaches a session token to subsequent requests.
func (r *REST) SetToken(token string) {
	r.token = token
}

// Token returns the current session token.
func (r *REST) Token() string {
	return r.token
}

// NewSession creates an anonymous session and adopts its token.
func (r *REST) NewSession(ctx context.Context) (Session, error) {
	var sess Session
	if err := r.do(ctx, http.MethodPost, "/session", nil, &sess); err != nil {
		return Session{}, err
	}
	r.token = sess.Token
	return sess, nil
}

// ValidateSession checks the current token against the server and
// returns the identity behind it.
func (r *REST) ValidateSession(ctx context.Context) (Session, error) {
	var body struct {
		Valid    bool   `json:"valid"`
		Username string `json:"username"`
		PlayerID string `json:"player_id"`
	}
	if err := r.do(ctx, http.MethodGet, "/session/validate", nil, &body); err != nil {
		return Session{}, err
	}
	return Session{
		Token:    r.token,
		Username: body.Username,
		PlayerID: body.PlayerID,
	}, nil
}

// CreateRoom opens a new room with the caller as host.
func (r *REST) CreateRoom(ctx context.Context) (Room, error) {
	var rm Room
	err := r.do(ctx, http.MethodPost, "/room", nil, &rm)
	return rm, err
}

// Rooms lists the open rooms.
func (r *REST) Rooms(ctx context.Context) ([]RoomSummary, error) {
	var out []RoomSummary
	err := r.do(ctx, http.MethodGet, "/rooms", nil, &out)
	return out, err
}

// Room fetches one room.
func (r *REST) Room(ctx context.Context, roomID string) (Room, error) {
	var rm Room
	err := r.do(ctx, http.MethodGet, "/room/"+roomID, nil, &rm)
	return rm, err
}

// JoinRoom takes a seat in a room.
func (r *REST) JoinRoom(ctx context.Context, roomID string) (Room, error) {
	var body struct {
		Room Room `json:"room"`
	}
	err := r.do(ctx, http.MethodPost, "/room/"+roomID+"/join", nil, &body)
	return body.Room, err
}

// DeleteRoom closes a room. Host only.
func (r *REST) DeleteRoom(ctx context.Context, roomID string) error {
	return r.do(ctx, http.MethodDelete, "/room/"+roomID, nil, nil)
}

// AddBot seats a bot in a room. Host only.
func (r *REST) AddBot(ctx context.Context, roomID, difficulty string) (Bot, error) {
	var b Bot
	var body any
	if difficulty != "" {
		body = map[string]string{"difficulty": difficulty}
	}
	err := r.do(ctx, http.MethodPost, "/room/"+roomID+"/bot/add", body, &b)
	return b, err
}

// RemoveBot unseats a bot. Host only.
func (r *REST) RemoveBot(ctx context.Context, roomID, botID string) error {
	return r.do(ctx, http.MethodDelete, "/room/"+roomID+"/bot/"+botID, nil, nil)
}

// RoomStats fetches a room's ledger.
func (r *REST) RoomStats(ctx context.Context, roomID string) (RoomStats, error) {
	var out RoomStats
	err := r.do(ctx, http.MethodGet, "/room/"+roomID+"/stats", nil, &out)
	return out, err
}

func (r *REST) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	r.logger.Debug("request", "method", method, "path", path)
	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
