// Package rest serves the HTTP API: sessions, rooms, bots and stats.
// The WebSocket upgrade lives in internal/socket; everything here is
// plain request/response JSON.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mkchan/bigtwo/internal/bot"
	"github.com/mkchan/bigtwo/internal/room"
	"github.com/mkchan/bigtwo/internal/session"
	"github.com/mkchan/bigtwo/internal/stats"
)

// Sessions is the slice of the session service the API needs.
type Sessions interface {
	Create(ctx context.Context) (session.Credentials, error)
	Validate(ctx context.Context, token string) (session.Identity, error)
}

// Rooms is the slice of the room service the API needs. Creation
// goes through the opener so the caller can attach room lifecycle
// work (subscriber goroutines) to it.
type Rooms interface {
	Get(roomID string) (room.Room, error)
	List() []room.Room
	Join(roomID, playerID string) (room.Room, error)
	Delete(roomID, requesterID string) error
}

// RoomOpener creates a room with its subscriber set running.
type RoomOpener interface {
	OpenRoom(hostID string) room.Room
}

// Bots is the slice of the bot manager the API needs.
type Bots interface {
	Add(roomID, requesterID, difficulty string) (bot.Bot, error)
	Remove(roomID, requesterID, botID string) error
}

// Stats serves per-room ledgers.
type Stats interface {
	RoomStats(roomID string) (stats.RoomStats, bool)
}

// NameResolver maps player IDs to display names for room payloads.
type NameResolver interface {
	ResolveAll(ids []string) map[string]string
}

// API carries the handler dependencies.
type API struct {
	logger   zerolog.Logger
	sessions Sessions
	rooms    Rooms
	opener   RoomOpener
	bots     Bots
	stats    Stats
	names    NameResolver

	allowedOrigins []string
}

// New wires the REST API.
func New(sessions Sessions, rooms Rooms, opener RoomOpener, bots Bots, statsSrc Stats, names NameResolver, allowedOrigins []string, logger zerolog.Logger) *API {
	return &API{
		logger:         logger.With().Str("component", "rest").Logger(),
		sessions:       sessions,
		rooms:          rooms,
		opener:         opener,
		bots:           bots,
		stats:          statsSrc,
		names:          names,
		allowedOrigins: allowedOrigins,
	}
}

// Routes registers every endpoint on mux.
func (a *API) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("POST /session", a.handleCreateSession)
	mux.Handle("GET /session/validate", a.authed(a.handleValidateSession))
	mux.Handle("POST /room", a.authed(a.handleCreateRoom))
	mux.HandleFunc("GET /rooms", a.handleListRooms)
	mux.HandleFunc("GET /room/{id}", a.handleGetRoom)
	mux.HandleFunc("GET /room/{id}/stats", a.handleRoomStats)
	mux.Handle("POST /room/{id}/join", a.authed(a.handleJoinRoom))
	mux.Handle("DELETE /room/{id}", a.authed(a.handleDeleteRoom))
	mux.Handle("POST /room/{id}/bot/add", a.authed(a.handleAddBot))
	mux.Handle("DELETE /room/{id}/bot/{bot_id}", a.authed(a.handleRemoveBot))
}

// Handler returns the routed handler wrapped in logging and CORS.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.Routes(mux)
	return a.Wrap(mux)
}

// Wrap applies the logging and CORS middleware to any handler, so the
// server can mount extra routes (the WebSocket upgrade) on the same
// middleware chain.
func (a *API) Wrap(h http.Handler) http.Handler {
	return a.logRequests(a.cors(h))
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	creds, err := a.sessions.Create(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("session creation failed")
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, creds)
}

func (a *API) handleValidateSession(w http.ResponseWriter, r *http.Request, ident session.Identity) {
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":     true,
		"username":  ident.Username,
		"player_id": ident.PlayerID,
	})
}

type roomResponse struct {
	ID      string            `json:"id"`
	Host    string            `json:"host"`
	Players []string          `json:"players"`
	Names   map[string]string `json:"names"`
	Ready   []string          `json:"ready"`
	Status  room.Status       `json:"status"`
}

func (a *API) roomJSON(r room.Room) roomResponse {
	return roomResponse{
		ID:      r.ID,
		Host:    r.Host,
		Players: r.Players,
		Names:   a.names.ResolveAll(r.Players),
		Ready:   r.Ready,
		Status:  r.Status,
	}
}

func (a *API) handleCreateRoom(w http.ResponseWriter, r *http.Request, ident session.Identity) {
	rm := a.opener.OpenRoom(ident.PlayerID)
	writeJSON(w, http.StatusCreated, a.roomJSON(rm))
}

type roomSummary struct {
	ID          string      `json:"id"`
	Host        string      `json:"host"`
	PlayerCount int         `json:"player_count"`
	Status      room.Status `json:"status"`
}

func (a *API) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := a.rooms.List()
	out := make([]roomSummary, len(rooms))
	for i, rm := range rooms {
		out[i] = roomSummary{
			ID:          rm.ID,
			Host:        rm.Host,
			PlayerCount: len(rm.Players),
			Status:      rm.Status,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := a.rooms.Get(r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.roomJSON(rm))
}

func (a *API) handleRoomStats(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	if _, err := a.rooms.Get(roomID); err != nil {
		a.writeError(w, err)
		return
	}
	snap, ok := a.stats.RoomStats(roomID)
	if !ok {
		snap = stats.RoomStats{Room: roomID, Players: []stats.PlayerTotals{}}
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) handleJoinRoom(w http.ResponseWriter, r *http.Request, ident session.Identity) {
	rm, err := a.rooms.Join(r.PathValue("id"), ident.PlayerID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"room": a.roomJSON(rm)})
}

func (a *API) handleDeleteRoom(w http.ResponseWriter, r *http.Request, ident session.Identity) {
	if err := a.rooms.Delete(r.PathValue("id"), ident.PlayerID); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addBotRequest struct {
	Difficulty string `json:"difficulty"`
}

func (a *API) handleAddBot(w http.ResponseWriter, r *http.Request, ident session.Identity) {
	var req addBotRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "malformed request body")
			return
		}
	}

	b, err := a.bots.Add(r.PathValue("id"), ident.PlayerID, req.Difficulty)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (a *API) handleRemoveBot(w http.ResponseWriter, r *http.Request, ident session.Identity) {
	err := a.bots.Remove(r.PathValue("id"), ident.PlayerID, r.PathValue("bot_id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps service errors onto canonical status codes.
func (a *API) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, room.ErrNotFound), errors.Is(err, bot.ErrBotNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, room.ErrFull), errors.Is(err, room.ErrAlreadyJoined), errors.Is(err, bot.ErrTooManyBots):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, room.ErrNotHost):
		writeJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, room.ErrNotMember):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrInvalidToken):
		writeJSONError(w, http.StatusUnauthorized, err.Error())
	default:
		a.logger.Error().Err(err).Msg("internal error")
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
