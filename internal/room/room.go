// Package room tracks lobby membership and room lifecycle.
package room

import (
	"errors"
	"time"
)

// Status is a room's lobby state.
type Status string

const (
	// StatusWaiting means the room is gathering players.
	StatusWaiting Status = "waiting"
	// StatusPlaying means a game is in progress.
	StatusPlaying Status = "playing"
)

// MaxPlayers is the fixed table size.
const MaxPlayers = 4

var (
	// ErrNotFound indicates the room does not exist.
	ErrNotFound = errors.New("room: not found")
	// ErrFull indicates all seats are taken.
	ErrFull = errors.New("room: full")
	// ErrAlreadyJoined indicates the player already holds a seat.
	ErrAlreadyJoined = errors.New("room: already joined")
	// ErrNotHost indicates a host-only operation by a non-host.
	ErrNotHost = errors.New("room: requires host")
	// ErrNotMember indicates the player holds no seat in the room.
	ErrNotMember = errors.New("room: not a member")
)

// Room is an immutable snapshot of a room's state.
type Room struct {
	ID         string
	Host       string
	Players    []string // join order
	Status     Status
	Ready      []string
	CreatedAt  time.Time
	LastActive time.Time
}

// HasPlayer reports whether a player holds a seat.
func (r Room) HasPlayer(playerID string) bool {
	for _, p := range r.Players {
		if p == playerID {
			return true
		}
	}
	return false
}

// IsReady reports whether a player has toggled ready.
func (r Room) IsReady(playerID string) bool {
	for _, p := range r.Ready {
		if p == playerID {
			return true
		}
	}
	return false
}

// roomState is the mutable record behind the service lock.
type roomState struct {
	id         string
	host       string
	players    []string
	status     Status
	ready      map[string]bool
	createdAt  time.Time
	lastActive time.Time
}

func (st *roomState) snapshot() Room {
	ready := make([]string, 0, len(st.ready))
	for _, p := range st.players {
		if st.ready[p] {
			ready = append(ready, p)
		}
	}
	return Room{
		ID:         st.id,
		Host:       st.host,
		Players:    append([]string(nil), st.players...),
		Status:     st.status,
		Ready:      ready,
		CreatedAt:  st.createdAt,
		LastActive: st.lastActive,
	}
}
