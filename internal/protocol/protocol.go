// Package protocol defines the JSON wire format spoken over the
// WebSocket. Both directions use the same envelope:
//
//	{"type": "MOVE_PLAYED", "payload": {...}, "meta": {"timestamp": "..."}}
//
// Types are UPPER_SNAKE strings; payloads are per-type objects.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Client to server message types.
const (
	TypeChat      = "CHAT"
	TypeMove      = "MOVE"
	TypePass      = "PASS"
	TypeLeave     = "LEAVE"
	TypeStartGame = "START_GAME"
	TypeReady     = "READY"
)

// Server to client message types.
const (
	TypePlayersList  = "PLAYERS_LIST"
	TypeHostChange   = "HOST_CHANGE"
	TypeGameStarted  = "GAME_STARTED"
	TypeMovePlayed   = "MOVE_PLAYED"
	TypePassed       = "PASSED"
	TypeTurnChange   = "TURN_CHANGE"
	TypeGameWon      = "GAME_WON"
	TypeGameReset    = "GAME_RESET"
	TypeBotAdded     = "BOT_ADDED"
	TypeBotRemoved   = "BOT_REMOVED"
	TypeStatsUpdated = "STATS_UPDATED"
	TypeSnapshot     = "SNAPSHOT"
	TypeError        = "ERROR"
)

// Meta carries envelope metadata.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
}

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Meta    Meta            `json:"meta"`
}

// NewEnvelope wraps a payload. Marshalling the payload here keeps a
// malformed payload from surfacing later as a write error on some
// unrelated connection.
func NewEnvelope(msgType string, payload any, now time.Time) (Envelope, error) {
	env := Envelope{Type: msgType, Meta: Meta{Timestamp: now.UTC()}}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	return env, nil
}

// Encode renders the envelope as a JSON frame.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a raw frame into an envelope.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("envelope missing type")
	}
	return env, nil
}

// DecodePayload parses the payload into dst.
func (e Envelope) DecodePayload(dst any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("%s payload: %w", e.Type, err)
	}
	return nil
}
