package stats

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// PlayerTotals is a player's running record in one room. Score is
// cumulative penalty points, so lower is better.
type PlayerTotals struct {
	Player        string `json:"player"`
	GamesPlayed   int    `json:"games_played"`
	Score         int    `json:"score"`
	Wins          int    `json:"wins"`
	CurrentStreak int    `json:"current_streak"`
	BestStreak    int    `json:"best_streak"`
}

// RoomStats is a room's ledger snapshot, best cumulative score first.
type RoomStats struct {
	Room        string         `json:"room"`
	GamesPlayed int            `json:"games_played"`
	Players     []PlayerTotals `json:"players"`
}

// Service keeps per-room ledgers of finished games.
type Service struct {
	logger   zerolog.Logger
	pipeline *Pipeline

	mu    sync.RWMutex
	rooms map[string]*ledger
}

type ledger struct {
	games   int
	players map[string]*PlayerTotals
}

// NewService creates a ledger service. A nil pipeline means the
// default scoring stack.
func NewService(pipeline *Pipeline, logger zerolog.Logger) *Service {
	if pipeline == nil {
		pipeline = DefaultPipeline()
	}
	return &Service{
		logger:   logger.With().Str("component", "stats").Logger(),
		pipeline: pipeline,
		rooms:    make(map[string]*ledger),
	}
}

// Record scores a finished game and folds it into the room's ledger.
func (s *Service) Record(sum GameSummary) GameResult {
	result := s.pipeline.Run(sum)

	s.mu.Lock()
	defer s.mu.Unlock()

	led, ok := s.rooms[result.Room]
	if !ok {
		led = &ledger{players: make(map[string]*PlayerTotals)}
		s.rooms[result.Room] = led
	}
	led.games++
	for _, line := range result.Players {
		t, ok := led.players[line.Player]
		if !ok {
			t = &PlayerTotals{Player: line.Player}
			led.players[line.Player] = t
		}
		t.GamesPlayed++
		t.Score += line.FinalScore
		if line.Won {
			t.Wins++
			t.CurrentStreak++
			if t.CurrentStreak > t.BestStreak {
				t.BestStreak = t.CurrentStreak
			}
		} else {
			t.CurrentStreak = 0
		}
	}

	s.logger.Info().
		Str("room", result.Room).
		Int("game", result.GameNumber).
		Str("winner", result.Winner).
		Msg("game recorded")
	return result
}

// RoomStats returns a room's ledger. The second return is false when
// no game has finished there yet.
func (s *Service) RoomStats(roomID string) (RoomStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	led, ok := s.rooms[roomID]
	if !ok {
		return RoomStats{}, false
	}
	out := RoomStats{
		Room:        roomID,
		GamesPlayed: led.games,
		Players:     make([]PlayerTotals, 0, len(led.players)),
	}
	for _, t := range led.players {
		out.Players = append(out.Players, *t)
	}
	sort.Slice(out.Players, func(i, j int) bool {
		a, b := out.Players[i], out.Players[j]
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		return a.Player < b.Player
	})
	return out, true
}

// DropRoom discards a deleted room's ledger.
func (s *Service) DropRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}
