package bot

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/mkchan/bigtwo/internal/card"
	"github.com/mkchan/bigtwo/internal/events"
	"github.com/mkchan/bigtwo/internal/gameflow"
	"github.com/mkchan/bigtwo/internal/identity"
)

// Think delay bounds. Bots pause before acting so games read like
// play, not like a log replay.
const (
	DefaultThinkMin = 500 * time.Millisecond
	DefaultThinkMax = 2 * time.Second
)

// ThinkConfig bounds the random pre-move delay.
type ThinkConfig struct {
	Min time.Duration
	Max time.Duration
}

func (c ThinkConfig) withDefaults() ThinkConfig {
	if c.Min <= 0 {
		c.Min = DefaultThinkMin
	}
	if c.Max < c.Min {
		c.Max = c.Min
	}
	return c
}

// Subscriber plays for bot seats. One Run loop per room; a pending
// think timer per bot, cancelled when the game ends or the bot
// leaves.
type Subscriber struct {
	logger zerolog.Logger
	bus    *events.Bus
	mgr    *Manager
	games  gameflow.GameView
	clock  quartz.Clock
	think  ThinkConfig

	mu      sync.Mutex
	rng     *rand.Rand
	pending map[string]map[string]*quartz.Timer // room -> bot -> timer
}

// NewSubscriber wires bot autoplay to the bus.
func NewSubscriber(bus *events.Bus, mgr *Manager, games gameflow.GameView, clock quartz.Clock, rng *rand.Rand, think ThinkConfig, logger zerolog.Logger) *Subscriber {
	return &Subscriber{
		logger:  logger.With().Str("component", "bots").Logger(),
		bus:     bus,
		mgr:     mgr,
		games:   games,
		clock:   clock,
		think:   think.withDefaults(),
		rng:     rng,
		pending: make(map[string]map[string]*quartz.Timer),
	}
}

// Run consumes a room's events until the room closes or ctx ends.
func (s *Subscriber) Run(ctx context.Context, roomID string) error {
	ch, cancel := s.bus.Subscribe(roomID, "bots")
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

func (s *Subscriber) handle(e events.Event) {
	roomID := e.RoomID()
	switch ev := e.(type) {
	case events.TurnChanged:
		if identity.IsBot(ev.Player) && s.mgr.Has(roomID, ev.Player) {
			s.schedule(roomID, ev.Player)
		}
	case events.GameWon:
		s.cancelAll(roomID)
	case events.GameReset:
		s.cancelAll(roomID)
	case events.BotRemoved:
		s.cancelBot(roomID, ev.BotID)
	case events.PlayerLeft:
		if identity.IsBot(ev.Player) {
			s.cancelBot(roomID, ev.Player)
		}
	case events.RoomDeleted:
		s.teardown(roomID)
	}
}

// schedule arms a think timer for a bot whose turn just arrived.
func (s *Subscriber) schedule(roomID, botID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timers := s.pending[roomID]; timers != nil {
		if t, ok := timers[botID]; ok {
			t.Stop()
			delete(timers, botID)
		}
	}

	delay := s.think.Min
	if spread := s.think.Max - s.think.Min; spread > 0 {
		delay += time.Duration(s.rng.Int63n(int64(spread)))
	}

	timer := s.clock.AfterFunc(delay, func() {
		if !s.claim(roomID, botID) {
			return
		}
		s.act(roomID, botID)
	})

	if s.pending[roomID] == nil {
		s.pending[roomID] = make(map[string]*quartz.Timer)
	}
	s.pending[roomID][botID] = timer
}

// claim consumes the pending timer entry; a cancelled timer that
// still fires finds nothing and does nothing.
func (s *Subscriber) claim(roomID, botID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	timers := s.pending[roomID]
	if _, ok := timers[botID]; !ok {
		return false
	}
	delete(timers, botID)
	return true
}

// act chooses and publishes the bot's move.
func (s *Subscriber) act(roomID, botID string) {
	handCards, ok := s.games.HandOf(roomID, botID)
	if !ok || len(handCards) == 0 {
		return
	}

	sit := Situation{Hand: handCards}
	if size, beats, live := s.games.LastPlay(roomID); live {
		sit.TrickLive = true
		sit.TrickSize = size
		sit.Beats = beats
	}
	if s.games.MustIncludeOpening(roomID) {
		anchor := card.ThreeOfDiamonds
		sit.MustInclude = &anchor
	}

	cards, play := ChooseMove(sit)
	if play {
		s.logger.Debug().
			Str("room", roomID).
			Str("bot", botID).
			Strs("cards", card.Strings(cards)).
			Msg("bot plays")
		s.bus.Publish(events.TryPlayMove{Base: events.In(roomID), Player: botID, Cards: cards})
		return
	}
	s.logger.Debug().Str("room", roomID).Str("bot", botID).Msg("bot passes")
	s.bus.Publish(events.TryPass{Base: events.In(roomID), Player: botID})
}

func (s *Subscriber) cancelBot(roomID, botID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.pending[roomID][botID]; ok {
		t.Stop()
		delete(s.pending[roomID], botID)
	}
}

func (s *Subscriber) cancelAll(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.pending[roomID] {
		t.Stop()
	}
	delete(s.pending, roomID)
}

// teardown drops all room state, timers and bot registrations.
func (s *Subscriber) teardown(roomID string) {
	s.cancelAll(roomID)
	s.mgr.DropRoom(roomID)
}
