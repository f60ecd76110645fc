package stats

import (
	"context"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/mkchan/bigtwo/internal/events"
)

// Subscriber folds finished games into the ledger as they happen.
type Subscriber struct {
	logger zerolog.Logger
	bus    *events.Bus
	stats  *Service
	clock  quartz.Clock
}

// NewSubscriber wires the ledger service to the bus.
func NewSubscriber(bus *events.Bus, stats *Service, clock quartz.Clock, logger zerolog.Logger) *Subscriber {
	return &Subscriber{
		logger: logger.With().Str("component", "stats").Logger(),
		bus:    bus,
		stats:  stats,
		clock:  clock,
	}
}

// Run consumes a room's events until the room closes or ctx ends.
// GameWon feeds the ledger and announces StatsUpdated; teardown
// discards the ledger.
func (s *Subscriber) Run(ctx context.Context, roomID string) error {
	ch, cancel := s.bus.Subscribe(roomID, "stats")
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-ch:
			if !ok {
				s.stats.DropRoom(roomID)
				return nil
			}
			s.handle(e)
		}
	}
}

func (s *Subscriber) handle(e events.Event) {
	switch ev := e.(type) {
	case events.GameWon:
		s.stats.Record(GameSummary{
			Room:        ev.RoomID(),
			GameNumber:  ev.GameNumber,
			Winner:      ev.Winner,
			CardCounts:  ev.CardCounts,
			CompletedAt: s.clock.Now().UTC(),
		})
		s.bus.Publish(events.StatsUpdated{Base: events.In(ev.RoomID())})
	case events.RoomDeleted:
		s.stats.DropRoom(ev.RoomID())
	}
}
