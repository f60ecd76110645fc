package room

import (
	"context"
	"time"

	"github.com/mkchan/bigtwo/internal/events"
)

// Cleanup defaults: sweep every half hour, reap rooms idle for a day.
const (
	DefaultCleanupInterval = 30 * time.Minute
	DefaultIdleThreshold   = 24 * time.Hour
)

// CleanupConfig controls the idle-room reaper.
type CleanupConfig struct {
	Interval  time.Duration
	Threshold time.Duration
}

func (c CleanupConfig) withDefaults() CleanupConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultCleanupInterval
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultIdleThreshold
	}
	return c
}

// RunCleanup sweeps for idle rooms until ctx is cancelled. It returns
// the context error on shutdown.
func (s *Service) RunCleanup(ctx context.Context, cfg CleanupConfig) error {
	cfg = cfg.withDefaults()
	s.logger.Info().
		Dur("interval", cfg.Interval).
		Dur("threshold", cfg.Threshold).
		Msg("room cleanup running")

	return s.clock.TickerFunc(ctx, cfg.Interval, func() error {
		s.ReapIdle(cfg.Threshold)
		return nil
	}, "room_cleanup").Wait()
}

// ReapIdle tears down every room idle for at least threshold and
// returns how many were removed.
func (s *Service) ReapIdle(threshold time.Duration) int {
	var out pending
	defer s.flush(&out)

	now := s.clock.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	reaped := 0
	for id, st := range s.rooms {
		if now.Sub(st.lastActive) < threshold {
			continue
		}
		delete(s.rooms, id)
		out.emit(events.RoomDeleted{Base: events.In(id)})
		out.closeRoom(id)
		reaped++
		s.logger.Info().
			Str("room", id).
			Time("last_active", st.lastActive).
			Msg("idle room reaped")
	}
	return reaped
}
