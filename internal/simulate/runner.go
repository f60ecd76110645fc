package simulate

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/coder/quartz"
	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mkchan/bigtwo/internal/app"
	"github.com/mkchan/bigtwo/internal/bot"
	"github.com/mkchan/bigtwo/internal/card"
	"github.com/mkchan/bigtwo/internal/events"
)

// stallTimeout aborts a room whose game stops producing events. A
// healthy game always moves within a few think delays plus the reset
// countdown.
const stallTimeout = 30 * time.Second

// Report sums up a finished run.
type Report struct {
	Rooms    int
	Games    int
	HostWins int
	BotWins  int
	Duration time.Duration
}

// Run plays the configured number of games in concurrent rooms and
// returns the aggregate report. Each room gets a simulated human host
// playing the same strategy as the bots.
func Run(ctx context.Context, cfg Config, logger zerolog.Logger) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	a, err := app.New(app.Config{
		BotThink: bot.ThinkConfig{
			Min: time.Duration(cfg.Simulation.ThinkMinMS) * time.Millisecond,
			Max: time.Duration(cfg.Simulation.ThinkMaxMS) * time.Millisecond,
		},
	}, quartz.NewReal(), rng, logger)
	if err != nil {
		return Report{}, err
	}
	defer a.Close()

	logger.Info().
		Int("rooms", cfg.Simulation.Rooms).
		Int("games_per_room", cfg.Simulation.GamesPerRoom).
		Int64("seed", seed).
		Msg("starting simulation")

	start := time.Now()
	var (
		mu     sync.Mutex
		report Report
	)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Simulation.Rooms; i++ {
		g.Go(func() error {
			res, err := runRoom(ctx, a, cfg, logger)
			if err != nil {
				return err
			}
			mu.Lock()
			report.Rooms++
			report.Games += res.games
			report.HostWins += res.hostWins
			report.BotWins += res.botWins
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	report.Duration = time.Since(start)
	return report, nil
}

type roomResult struct {
	games    int
	hostWins int
	botWins  int
}

// runRoom opens a room, seats three bots and plays games to completion,
// driving the host seat from the bus.
func runRoom(ctx context.Context, a *app.App, cfg Config, logger zerolog.Logger) (roomResult, error) {
	hostID := uuid.NewString()
	if err := a.IDs.Register(hostID, petname.Generate(2, "-")); err != nil {
		return roomResult{}, fmt.Errorf("register host: %w", err)
	}
	defer a.IDs.Remove(hostID)

	r := a.OpenRoom(hostID)
	log := logger.With().Str("room", r.ID).Logger()

	ch, cancel := a.Bus.Subscribe(r.ID, "simulate")
	defer cancel()

	for _, seat := range cfg.Bots {
		b, err := a.Bots.Add(r.ID, hostID, seat.Difficulty)
		if err != nil {
			return roomResult{}, fmt.Errorf("seat %s: add bot: %w", seat.Seat, err)
		}
		log.Debug().Str("seat", seat.Seat).Str("bot", b.ID).Msg("bot seated")
	}
	if err := a.Rooms.SetReady(r.ID, hostID, true); err != nil {
		return roomResult{}, fmt.Errorf("ready host: %w", err)
	}
	a.Bus.Publish(events.TryStartGame{Base: events.In(r.ID), Requester: hostID})

	var res roomResult
	stall := time.NewTimer(stallTimeout)
	defer stall.Stop()

	for res.games < cfg.Simulation.GamesPerRoom {
		if !stall.Stop() {
			select {
			case <-stall.C:
			default:
			}
		}
		stall.Reset(stallTimeout)

		select {
		case <-ctx.Done():
			return roomResult{}, ctx.Err()
		case <-stall.C:
			return roomResult{}, fmt.Errorf("room %s stalled after %d games", r.ID, res.games)
		case e, ok := <-ch:
			if !ok {
				return roomResult{}, fmt.Errorf("room %s closed after %d games", r.ID, res.games)
			}
			switch ev := e.(type) {
			case events.GameCreated:
				log.Debug().Msg("game dealt")
			case events.TurnChanged:
				if ev.Player == hostID {
					actAsHost(a, r.ID, hostID)
				}
			case events.GameWon:
				res.games++
				if ev.Winner == hostID {
					res.hostWins++
				} else {
					res.botWins++
				}
				log.Info().
					Int("game", ev.GameNumber).
					Str("winner", ev.Winner).
					Msg("game finished")
			case events.GameReset:
				if res.games < cfg.Simulation.GamesPerRoom {
					if err := a.Rooms.SetReady(r.ID, hostID, true); err != nil {
						return roomResult{}, fmt.Errorf("ready host: %w", err)
					}
					a.Bus.Publish(events.TryStartGame{Base: events.In(r.ID), Requester: hostID})
				}
			}
		}
	}

	waitForStats(ch, a, r.ID, res.games)
	if stats, ok := a.Stats.RoomStats(r.ID); ok {
		for _, p := range stats.Players {
			log.Info().
				Str("player", p.Player).
				Int("score", p.Score).
				Int("wins", p.Wins).
				Msg("final tally")
		}
	}

	if err := a.Rooms.Delete(r.ID, hostID); err != nil {
		log.Warn().Err(err).Msg("failed to close room")
	}
	return res, nil
}

// waitForStats blocks until the ledger has folded in every finished
// game, with a short grace period. Scoring runs off the bus, so the
// last result can trail the GameWon event.
func waitForStats(ch <-chan events.Event, a *app.App, roomID string, games int) {
	deadline := time.NewTimer(time.Second)
	defer deadline.Stop()

	if stats, ok := a.Stats.RoomStats(roomID); ok && stats.GamesPlayed >= games {
		return
	}
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			if _, isStats := e.(events.StatsUpdated); !isStats {
				continue
			}
			if stats, ok := a.Stats.RoomStats(roomID); ok && stats.GamesPlayed >= games {
				return
			}
		case <-deadline.C:
			return
		}
	}
}

// actAsHost plays the host's turn with the same strategy the bots use.
func actAsHost(a *app.App, roomID, hostID string) {
	handCards, ok := a.Games.HandOf(roomID, hostID)
	if !ok || len(handCards) == 0 {
		return
	}

	sit := bot.Situation{Hand: handCards}
	if size, beats, live := a.Games.LastPlay(roomID); live {
		sit.TrickLive = true
		sit.TrickSize = size
		sit.Beats = beats
	}
	if a.Games.MustIncludeOpening(roomID) {
		anchor := card.ThreeOfDiamonds
		sit.MustInclude = &anchor
	}

	if cards, play := bot.ChooseMove(sit); play {
		a.Bus.Publish(events.TryPlayMove{Base: events.In(roomID), Player: hostID, Cards: cards})
		return
	}
	a.Bus.Publish(events.TryPass{Base: events.In(roomID), Player: hostID})
}
