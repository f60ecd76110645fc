// Package app assembles the server: services, bus, hub and the
// per-room subscriber goroutines that tie them together.
package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/mkchan/bigtwo/internal/bot"
	"github.com/mkchan/bigtwo/internal/events"
	"github.com/mkchan/bigtwo/internal/gameflow"
	"github.com/mkchan/bigtwo/internal/identity"
	"github.com/mkchan/bigtwo/internal/room"
	"github.com/mkchan/bigtwo/internal/session"
	"github.com/mkchan/bigtwo/internal/socket"
	"github.com/mkchan/bigtwo/internal/stats"
)

// Config carries the assembly knobs.
type Config struct {
	JWTSecret             string
	SessionExpirationDays int
	DatabaseURL           string
	BotThink              bot.ThinkConfig
}

// App owns every service of a running server.
type App struct {
	Logger   zerolog.Logger
	Bus      *events.Bus
	Clock    quartz.Clock
	Rooms    *room.Service
	IDs      *identity.Service
	Sessions *session.Service
	Stats    *stats.Service
	Games    *gameflow.Service
	Bots     *bot.Manager
	Hub      *socket.Hub
	Ingress  *socket.Ingress

	egress   *socket.Egress
	gameSub  *gameflow.Subscriber
	botSub   *bot.Subscriber
	statsSub *stats.Subscriber

	store session.Store

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New assembles an app. The clock and rand source are injected so
// tests and simulations control time and deals.
func New(cfg Config, clock quartz.Clock, rng *rand.Rand, logger zerolog.Logger) (*App, error) {
	bus := events.NewBus(logger)
	ids := identity.NewService()

	var store session.Store
	if cfg.DatabaseURL != "" {
		sqlStore, err := session.OpenSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		store = sqlStore
		logger.Info().Str("database", cfg.DatabaseURL).Msg("using SQLite session store")
	} else {
		store = session.NewMemoryStore()
		logger.Info().Msg("using in-memory session store")
	}

	sessions := session.NewService(store, session.TokenConfig{
		Secret:         cfg.JWTSecret,
		ExpirationDays: cfg.SessionExpirationDays,
	}, ids, clock, logger)

	rooms := room.NewService(bus, clock, logger)
	statsSvc := stats.NewService(nil, logger)
	games := gameflow.NewService(rooms, clock, rng, logger)
	bots := bot.NewManager(bus, rooms, ids, logger)
	hub := socket.NewHub(clock, logger)

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		Logger:   logger,
		Bus:      bus,
		Clock:    clock,
		Rooms:    rooms,
		IDs:      ids,
		Sessions: sessions,
		Stats:    statsSvc,
		Games:    games,
		Bots:     bots,
		Hub:      hub,
		store:    store,
		ctx:      ctx,
		cancel:   cancel,
	}

	a.gameSub = gameflow.NewSubscriber(bus, games, rooms, hub, logger)
	a.botSub = bot.NewSubscriber(bus, bots, games, clock, rng, cfg.BotThink, logger)
	a.statsSub = stats.NewSubscriber(bus, statsSvc, clock, logger)
	a.egress = socket.NewEgress(bus, hub, rooms, ids, games, statsSvc, bots, clock, logger)
	a.Ingress = socket.NewIngress(bus, hub, sessions, rooms, clock, logger)
	return a, nil
}

// OpenRoom creates a room and spawns its subscriber set. The
// subscribers exit when the room closes on the bus.
func (a *App) OpenRoom(hostID string) room.Room {
	r := a.Rooms.Create(hostID)

	run := func(name string, f func(context.Context, string) error) {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := f(a.ctx, r.ID); err != nil && a.ctx.Err() == nil {
				a.Logger.Error().Err(err).
					Str("room", r.ID).
					Str("subscriber", name).
					Msg("subscriber exited with error")
			}
		}()
	}

	run("gameflow", a.gameSub.Run)
	run("bots", a.botSub.Run)
	run("stats", a.statsSub.Run)
	run("egress", a.egress.Run)
	return r
}

// RunCleanup sweeps idle rooms until ctx ends.
func (a *App) RunCleanup(ctx context.Context, cfg room.CleanupConfig) error {
	return a.Rooms.RunCleanup(ctx, cfg)
}

// Close tears the app down: bus and hub close, subscribers drain.
func (a *App) Close() {
	a.cancel()
	a.Bus.Close()
	a.Hub.Close()
	a.wg.Wait()
	if closer, ok := a.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}
