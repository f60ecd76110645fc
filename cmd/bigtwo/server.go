package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/mkchan/bigtwo/cmd/bigtwo/shared"
	"github.com/mkchan/bigtwo/internal/app"
	"github.com/mkchan/bigtwo/internal/bot"
	"github.com/mkchan/bigtwo/internal/rest"
	"github.com/mkchan/bigtwo/internal/room"
)

// ServerCmd contains the server configuration.
type ServerCmd struct {
	Addr                  string        `kong:"default=':3000',env='PORT',help='Listen address; a bare port number also works'"`
	DatabaseURL           string        `kong:"env='DATABASE_URL',help='SQLite path for session persistence (in-memory store when unset)'"`
	JWTSecret             string        `kong:"env='JWT_SECRET',help='Session token signing secret'"`
	SessionExpirationDays int           `kong:"default='365',env='SESSION_EXPIRATION_DAYS',help='Session lifetime in days'"`
	AllowedOrigins        []string      `kong:"env='ALLOWED_ORIGINS',help='CORS allow-list (any origin when empty)'"`
	CleanupInterval       time.Duration `kong:"default='30m',help='How often to sweep for idle rooms'"`
	IdleThreshold         time.Duration `kong:"default='24h',help='Idle time before a room is reaped'"`
	Seed                  *int64        `kong:"help='Deterministic RNG seed for deals (optional)'"`
	Debug                 bool          `kong:"help='Enable debug logging'"`
	LogJSON               bool          `kong:"help='Log structured JSON instead of console output'"`
}

// listenAddr accepts either a full listen address or a bare port
// number, the form PORT-style deployment environments provide.
func listenAddr(v string) string {
	if v != "" && !strings.Contains(v, ":") {
		return ":" + v
	}
	return v
}

func (c *ServerCmd) Run() error {
	logger := shared.NewLogger(c.Debug, c.LogJSON)

	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
		logger.Info().Int64("seed", seed).Msg("Using deterministic seed")
	}
	rng := rand.New(rand.NewSource(seed))

	a, err := app.New(app.Config{
		JWTSecret:             c.JWTSecret,
		SessionExpirationDays: c.SessionExpirationDays,
		DatabaseURL:           c.DatabaseURL,
		BotThink:              bot.ThinkConfig{},
	}, quartz.NewReal(), rng, logger)
	if err != nil {
		return err
	}

	api := rest.New(a.Sessions, a.Rooms, a, a.Bots, a.Stats, a.IDs, c.AllowedOrigins, logger)
	mux := http.NewServeMux()
	api.Routes(mux)
	mux.Handle("GET /ws/{room_id}", a.Ingress)

	addr := listenAddr(c.Addr)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.Wrap(mux),
	}

	logger.Info().
		Str("address", addr).
		Str("database", c.DatabaseURL).
		Dur("cleanup_interval", c.CleanupInterval).
		Dur("idle_threshold", c.IdleThreshold).
		Msg("Starting Big Two server")

	ctx := shared.SignalContext(logger)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := a.RunCleanup(ctx, room.CleanupConfig{
			Interval:  c.CleanupInterval,
			Threshold: c.IdleThreshold,
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	a.Close()
	return err
}
