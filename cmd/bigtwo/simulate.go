package main

import (
	"github.com/mkchan/bigtwo/cmd/bigtwo/shared"
	"github.com/mkchan/bigtwo/internal/simulate"
)

// SimulateCmd contains the simulation configuration.
type SimulateCmd struct {
	Config string `kong:"type='path',help='HCL simulation config file'"`
	Rooms  int    `kong:"help='Concurrent rooms (overrides config)'"`
	Games  int    `kong:"help='Games per room (overrides config)'"`
	Seed   *int64 `kong:"help='Deterministic RNG seed (overrides config)'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
}

func (c *SimulateCmd) Run() error {
	logger := shared.NewLogger(c.Debug, false)

	cfg, err := simulate.Load(c.Config)
	if err != nil {
		return err
	}
	if c.Rooms > 0 {
		cfg.Simulation.Rooms = c.Rooms
	}
	if c.Games > 0 {
		cfg.Simulation.GamesPerRoom = c.Games
	}
	if c.Seed != nil {
		cfg.Simulation.Seed = *c.Seed
	}

	ctx := shared.SignalContext(logger)
	report, err := simulate.Run(ctx, cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().
		Int("rooms", report.Rooms).
		Int("games", report.Games).
		Int("host_wins", report.HostWins).
		Int("bot_wins", report.BotWins).
		Dur("duration", report.Duration).
		Msg("simulation complete")
	return nil
}
