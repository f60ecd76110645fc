// Package simulate runs bot-vs-bot games against an in-process server
// assembly. It exists to soak the rules engine and the event plumbing
// under concurrent rooms without any sockets in the way.
package simulate

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the simulation configuration, loaded from HCL.
type Config struct {
	Simulation Settings      `hcl:"simulation,block"`
	Bots       []BotSettings `hcl:"bot,block"`
}

// Settings controls the shape of a run.
type Settings struct {
	Rooms        int   `hcl:"rooms,optional"`
	GamesPerRoom int   `hcl:"games_per_room,optional"`
	ThinkMinMS   int   `hcl:"think_min_ms,optional"`
	ThinkMaxMS   int   `hcl:"think_max_ms,optional"`
	Seed         int64 `hcl:"seed,optional"`
}

// BotSettings describes one bot seat. Three bots join each room
// alongside the simulated host. The label names the seat in config
// and logs; the server still assigns the bot its display name.
type BotSettings struct {
	Seat       string `hcl:"seat,label"`
	Difficulty string `hcl:"difficulty,optional"`
}

// DefaultConfig returns a small fast run: one room, ten games, three
// easy bots thinking for a few milliseconds.
func DefaultConfig() Config {
	return Config{
		Simulation: Settings{
			Rooms:        1,
			GamesPerRoom: 10,
			ThinkMinMS:   1,
			ThinkMaxMS:   5,
		},
		Bots: []BotSettings{
			{Seat: "north", Difficulty: "easy"},
			{Seat: "east", Difficulty: "easy"},
			{Seat: "west", Difficulty: "easy"},
		},
	}
}

// Load reads an HCL config file. A missing file yields the defaults.
func Load(filename string) (Config, error) {
	if filename == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return Config{}, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return Config{}, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	defaults := DefaultConfig()
	if cfg.Simulation.Rooms == 0 {
		cfg.Simulation.Rooms = defaults.Simulation.Rooms
	}
	if cfg.Simulation.GamesPerRoom == 0 {
		cfg.Simulation.GamesPerRoom = defaults.Simulation.GamesPerRoom
	}
	if cfg.Simulation.ThinkMinMS == 0 {
		cfg.Simulation.ThinkMinMS = defaults.Simulation.ThinkMinMS
	}
	if cfg.Simulation.ThinkMaxMS == 0 {
		cfg.Simulation.ThinkMaxMS = defaults.Simulation.ThinkMaxMS
	}
	if len(cfg.Bots) == 0 {
		cfg.Bots = defaults.Bots
	}
	for i := range cfg.Bots {
		if cfg.Bots[i].Difficulty == "" {
			cfg.Bots[i].Difficulty = "easy"
		}
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Simulation.Rooms <= 0 {
		return fmt.Errorf("rooms must be positive")
	}
	if c.Simulation.GamesPerRoom <= 0 {
		return fmt.Errorf("games_per_room must be positive")
	}
	if c.Simulation.ThinkMinMS <= 0 {
		return fmt.Errorf("think_min_ms must be positive")
	}
	if c.Simulation.ThinkMaxMS < c.Simulation.ThinkMinMS {
		return fmt.Errorf("think_max_ms must be at least think_min_ms")
	}
	if len(c.Bots) != 3 {
		return fmt.Errorf("exactly three bot seats are required, got %d", len(c.Bots))
	}
	return nil
}
