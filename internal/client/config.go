// Package client is the terminal client's server access layer: TOML
// configuration, the REST calls for sessions and rooms, and the
// WebSocket game connection.
package client

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the client configuration, read from
// ~/.config/bigtwo/client.toml by default.
type Config struct {
	Server ServerSettings `toml:"server"`
	UI     UISettings     `toml:"ui"`
}

// ServerSettings holds the connection settings.
type ServerSettings struct {
	URL            string `toml:"url"`
	ConnectTimeout int    `toml:"connect_timeout"` // seconds
	RequestTimeout int    `toml:"request_timeout"` // seconds
}

// UISettings holds the terminal display settings.
type UISettings struct {
	LogFile        string `toml:"log_file"`
	LogLevel       string `toml:"log_level"`
	Color          string `toml:"color"` // auto, always, never
	ShowTimestamps bool   `toml:"show_timestamps"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Server: ServerSettings{
			URL:            "http://localhost:3000",
			ConnectTimeout: 10,
			RequestTimeout: 30,
		},
		UI: UISettings{
			LogFile:  "bigtwo-client.log",
			LogLevel: "warn",
			Color:    "auto",
		},
	}
}

// DefaultConfigPath returns ~/.config/bigtwo/client.toml (or the
// platform equivalent).
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "client.toml"
	}
	return filepath.Join(dir, "bigtwo", "client.toml")
}

// DefaultSessionPath returns where the session token is cached between
// runs.
func DefaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "session"
	}
	return filepath.Join(dir, "bigtwo", "session")
}

// LoadConfig reads a TOML config file. A missing file yields the
// defaults; a present file is merged over them.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	defaults := DefaultConfig()
	if cfg.Server.URL == "" {
		cfg.Server.URL = defaults.Server.URL
	}
	if cfg.Server.ConnectTimeout == 0 {
		cfg.Server.ConnectTimeout = defaults.Server.ConnectTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = defaults.Server.RequestTimeout
	}
	if cfg.UI.LogFile == "" {
		cfg.UI.LogFile = defaults.UI.LogFile
	}
	if cfg.UI.LogLevel == "" {
		cfg.UI.LogLevel = defaults.UI.LogLevel
	}
	if cfg.UI.Color == "" {
		cfg.UI.Color = defaults.UI.Color
	}
	return cfg, nil
}

// Validate checks the configuration for values the client cannot work
// with.
func (c Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server URL is required")
	}
	if !strings.HasPrefix(c.Server.URL, "http://") && !strings.HasPrefix(c.Server.URL, "https://") {
		return fmt.Errorf("server URL must be http or https, got %q", c.Server.URL)
	}
	if c.Server.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	switch c.UI.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.UI.LogLevel)
	}

	switch c.UI.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("invalid color mode: %s", c.UI.Color)
	}
	return nil
}

// LoadToken reads a cached session token. Absent or unreadable caches
// return the empty string.
func LoadToken(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SaveToken caches a session token for later runs.
func SaveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token+"\n"), 0o600)
}
