package tui

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/mkchan/bigtwo/internal/client"
)

// Options configures a client run.
type Options struct {
	ConfigPath string // empty means the default path
	ServerURL  string // overrides the config when set
	RoomID     string // join this room immediately when set
	Debug      bool
}

// Run starts the terminal client and blocks until it exits.
func Run(opts Options) error {
	path := opts.ConfigPath
	if path == "" {
		path = client.DefaultConfigPath()
	}
	cfg, err := client.LoadConfig(path)
	if err != nil {
		return err
	}
	if opts.ServerURL != "" {
		cfg.Server.URL = opts.ServerURL
	}
	if opts.Debug {
		cfg.UI.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The terminal belongs to the UI; logs go to a file.
	logFile, err := os.OpenFile(cfg.UI.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	level, err := log.ParseLevel(cfg.UI.LogLevel)
	if err != nil {
		level = log.WarnLevel
	}
	logger := log.NewWithOptions(logFile, log.Options{
		Level:           level,
		ReportTimestamp: cfg.UI.ShowTimestamps,
	})

	ApplyColorMode(cfg.UI.Color)

	rest := client.NewREST(cfg, logger)
	session, err := establishSession(rest, logger)
	if err != nil {
		return err
	}

	model := NewModel(rest, session, logger)
	program := tea.NewProgram(model, tea.WithAltScreen())

	if opts.RoomID != "" {
		go func() {
			program.Send(joinNowMsg{roomID: opts.RoomID})
		}()
	}

	_, err = program.Run()
	return err
}

// joinNowMsg asks the model to join a room straight from the command
// line.
type joinNowMsg struct{ roomID string }

// establishSession reuses a cached token when the server still
// accepts it, otherwise creates a fresh anonymous session.
func establishSession(rest *client.REST, logger *log.Logger) (client.Session, error) {
	ctx := context.Background()
	cachePath := client.DefaultSessionPath()

	if token := client.LoadToken(cachePath); token != "" {
		rest.SetToken(token)
		if sess, err := rest.ValidateSession(ctx); err == nil {
			logger.Info("resumed session", "username", sess.Username)
			return sess, nil
		}
		logger.Info("cached session rejected, creating a new one")
		rest.SetToken("")
	}

	sess, err := rest.NewSession(ctx)
	if err != nil {
		return client.Session{}, fmt.Errorf("create session: %w", err)
	}
	if err := client.SaveToken(cachePath, sess.Token); err != nil {
		logger.Warn("failed to cache session token", "error", err)
	}
	return sess, nil
}
