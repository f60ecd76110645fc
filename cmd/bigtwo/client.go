package main

import (
	"github.com/mkchan/bigtwo/internal/tui"
)

// ClientCmd contains the terminal client configuration.
type ClientCmd struct {
	Server string `kong:"env='BIGTWO_SERVER',help='Server URL (overrides the config file)'"`
	Config string `kong:"type='path',env='BIGTWO_CONFIG',help='Path to the client config file'"`
	Room   string `kong:"help='Join this room immediately'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
}

func (c *ClientCmd) Run() error {
	return tui.Run(tui.Options{
		ConfigPath: c.Config,
		ServerURL:  c.Server,
		RoomID:     c.Room,
		Debug:      c.Debug,
	})
}
