package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Server   ServerCmd        `cmd:"" help:"Run the Big Two server"`
	Client   ClientCmd        `cmd:"" help:"Play in the terminal"`
	Simulate SimulateCmd      `cmd:"" help:"Run bot-vs-bot games against an in-process server"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("bigtwo"),
		kong.Description("Multiplayer Big Two card game server and client"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
