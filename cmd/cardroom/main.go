package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Server  ServerCmd        `cmd:"" help:"Run the card room server"`
	Watch   WatchCmd         `cmd:"" help:"Watch a room from one seat in the terminal"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("cardroom"),
		kong.Description("Authoritative server for a multiplayer shedding card game"),
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
