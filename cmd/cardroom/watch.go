package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/lox/cardroom/internal/client"
	"github.com/lox/cardroom/internal/tui"
	"github.com/muesli/termenv"
)

// WatchCmd follows one seat's filtered view. Either --game and --player
// name an existing seat, or --code and --name take a new one.
type WatchCmd struct {
	Server    string `kong:"default='http://localhost:8080',help='Server URL'"`
	Game      string `kong:"help='Game id of an existing seat'"`
	Player    string `kong:"help='Player id of an existing seat'"`
	Code      string `kong:"help='Room code to join'"`
	Name      string `kong:"help='Name to join with'"`
	Spectator bool   `kong:"help='Join as a spectator'"`
	NoColor   bool   `kong:"help='Disable colored output'"`
	Debug     bool   `kong:"help='Enable debug logging'"`
}

func (c *WatchCmd) Run() error {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
	if c.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	if c.NoColor {
		lipgloss.SetColorProfile(termenv.Ascii)
		logger.SetColorProfile(termenv.Ascii)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gameID, playerID := strings.TrimSpace(c.Game), strings.TrimSpace(c.Player)
	if gameID == "" || playerID == "" {
		if c.Code == "" || c.Name == "" {
			return errors.New("pass --game and --player, or --code and --name")
		}
		joined, err := client.Join(ctx, &http.Client{Timeout: 10 * time.Second}, c.Server, c.Code, c.Name, c.Spectator)
		if err != nil {
			return err
		}
		logger.Info("Joined room", "room", joined.RoomCode, "game", joined.GameID, "player", joined.PlayerID)
		gameID, playerID = joined.GameID, joined.PlayerID
	}

	cl := client.New(c.Server, logger)
	if err := cl.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = cl.Close() }()
	if err := cl.Identify(gameID, playerID); err != nil {
		return err
	}

	return cl.Run(ctx, func(e client.Event) {
		switch {
		case e.State != nil:
			fmt.Print("\033[H\033[2J")
			fmt.Println(tui.Render(e.State, playerID))
		case e.Error != nil:
			fmt.Println(tui.ErrorStyle.Render(fmt.Sprintf("%s: %s", e.Error.Code, e.Error.Message)))
		}
	})
}
