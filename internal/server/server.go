// Package server exposes rooms over HTTP and a realtime websocket channel.
//
// The Hub owns the mapping between live websocket connections and seats,
// fans every accepted state out to the room (filtered per player) and
// runs the heartbeat and inactivity timers. The HTTP API and the realtime
// channel both go through room.Manager, so an intent has the same effect
// whichever way it arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lox/cardroom/internal/room"
	"github.com/lox/cardroom/internal/store"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Server wires the room manager, the hub and the HTTP router together.
type Server struct {
	cfg      Config
	logger   zerolog.Logger
	clock    quartz.Clock
	rooms    *room.Manager
	hub      *Hub
	router   *gin.Engine
	upgrader websocket.Upgrader
}

// Option configures a Server.
type Option func(*options)

type options struct {
	clock    quartz.Clock
	roomOpts []room.Option
}

// WithClock replaces the real clock, mostly for tests.
func WithClock(clock quartz.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithRoomOptions passes extra options to the room manager.
func WithRoomOptions(opts ...room.Option) Option {
	return func(o *options) { o.roomOpts = append(o.roomOpts, opts...) }
}

// New builds a server from cfg. When cfg.SnapshotDir is set, rooms saved
// there by an earlier run are restored.
func New(cfg Config, logger zerolog.Logger, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{clock: quartz.NewReal()}
	for _, opt := range opts {
		opt(&o)
	}

	roomOpts := []room.Option{room.WithClock(o.clock), room.WithRules(cfg.Rules)}
	if cfg.Seed != 0 {
		roomOpts = append(roomOpts, room.WithSeed(cfg.Seed))
	}

	var dir *store.Dir
	if cfg.SnapshotDir != "" {
		var err error
		dir, err = store.NewDir(cfg.SnapshotDir, logger)
		if err != nil {
			return nil, err
		}
		roomOpts = append(roomOpts, room.WithStore(dir))
	}

	rooms := room.NewManager(logger, append(roomOpts, o.roomOpts...)...)
	hub := NewHub(rooms, cfg, o.clock, logger)
	rooms.SetPublisher(hub)

	if dir != nil {
		states, err := dir.Load()
		if err != nil {
			return nil, fmt.Errorf("load snapshots: %w", err)
		}
		if n := rooms.Restore(states); n > 0 {
			logger.Info().Int("rooms", n).Str("dir", cfg.SnapshotDir).Msg("Restored rooms from snapshots")
		}
	}

	s := &Server{
		cfg:    cfg,
		logger: logger.With().Str("component", "server").Logger(),
		clock:  o.clock,
		rooms:  rooms,
		hub:    hub,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler serving the API and the websocket.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Rooms returns the room manager.
func (s *Server) Rooms() *room.Manager {
	return s.rooms
}

// Hub returns the connection hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves on cfg.Addr and runs the hub timers until ctx is done, then
// shuts the listener down and closes every connection.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.hub.Run(gctx)
	})
	g.Go(func() error {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("Starting server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.hub.CloseAll("server shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(s.cfg.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, origin)
}
