package main

import (
	"fmt"
	"time"

	"github.com/lox/cardroom/cmd/cardroom/shared"
	"github.com/lox/cardroom/internal/server"
)

// ServerCmd runs the server. Flags left at their zero value do not
// override the config file.
type ServerCmd struct {
	Config            string         `kong:"default='cardroom.hcl',help='HCL config file (ignored if missing)'"`
	Addr              string         `kong:"help='Listen address (default :8080)'"`
	Debug             bool           `kong:"help='Enable debug logging'"`
	JSONLogs          bool           `kong:"name='json-logs',help='Log JSON instead of console output'"`
	Seed              *int64         `kong:"help='Deterministic RNG seed (optional)'"`
	SnapshotDir       string         `kong:"help='Directory for room snapshots; rooms are restored from it at startup'"`
	AllowedOrigins    []string       `kong:"help='Allowed CORS and websocket origins'"`
	NoAutoPick        bool           `kong:"help='Require an explicit pick after a single-card previous play'"`
	HeartbeatInterval time.Duration  `kong:"help='Interval between connection pings'"`
	KeepaliveAfter    time.Duration  `kong:"help='Send an application ping to connections silent this long'"`
	InactivityTimeout time.Duration  `kong:"help='Close connections silent for this long'"`
	SweepInterval     time.Duration  `kong:"help='Interval between inactivity sweeps'"`
	HostGrace         *time.Duration `kong:"help='How long a disconnected host keeps the role'"`
}

// config layers defaults, the config file and explicitly set flags.
func (c *ServerCmd) config() (server.Config, error) {
	cfg, err := server.LoadConfigFile(c.Config, server.DefaultConfig())
	if err != nil {
		return cfg, err
	}

	if c.Addr != "" {
		cfg.Addr = c.Addr
	}
	if c.Seed != nil {
		cfg.Seed = *c.Seed
	}
	if c.SnapshotDir != "" {
		cfg.SnapshotDir = c.SnapshotDir
	}
	if len(c.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = c.AllowedOrigins
	}
	if c.NoAutoPick {
		cfg.Rules.AutoPickSingle = false
	}
	if c.HeartbeatInterval > 0 {
		cfg.HeartbeatInterval = c.HeartbeatInterval
	}
	if c.KeepaliveAfter > 0 {
		cfg.KeepaliveAfter = c.KeepaliveAfter
	}
	if c.InactivityTimeout > 0 {
		cfg.InactivityTimeout = c.InactivityTimeout
	}
	if c.SweepInterval > 0 {
		cfg.SweepInterval = c.SweepInterval
	}
	if c.HostGrace != nil {
		cfg.Rules.HostGrace = *c.HostGrace
	}
	return cfg, nil
}

func (c *ServerCmd) Run() error {
	logger := shared.SetupLogger(c.Debug, c.JSONLogs)

	cfg, err := c.config()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Seed != 0 {
		logger.Info().Int64("seed", cfg.Seed).Msg("Using deterministic seed")
	}

	s, err := server.New(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().
		Str("address", cfg.Addr).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("snapshot_dir", cfg.SnapshotDir).
		Bool("auto_pick_single", cfg.Rules.AutoPickSingle).
		Dur("heartbeat_interval", cfg.HeartbeatInterval).
		Dur("keepalive_after", cfg.KeepaliveAfter).
		Dur("inactivity_timeout", cfg.InactivityTimeout).
		Dur("host_grace", cfg.Rules.HostGrace).
		Msg("Starting cardroom server")

	ctx, cancel := shared.SetupSignalHandler(logger)
	defer cancel()
	return s.Run(ctx)
}
