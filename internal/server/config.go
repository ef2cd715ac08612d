package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/lox/cardroom/internal/game"
	"golang.org/x/time/rate"
)

// Config holds everything the server needs at startup.
type Config struct {
	Addr           string
	AllowedOrigins []string
	SnapshotDir    string
	// Seed makes shuffles reproducible. Zero draws a random seed.
	Seed  int64
	Rules game.Rules

	// HeartbeatInterval is how often every connection is pinged.
	HeartbeatInterval time.Duration
	// KeepaliveAfter is how long a connection may stay silent before the
	// heartbeat also sends an application-level ping.
	KeepaliveAfter time.Duration
	// InactivityTimeout closes connections that have been silent this long.
	InactivityTimeout time.Duration
	SweepInterval     time.Duration

	SendBuffer int
	RateLimit  rate.Limit
	RateBurst  int
}

// DefaultConfig returns the default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		AllowedOrigins:    []string{"*"},
		Rules:             game.DefaultRules(),
		HeartbeatInterval: 25 * time.Second,
		KeepaliveAfter:    20 * time.Second,
		InactivityTimeout: 45 * time.Second,
		SweepInterval:     5 * time.Second,
		SendBuffer:        64,
		RateLimit:         20,
		RateBurst:         40,
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("address must not be empty"))
	}
	for name, d := range map[string]time.Duration{
		"heartbeat_interval": c.HeartbeatInterval,
		"keepalive_after":    c.KeepaliveAfter,
		"inactivity_timeout": c.InactivityTimeout,
		"sweep_interval":     c.SweepInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.KeepaliveAfter >= c.InactivityTimeout {
		errs = append(errs, fmt.Errorf("keepalive_after (%s) must be shorter than inactivity_timeout (%s)", c.KeepaliveAfter, c.InactivityTimeout))
	}
	if c.Rules.HostGrace < 0 {
		errs = append(errs, fmt.Errorf("host_grace must not be negative, got %s", c.Rules.HostGrace))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer))
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit and rate_burst must be positive, got %v and %d", c.RateLimit, c.RateBurst))
	}
	return errors.Join(errs...)
}

// fileConfig mirrors the HCL layout. Every attribute is optional; unset
// attributes leave the base configuration alone.
type fileConfig struct {
	Server     *serverBlock     `hcl:"server,block"`
	Game       *gameBlock       `hcl:"game,block"`
	Connection *connectionBlock `hcl:"connection,block"`
}

type serverBlock struct {
	Address        *string  `hcl:"address,optional"`
	AllowedOrigins []string `hcl:"allowed_origins,optional"`
	SnapshotDir    *string  `hcl:"snapshot_dir,optional"`
	Seed           *int64   `hcl:"seed,optional"`
}

type gameBlock struct {
	AutoPickSingle *bool   `hcl:"auto_pick_single,optional"`
	HostGrace      *string `hcl:"host_grace,optional"`
}

type connectionBlock struct {
	HeartbeatInterval *string  `hcl:"heartbeat_interval,optional"`
	KeepaliveAfter    *string  `hcl:"keepalive_after,optional"`
	InactivityTimeout *string  `hcl:"inactivity_timeout,optional"`
	SweepInterval     *string  `hcl:"sweep_interval,optional"`
	SendBuffer        *int     `hcl:"send_buffer,optional"`
	RateLimit         *float64 `hcl:"rate_limit,optional"`
	RateBurst         *int     `hcl:"rate_burst,optional"`
}

// LoadConfigFile overlays the HCL file at filename onto base. A missing
// file returns base unchanged.
func LoadConfigFile(filename string, base Config) (Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return base, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return base, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var fc fileConfig
	diags = gohcl.DecodeBody(file.Body, nil, &fc)
	if diags.HasErrors() {
		return base, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	cfg := base
	if s := fc.Server; s != nil {
		if s.Address != nil {
			cfg.Addr = *s.Address
		}
		if s.AllowedOrigins != nil {
			cfg.AllowedOrigins = s.AllowedOrigins
		}
		if s.SnapshotDir != nil {
			cfg.SnapshotDir = *s.SnapshotDir
		}
		if s.Seed != nil {
			cfg.Seed = *s.Seed
		}
	}

	var errs []error
	duration := func(name string, raw *string, dst *time.Duration) {
		if raw == nil {
			return
		}
		d, err := time.ParseDuration(*raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = d
	}

	if g := fc.Game; g != nil {
		if g.AutoPickSingle != nil {
			cfg.Rules.AutoPickSingle = *g.AutoPickSingle
		}
		duration("host_grace", g.HostGrace, &cfg.Rules.HostGrace)
	}

	if c := fc.Connection; c != nil {
		duration("heartbeat_interval", c.HeartbeatInterval, &cfg.HeartbeatInterval)
		duration("keepalive_after", c.KeepaliveAfter, &cfg.KeepaliveAfter)
		duration("inactivity_timeout", c.InactivityTimeout, &cfg.InactivityTimeout)
		duration("sweep_interval", c.SweepInterval, &cfg.SweepInterval)
		if c.SendBuffer != nil {
			cfg.SendBuffer = *c.SendBuffer
		}
		if c.RateLimit != nil {
			cfg.RateLimit = rate.Limit(*c.RateLimit)
		}
		if c.RateBurst != nil {
			cfg.RateBurst = *c.RateBurst
		}
	}

	if err := errors.Join(errs...); err != nil {
		return base, fmt.Errorf("invalid duration in %s: %w", filename, err)
	}
	return cfg, nil
}
