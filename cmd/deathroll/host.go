package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lox/deathroll/cmd/deathroll/shared"
	"github.com/lox/deathroll/internal/host"
	"github.com/lox/deathroll/internal/persist"
	"github.com/lox/deathroll/internal/rollgen"
	"github.com/lox/deathroll/internal/roomcode"
)

type HostCmd struct {
	Config    string   `short:"c" default:"deathroll-host.hcl" env:"DEATHROLL_HOST_CONFIG" help:"Path to HCL configuration file"`
	Addr      string   `short:"a" env:"DEATHROLL_ADDR" help:"Address to listen on (overrides config)"`
	Code      string   `help:"Room code to host (overrides config, random when empty)"`
	MaxRoll   int      `help:"Starting range (overrides config)"`
	Coins     bool     `help:"Enable coin abilities (overrides config)"`
	StateFile string   `env:"DEATHROLL_STATE_FILE" help:"Where to save the room so a restart can resume it (overrides config)"`
	Local     []string `short:"p" help:"Local players sitting at the host"`
	Console   bool     `default:"true" negatable:"" help:"Read admin commands from stdin"`
	Seed      int64    `hidden:"" help:"Seed the dice for a reproducible session"`
}

func (c *HostCmd) Run(g *Globals) error {
	cfg, err := host.LoadConfig(c.Config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if c.Addr != "" {
		cfg.Host.Address = c.Addr
	}
	if c.Code != "" {
		cfg.Host.RoomCode = c.Code
	}
	if c.MaxRoll != 0 {
		cfg.Game.InitialMaxRoll = c.MaxRoll
	}
	if c.Coins {
		cfg.Game.CoinsEnabled = true
	}
	if c.StateFile != "" {
		cfg.Persist.StateFile = c.StateFile
	}
	if g.LogLevel != "" {
		cfg.Host.LogLevel = g.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := shared.SetupLogger(os.Stderr, cfg.Host.LogLevel)

	var store persist.HostStore
	if cfg.Persist.StateFile != "" {
		store = persist.NewFileStore[persist.SavedHostState](cfg.Persist.StateFile)
	}

	code := cfg.Host.RoomCode
	if code == "" {
		code = resumableCode(store)
	}
	if code == "" {
		code = roomcode.Generate()
	}

	opts := host.Options{
		Logger:          logger,
		Store:           store,
		Settings:        cfg.GameSettings(),
		MaxPlayers:      cfg.Game.MaxPlayers,
		ExtendedEffects: cfg.Game.ExtendedEffects,
		StaleAfter:      cfg.StaleAfter(),
	}
	if c.Seed != 0 {
		logger.Warn("Dice are seeded; rolls are predictable", "seed", c.Seed)
		opts.Roller = rollgen.NewSeeded(c.Seed)
	}
	session, err := host.NewSession(code, opts)
	if err != nil {
		return err
	}
	for _, name := range c.Local {
		if _, err := session.EnsureLocalPlayer(name); err != nil {
			return fmt.Errorf("adding local player %q: %w", name, err)
		}
	}

	srv := host.NewServer(cfg, session, logger)
	fmt.Fprintf(g.Stdout, "Room code: %s\n", session.Code())
	fmt.Fprintf(g.Stdout, "Players join with: deathroll join %s --server http://%s\n", session.Code(), cfg.Host.Address)

	ctx, cancel := context.WithCancel(shared.SetupSignalHandler(logger))
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return srv.Run(ctx)
	})
	if c.Console {
		console, err := NewConsole(session, g.Stdout, logger)
		if err != nil {
			return err
		}
		eg.Go(func() error {
			err := console.Run(ctx, os.Stdin)
			if errors.Is(err, errEndRequested) {
				cancel()
				return nil
			}
			return err
		})
	}
	return eg.Wait()
}

// resumableCode returns the room code of a fresh saved snapshot so a restarted
// host reopens the same room.
func resumableCode(store persist.HostStore) string {
	if store == nil {
		return ""
	}
	saved, ok, err := store.Load()
	if err != nil || !ok || !persist.Fresh(saved.Timestamp, time.Now(), persist.TTL) {
		return ""
	}
	return saved.RoomCode
}
