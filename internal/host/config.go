package host

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/deathroll/internal/game"
)

// Config is the host configuration file.
type Config struct {
	Host      HostSettings
	Game      GameSettings
	Heartbeat HeartbeatSettings
	Persist   PersistSettings
}

// HostSettings controls the listener.
type HostSettings struct {
	Address    string `hcl:"address,optional"`
	PathPrefix string `hcl:"path_prefix,optional"`
	LogLevel   string `hcl:"log_level,optional"`
	RoomCode   string `hcl:"room_code,optional"`
}

// GameSettings are the starting rules for a new room.
type GameSettings struct {
	InitialMaxRoll  int  `hcl:"initial_max_roll,optional"`
	CoinsEnabled    bool `hcl:"coins_enabled,optional"`
	InitialCoins    int  `hcl:"initial_coins,optional"`
	TeamMode        bool `hcl:"team_mode,optional"`
	MaxPlayers      int  `hcl:"max_players,optional"`
	ExtendedEffects bool `hcl:"extended_effects,optional"`
}

// HeartbeatSettings controls stale connection detection.
type HeartbeatSettings struct {
	IntervalSeconds int `hcl:"interval_seconds,optional"`
	StaleSeconds    int `hcl:"stale_seconds,optional"`
}

// PersistSettings points at the saved room snapshot. An empty file disables
// persistence.
type PersistSettings struct {
	StateFile string `hcl:"state_file,optional"`
}

const (
	defaultAddress         = "localhost:8080"
	defaultPathPrefix      = "deathroll-"
	defaultLogLevel        = "info"
	defaultMaxPlayers      = 12
	defaultIntervalSeconds = 5
	defaultStaleSeconds    = 60
)

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads filename. A missing file yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var raw fileConfig
	diags = gohcl.DecodeBody(file.Body, nil, &raw)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	var cfg Config
	if raw.Host != nil {
		cfg.Host = *raw.Host
	}
	if raw.Game != nil {
		cfg.Game = *raw.Game
	}
	if raw.Heartbeat != nil {
		cfg.Heartbeat = *raw.Heartbeat
	}
	if raw.Persist != nil {
		cfg.Persist = *raw.Persist
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// fileConfig mirrors Config with every block optional.
type fileConfig struct {
	Host      *HostSettings      `hcl:"host,block"`
	Game      *GameSettings      `hcl:"game,block"`
	Heartbeat *HeartbeatSettings `hcl:"heartbeat,block"`
	Persist   *PersistSettings   `hcl:"persist,block"`
}

func (c *Config) applyDefaults() {
	if c.Host.Address == "" {
		c.Host.Address = defaultAddress
	}
	if c.Host.PathPrefix == "" {
		c.Host.PathPrefix = defaultPathPrefix
	}
	if c.Host.LogLevel == "" {
		c.Host.LogLevel = defaultLogLevel
	}
	if c.Game.InitialMaxRoll == 0 {
		c.Game.InitialMaxRoll = game.DefaultMaxRoll
	}
	if c.Game.MaxPlayers == 0 {
		c.Game.MaxPlayers = defaultMaxPlayers
	}
	if c.Heartbeat.IntervalSeconds == 0 {
		c.Heartbeat.IntervalSeconds = defaultIntervalSeconds
	}
	if c.Heartbeat.StaleSeconds == 0 {
		c.Heartbeat.StaleSeconds = defaultStaleSeconds
	}
}

// Validate checks the configuration for values the host cannot run with.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Host.Address); err != nil {
		return fmt.Errorf("invalid address %q: %w", c.Host.Address, err)
	}
	if c.Game.InitialMaxRoll < game.MinMaxRoll || c.Game.InitialMaxRoll > game.MaxMaxRoll {
		return fmt.Errorf("initial max roll must be between %d and %d", game.MinMaxRoll, game.MaxMaxRoll)
	}
	if c.Game.InitialCoins < 0 || c.Game.InitialCoins > game.MaxInitialCoins {
		return fmt.Errorf("initial coins must be between 0 and %d", game.MaxInitialCoins)
	}
	if c.Game.MaxPlayers < 1 || c.Game.MaxPlayers > len(game.Palette) {
		return fmt.Errorf("max players must be between 1 and %d", len(game.Palette))
	}
	if c.Heartbeat.IntervalSeconds < 1 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	if c.Heartbeat.StaleSeconds <= c.Heartbeat.IntervalSeconds {
		return fmt.Errorf("heartbeat stale timeout must exceed the interval")
	}
	return nil
}

// GameSettings converts the game block for the state machine.
func (c *Config) GameSettings() game.Settings {
	return game.Settings{
		InitialMaxRoll: c.Game.InitialMaxRoll,
		CoinsEnabled:   c.Game.CoinsEnabled,
		InitialCoins:   c.Game.InitialCoins,
		TeamMode:       c.Game.TeamMode,
	}
}

// HeartbeatInterval is how often stale connections are scanned for.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Heartbeat.IntervalSeconds) * time.Second
}

// StaleAfter is how long a connection may stay silent.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Heartbeat.StaleSeconds) * time.Second
}
