package client

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// ClientConfig is the player configuration file.
type ClientConfig struct {
	Server  ServerConnection
	Player  PlayerSettings
	UI      UISettings
	Persist PersistSettings
}

// ServerConnection describes how to reach hosts. Durations are in seconds.
type ServerConnection struct {
	URL                string `hcl:"url,optional"`
	PathPrefix         string `hcl:"path_prefix,optional"`
	ConnectTimeout     int    `hcl:"connect_timeout,optional"`
	HeartbeatInterval  int    `hcl:"heartbeat_interval,optional"`
	ReconnectAttempts  int    `hcl:"reconnect_attempts,optional"`
	ReconnectBaseDelay int    `hcl:"reconnect_base_delay,optional"`
	ReconnectMaxDelay  int    `hcl:"reconnect_max_delay,optional"`
}

// PlayerSettings are the defaults for joining.
type PlayerSettings struct {
	Name      string `hcl:"name,optional"`
	Spectator bool   `hcl:"spectator,optional"`
}

// UISettings controls the terminal client.
type UISettings struct {
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
}

// PersistSettings points at the saved session used to rejoin after a restart.
type PersistSettings struct {
	SessionFile string `hcl:"session_file,optional"`
}

type fileConfig struct {
	Server  *ServerConnection `hcl:"server,block"`
	Player  *PlayerSettings   `hcl:"player,block"`
	UI      *UISettings       `hcl:"ui,block"`
	Persist *PersistSettings  `hcl:"persist,block"`
}

// DefaultClientConfig is used when no config file exists.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Server: ServerConnection{
			URL:                "http://localhost:8080",
			PathPrefix:         "deathroll-",
			ConnectTimeout:     30,
			HeartbeatInterval:  5,
			ReconnectAttempts:  10,
			ReconnectBaseDelay: 1,
			ReconnectMaxDelay:  30,
		},
		UI: UISettings{
			LogLevel: "warn",
			LogFile:  "deathroll-client.log",
		},
	}
}

// LoadClientConfig reads filename. A missing file yields the defaults.
func LoadClientConfig(filename string) (*ClientConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultClientConfig(), nil
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

	var cfg ClientConfig
	if raw.Server != nil {
		cfg.Server = *raw.Server
	}
	if raw.Player != nil {
		cfg.Player = *raw.Player
	}
	if raw.UI != nil {
		cfg.UI = *raw.UI
	}
	if raw.Persist != nil {
		cfg.Persist = *raw.Persist
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills every unset field from DefaultClientConfig.
func (c *ClientConfig) applyDefaults() {
	d := DefaultClientConfig()
	setDefault(&c.Server.URL, d.Server.URL)
	setDefault(&c.Server.PathPrefix, d.Server.PathPrefix)
	setDefault(&c.Server.ConnectTimeout, d.Server.ConnectTimeout)
	setDefault(&c.Server.HeartbeatInterval, d.Server.HeartbeatInterval)
	setDefault(&c.Server.ReconnectAttempts, d.Server.ReconnectAttempts)
	setDefault(&c.Server.ReconnectBaseDelay, d.Server.ReconnectBaseDelay)
	setDefault(&c.Server.ReconnectMaxDelay, d.Server.ReconnectMaxDelay)
	setDefault(&c.UI.LogLevel, d.UI.LogLevel)
	setDefault(&c.UI.LogFile, d.UI.LogFile)
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

// Validate rejects settings the client cannot connect with.
func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("server url %q is not an absolute URL", c.Server.URL)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("server url scheme %q is not supported", u.Scheme)
	}
	switch {
	case c.Server.ConnectTimeout <= 0:
		return fmt.Errorf("connect_timeout must be positive")
	case c.Server.HeartbeatInterval <= 0:
		return fmt.Errorf("heartbeat_interval must be positive")
	case c.Server.ReconnectAttempts < 0:
		return fmt.Errorf("reconnect_attempts cannot be negative")
	case c.Server.ReconnectBaseDelay <= 0:
		return fmt.Errorf("reconnect_base_delay must be positive")
	case c.Server.ReconnectMaxDelay < c.Server.ReconnectBaseDelay:
		return fmt.Errorf("reconnect_max_delay must be at least reconnect_base_delay")
	}
	if _, err := log.ParseLevel(c.UI.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Options converts the server block into client options.
func (c *ClientConfig) Options() Options {
	return Options{
		PathPrefix:        c.Server.PathPrefix,
		ConnectTimeout:    time.Duration(c.Server.ConnectTimeout) * time.Second,
		HeartbeatInterval: time.Duration(c.Server.HeartbeatInterval) * time.Second,
		MaxAttempts:       c.Server.ReconnectAttempts,
		BaseDelay:         time.Duration(c.Server.ReconnectBaseDelay) * time.Second,
		MaxDelay:          time.Duration(c.Server.ReconnectMaxDelay) * time.Second,
	}
}
