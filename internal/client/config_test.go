package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClientConfigMissingFile(t *testing.T) {
	cfg, err := LoadClientConfig(filepath.Join(t.TempDir(), "missing.hcl"))
	require.NoError(t, err)
	assert.Equal(t, DefaultClientConfig(), cfg)
	require.NoError(t, cfg.Validate())

	opts := cfg.Options()
	assert.Equal(t, 30*time.Second, opts.ConnectTimeout)
	assert.Equal(t, 5*time.Second, opts.HeartbeatInterval)
	assert.Equal(t, 10, opts.MaxAttempts)
	assert.Equal(t, time.Second, opts.BaseDelay)
	assert.Equal(t, 30*time.Second, opts.MaxDelay)
}

func TestLoadClientConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
server {
  url                = "https://dice.example.com"
  reconnect_attempts = 3
}

player {
  name      = "alice"
  spectator = true
}

persist {
  session_file = "/tmp/alice.json"
}
`), 0o644))

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://dice.example.com", cfg.Server.URL)
	assert.Equal(t, 3, cfg.Server.ReconnectAttempts)
	assert.Equal(t, 30, cfg.Server.ConnectTimeout)
	assert.Equal(t, "alice", cfg.Player.Name)
	assert.True(t, cfg.Player.Spectator)
	assert.Equal(t, "warn", cfg.UI.LogLevel)
	assert.Equal(t, "/tmp/alice.json", cfg.Persist.SessionFile)
}

func TestLoadClientConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`server { url = `), 0o644))
	_, err := LoadClientConfig(path)
	assert.Error(t, err)
}

func TestClientConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ClientConfig)
	}{
		{"no url", func(c *ClientConfig) { c.Server.URL = "" }},
		{"relative url", func(c *ClientConfig) { c.Server.URL = "localhost:8080" }},
		{"ftp url", func(c *ClientConfig) { c.Server.URL = "ftp://host:21" }},
		{"zero timeout", func(c *ClientConfig) { c.Server.ConnectTimeout = 0 }},
		{"zero heartbeat", func(c *ClientConfig) { c.Server.HeartbeatInterval = 0 }},
		{"negative attempts", func(c *ClientConfig) { c.Server.ReconnectAttempts = -1 }},
		{"max below base", func(c *ClientConfig) { c.Server.ReconnectMaxDelay = 0 }},
		{"bad log level", func(c *ClientConfig) { c.UI.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultClientConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
