package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/lox/deathroll/cmd/deathroll/shared"
	"github.com/lox/deathroll/internal/client"
	"github.com/lox/deathroll/internal/persist"
	"github.com/lox/deathroll/internal/roomcode"
	"github.com/lox/deathroll/internal/tui"
)

type JoinCmd struct {
	Code        string `arg:"" help:"Room code shown by the host"`
	Config      string `short:"c" default:"deathroll-client.hcl" env:"DEATHROLL_CLIENT_CONFIG" help:"Path to HCL configuration file"`
	Server      string `short:"s" env:"DEATHROLL_SERVER" help:"Host URL (overrides config)"`
	Name        string `short:"n" env:"DEATHROLL_NAME" help:"Player name (overrides config)"`
	Spectator   bool   `help:"Watch without taking turns"`
	LogFile     string `env:"DEATHROLL_LOG_FILE" help:"Log file path (overrides config)"`
	SessionFile string `env:"DEATHROLL_SESSION_FILE" help:"Where to save the session for rejoining (overrides config)"`
}

func (c *JoinCmd) Run(g *Globals) error {
	if err := roomcode.Validate(c.Code); err != nil {
		return fmt.Errorf("invalid room code %q: %w", c.Code, err)
	}

	cfg, err := client.LoadClientConfig(c.Config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if c.Server != "" {
		cfg.Server.URL = c.Server
	}
	if c.Name != "" {
		cfg.Player.Name = c.Name
	}
	if c.Spectator {
		cfg.Player.Spectator = true
	}
	if c.LogFile != "" {
		cfg.UI.LogFile = c.LogFile
	}
	if c.SessionFile != "" {
		cfg.Persist.SessionFile = c.SessionFile
	}
	if g.LogLevel != "" {
		cfg.UI.LogLevel = g.LogLevel
	}

	if cfg.Player.Name == "" {
		fmt.Fprint(g.Stdout, "Enter your player name: ")
		input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		cfg.Player.Name = strings.TrimSpace(input)
		if cfg.Player.Name == "" {
			return fmt.Errorf("player name is required")
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logFile, err := os.OpenFile(cfg.UI.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()
	logger := shared.SetupLogger(logFile, cfg.UI.LogLevel)

	if termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	opts := cfg.Options()
	opts.Logger = logger
	if cfg.Persist.SessionFile != "" {
		opts.Store = persist.NewFileStore[persist.SavedPlayerSession](cfg.Persist.SessionFile)
	}
	conn := client.New(cfg.Server.URL, opts)
	defer func() { _ = conn.Close() }()

	model := tui.NewModel(conn, roomcode.Normalize(c.Code), logger)
	program := tea.NewProgram(model, tea.WithAltScreen())
	unsubscribe := conn.Subscribe(tui.Forward(program))
	defer unsubscribe()

	ctx := shared.SetupSignalHandler(logger)
	logger.Info("Joining room", "code", c.Code, "server", cfg.Server.URL, "name", cfg.Player.Name)

	// Join in the background so the UI can show progress while dialing.
	// Failures reach the UI as client events.
	go func() {
		if err := conn.JoinRoom(ctx, c.Code, cfg.Player.Name, cfg.Player.Spectator); err != nil {
			logger.Error("Join failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running terminal UI: %w", err)
	}
	return nil
}
