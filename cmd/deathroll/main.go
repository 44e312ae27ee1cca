package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// version is set by ldflags during build
var version = "dev"

// Globals are shared by every command.
type Globals struct {
	LogLevel string    `short:"l" env:"DEATHROLL_LOG_LEVEL" help:"Log level: debug, info, warn, error (overrides config)"`
	Stdout   io.Writer `kong:"-"`
}

type CLI struct {
	Globals

	Version kong.VersionFlag `short:"v" help:"Show version"`
	Host    HostCmd          `cmd:"" help:"Host a room"`
	Join    JoinCmd          `cmd:"" help:"Join a room"`
	Code    CodeCmd          `cmd:"" help:"Generate or check room codes"`
	Roll    RollCmd          `cmd:"" help:"Roll the dice once"`
}

func main() {
	// DEATHROLL_* variables in .env feed the env tags below.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}

	cli := CLI{Globals: Globals{Stdout: os.Stdout}}
	ctx := kong.Parse(&cli,
		kong.Name("deathroll"),
		kong.Description("Host-authoritative multiplayer deathroll"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
		kong.Bind(&cli.Globals),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
