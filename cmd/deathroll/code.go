package main

import (
	"fmt"

	"github.com/lox/deathroll/internal/roomcode"
)

type CodeCmd struct {
	New   CodeNewCmd   `cmd:"" default:"1" help:"Generate room codes"`
	Check CodeCheckCmd `cmd:"" help:"Check a room code"`
}

type CodeNewCmd struct {
	Count   int    `short:"n" default:"1" help:"Number of codes to generate"`
	Address bool   `help:"Print the peer address instead of the bare code"`
	Prefix  string `default:"deathroll-" env:"DEATHROLL_PATH_PREFIX" help:"Peer address prefix"`
}

func (c *CodeNewCmd) Run(g *Globals) error {
	if c.Count < 1 {
		return fmt.Errorf("count must be at least 1")
	}
	for range c.Count {
		code := roomcode.Generate()
		if c.Address {
			code = roomcode.PeerAddress(c.Prefix, code)
		}
		fmt.Fprintln(g.Stdout, code)
	}
	return nil
}

type CodeCheckCmd struct {
	Code string `arg:"" help:"Room code to check"`
}

func (c *CodeCheckCmd) Run(g *Globals) error {
	if err := roomcode.Validate(c.Code); err != nil {
		return fmt.Errorf("invalid room code %q: %w", c.Code, err)
	}
	fmt.Fprintf(g.Stdout, "%s is valid\n", roomcode.Normalize(c.Code))
	return nil
}
