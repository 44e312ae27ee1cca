package main

import (
	"fmt"

	"github.com/lox/deathroll/internal/game"
	"github.com/lox/deathroll/internal/rollgen"
)

type RollCmd struct {
	Max   int   `arg:"" optional:"" default:"100" help:"Roll between 1 and this value"`
	Count int   `short:"n" default:"1" help:"Number of rolls"`
	Seed  int64 `help:"Seed for a reproducible sequence"`

	roller game.Roller
}

func (c *RollCmd) Run(g *Globals) error {
	if c.Max < 1 || c.Max > game.MaxMaxRoll {
		return fmt.Errorf("max must be between 1 and %d", game.MaxMaxRoll)
	}
	roller := c.roller
	switch {
	case roller != nil:
	case c.Seed != 0:
		roller = rollgen.NewSeeded(c.Seed)
	default:
		roller = rollgen.New()
	}
	for range c.Count {
		n, err := roller.Roll(c.Max)
		if err != nil {
			return err
		}
		fmt.Fprintf(g.Stdout, "%d (1-%d)\n", n, c.Max)
	}
	return nil
}
