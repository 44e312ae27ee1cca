package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lox/deathroll/internal/protocol"
)

// CommandKind names what a line of input asks for.
type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandRoll
	CommandRange
	CommandPick
	CommandReconnect
	CommandHelp
	CommandQuit
)

// Command is a parsed line of input.
type Command struct {
	Kind CommandKind
	Roll protocol.RollRequest
	// NextName is the player named by "next <name>"; the caller resolves it.
	NextName string
	Value    int
}

// HelpLines describes the input syntax.
var HelpLines = []string{
	"roll (or Enter)     roll against the current range",
	"roll <n>            roll against a smaller range this turn",
	"roll twice          roll twice and keep one result (coins)",
	"skip                pass without rolling (coins)",
	"next <name>         roll and pick who goes next (coins)",
	"range <n>           set the range before the round's first roll",
	"pick <n>            keep one result of a double roll",
	"reconnect           retry the connection now",
	"quit                leave the room",
}

var errUsage = errors.New("type 'help' for commands")

// ParseCommand turns one line of input into a Command. Empty input rolls.
func ParseCommand(input string) (Command, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(input)))
	if len(fields) == 0 {
		return Command{Kind: CommandRoll}, nil
	}
	args := fields[1:]

	switch fields[0] {
	case "roll", "r":
		return parseRoll(args)
	case "twice":
		return parseRoll(append([]string{"twice"}, args...))
	case "skip":
		if len(args) != 0 {
			return Command{}, fmt.Errorf("skip takes no arguments")
		}
		return Command{Kind: CommandRoll, Roll: protocol.RollRequest{SkipRoll: true}}, nil
	case "next":
		if len(args) == 0 {
			return Command{}, fmt.Errorf("next needs a player name")
		}
		// Names keep their original case.
		name := strings.TrimSpace(strings.TrimSpace(input)[len("next"):])
		return Command{Kind: CommandRoll, NextName: name}, nil
	case "range":
		n, err := singleInt("range", args)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CommandRange, Value: n}, nil
	case "pick", "choose":
		n, err := singleInt(fields[0], args)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CommandPick, Value: n}, nil
	case "reconnect":
		return Command{Kind: CommandReconnect}, nil
	case "help", "?":
		return Command{Kind: CommandHelp}, nil
	case "quit", "exit", "q":
		return Command{Kind: CommandQuit}, nil
	}
	return Command{}, fmt.Errorf("unknown command %q: %w", fields[0], errUsage)
}

func parseRoll(args []string) (Command, error) {
	cmd := Command{Kind: CommandRoll}
	for _, arg := range args {
		switch arg {
		case "twice", "2x":
			cmd.Roll.RollTwice = true
		default:
			n, err := strconv.Atoi(arg)
			if err != nil || n < 1 {
				return Command{}, fmt.Errorf("invalid roll argument %q: %w", arg, errUsage)
			}
			cmd.Roll.OverrideRange = n
		}
	}
	return cmd, nil
}

func singleInt(name string, args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%s needs one number", name)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%s needs a number, got %q", name, args[0])
	}
	return n, nil
}
