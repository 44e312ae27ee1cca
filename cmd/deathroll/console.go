package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"

	"github.com/lox/deathroll/internal/game"
	"github.com/lox/deathroll/internal/host"
)

// errEndRequested is returned by Console.Run after the end command.
var errEndRequested = errors.New("host ended the session")

// consoleGrammar is the host admin command set. Each line typed at the
// console is parsed against it.
type consoleGrammar struct {
	Start   startCmd   `cmd:"" help:"Start the game"`
	Reset   resetCmd   `cmd:"" help:"Reset to the lobby, keeping players"`
	End     endCmd     `cmd:"" aliases:"quit" help:"End the session and disconnect everyone"`
	Players playersCmd `cmd:"" aliases:"ls" help:"List players"`
	Kick    kickCmd    `cmd:"" help:"Kick a player"`
	Range   rangeCmd   `cmd:"" help:"Set the current range"`
	Coins   coinsCmd   `cmd:"" help:"Turn coin abilities on or off"`
	Teams   teamsCmd   `cmd:"" help:"Manage teams"`
	Effects effectsCmd `cmd:"" help:"Turn extended roll animations on or off"`
	Add     addCmd     `cmd:"" help:"Add a local player"`
	Remove  removeCmd  `cmd:"" help:"Remove a local player"`
	Roll    rollForCmd `cmd:"" help:"Roll for a local player"`
	Pick    pickCmd    `cmd:"" help:"Pick a roll-twice result for a local player"`
	Help    helpCmd    `cmd:"" aliases:"?" help:"Show commands"`
}

// Console reads admin commands for a hosted session.
type Console struct {
	session *host.Session
	out     io.Writer
	logger  *log.Logger
	parser  *kong.Kong
	grammar consoleGrammar
}

func NewConsole(session *host.Session, out io.Writer, logger *log.Logger) (*Console, error) {
	c := &Console{
		session: session,
		out:     out,
		logger:  logger.WithPrefix("console"),
	}
	parser, err := kong.New(&c.grammar,
		kong.Name("host"),
		kong.Exit(func(int) {}),
		kong.Writers(out, out),
		kong.NoDefaultHelp(),
	)
	if err != nil {
		return nil, err
	}
	c.parser = parser
	return c, nil
}

// Run executes lines from in until ctx is done, in reaches EOF or the end
// command runs. EOF leaves the room open.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	unsubscribe := c.session.Subscribe(c.announce)
	defer unsubscribe()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprint(c.out, "> ")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := c.Exec(line); err != nil {
				if errors.Is(err, errEndRequested) {
					return err
				}
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
			fmt.Fprint(c.out, "> ")
		}
	}
}

// Exec runs a single command line.
func (c *Console) Exec(line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	kctx, err := c.parser.Parse(args)
	if err != nil {
		return err
	}
	return kctx.Run(c)
}

// announce prints losing rolls as they are revealed.
func (c *Console) announce(e host.Event) {
	if e.LoserID == "" {
		return
	}
	name := e.LoserID
	if p, ok := e.State.PlayerByID(e.LoserID); ok {
		name = p.Name
	}
	fmt.Fprintf(c.out, "\n%s rolled a 1 and loses the round\n", name)
}

func (c *Console) player(name string) (game.Player, error) {
	p, ok := c.session.State().PlayerByName(name)
	if !ok {
		return game.Player{}, fmt.Errorf("no player named %q", name)
	}
	return p, nil
}

func (c *Console) team(name string) (game.Team, error) {
	for _, t := range c.session.State().Teams {
		if strings.EqualFold(t.Name, name) {
			return t, nil
		}
	}
	return game.Team{}, fmt.Errorf("no team named %q", name)
}

type startCmd struct{}

func (startCmd) Run(c *Console) error {
	if err := c.session.StartGame(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Game started")
	return nil
}

type resetCmd struct{}

func (resetCmd) Run(c *Console) error {
	if err := c.session.ResetGame(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Back in the lobby")
	return nil
}

type endCmd struct {
	Reason []string `arg:"" optional:"" help:"Message shown to players"`
}

func (e *endCmd) Run(c *Console) error {
	c.session.EndSession(strings.Join(e.Reason, " "))
	return errEndRequested
}

type playersCmd struct{}

func (playersCmd) Run(c *Console) error {
	st := c.session.State()
	if len(st.Players) == 0 {
		fmt.Fprintln(c.out, "No players yet")
		return nil
	}
	current, _ := st.CurrentPlayer()
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("", "NAME", "WHERE", "STATUS", "LOSSES", "COINS", "TEAM")
	for _, p := range st.Players {
		marker := ""
		if st.Phase == game.PhasePlaying && p.ID == current.ID {
			marker = ">"
		}
		where := "remote"
		if p.IsLocal {
			where = "local"
		}
		status := "online"
		switch {
		case p.IsSpectator:
			status = "spectating"
		case !p.IsConnected:
			status = "offline"
		}
		team := "-"
		if tm, ok := st.TeamByID(p.TeamID); ok {
			team = tm.Name
		}
		t.Row(marker, p.Emoji+" "+p.Name, where, status, strconv.Itoa(p.Losses), strconv.Itoa(p.Coins), team)
	}
	fmt.Fprintln(c.out, t.String())
	fmt.Fprintf(c.out, "Phase %s, range 1-%d, round %d\n", st.Phase, st.CurrentMaxRoll, st.RoundNumber)
	return nil
}

type kickCmd struct {
	Name   string   `arg:"" help:"Player to kick"`
	Reason []string `arg:"" optional:"" help:"Message shown to the player"`
}

func (k *kickCmd) Run(c *Console) error {
	p, err := c.player(k.Name)
	if err != nil {
		return err
	}
	reason := strings.Join(k.Reason, " ")
	if reason == "" {
		reason = "Kicked by host"
	}
	if err := c.session.KickPlayer(p.ID, reason); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Kicked %s\n", p.Name)
	return nil
}

type rangeCmd struct {
	Max int `arg:"" help:"New maximum roll"`
}

func (r *rangeCmd) Run(c *Console) error {
	if err := c.session.SetRange(r.Max); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Range is now 1-%d\n", r.Max)
	return nil
}

type coinsCmd struct {
	Mode    string `arg:"" enum:"on,off" help:"on or off"`
	Initial int    `default:"3" help:"Starting coins per player"`
}

func (cc *coinsCmd) Run(c *Console) error {
	return c.session.SetCoins(cc.Mode == "on", cc.Initial)
}

type teamsCmd struct {
	On     teamsOnCmd    `cmd:"" help:"Enable team mode"`
	Off    teamsOffCmd   `cmd:"" help:"Disable team mode"`
	Add    teamAddCmd    `cmd:"" help:"Create a team"`
	Remove teamRemoveCmd `cmd:"" help:"Remove a team"`
	Assign teamAssignCmd `cmd:"" help:"Put a player on a team"`
}

type teamsOnCmd struct{}

func (teamsOnCmd) Run(c *Console) error { return c.session.SetTeamMode(true) }

type teamsOffCmd struct{}

func (teamsOffCmd) Run(c *Console) error { return c.session.SetTeamMode(false) }

type teamAddCmd struct {
	Name  string `arg:"" help:"Team name"`
	Color string `default:"#4ECDC4" help:"Team colour"`
}

func (t *teamAddCmd) Run(c *Console) error {
	id, err := c.session.CreateTeam(t.Name, t.Color)
	if err != nil {
		return err
	}
	c.logger.Debug("Team created", "team", id, "name", t.Name)
	fmt.Fprintf(c.out, "Created team %s\n", t.Name)
	return nil
}

type teamRemoveCmd struct {
	Name string `arg:"" help:"Team name"`
}

func (t *teamRemoveCmd) Run(c *Console) error {
	team, err := c.team(t.Name)
	if err != nil {
		return err
	}
	return c.session.RemoveTeam(team.ID)
}

type teamAssignCmd struct {
	Player string `arg:"" help:"Player name"`
	Team   string `arg:"" help:"Team name"`
}

func (t *teamAssignCmd) Run(c *Console) error {
	p, err := c.player(t.Player)
	if err != nil {
		return err
	}
	team, err := c.team(t.Team)
	if err != nil {
		return err
	}
	return c.session.AssignTeam(p.ID, team.ID)
}

type effectsCmd struct {
	Mode string `arg:"" enum:"on,off" help:"on or off"`
}

func (e *effectsCmd) Run(c *Console) error {
	c.session.SetExtendedEffects(e.Mode == "on")
	return nil
}

type addCmd struct {
	Name string `arg:"" help:"Player name"`
}

func (a *addCmd) Run(c *Console) error {
	if _, err := c.session.AddLocalPlayer(a.Name); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Added %s\n", a.Name)
	return nil
}

type removeCmd struct {
	Name string `arg:"" help:"Player name"`
}

func (r *removeCmd) Run(c *Console) error {
	p, err := c.player(r.Name)
	if err != nil {
		return err
	}
	return c.session.RemoveLocalPlayer(p.ID)
}

type rollForCmd struct {
	Name  string `arg:"" help:"Local player rolling"`
	Twice bool   `help:"Roll twice and pick one result"`
	Skip  bool   `help:"Pass the turn without rolling"`
	Range int    `help:"Roll against a smaller range this turn"`
	Next  string `help:"Player who goes next"`
}

func (r *rollForCmd) Run(c *Console) error {
	p, err := c.player(r.Name)
	if err != nil {
		return err
	}
	req := game.RollRequest{
		OverrideRange: r.Range,
		RollTwice:     r.Twice,
		SkipRoll:      r.Skip,
	}
	if r.Next != "" {
		next, err := c.player(r.Next)
		if err != nil {
			return err
		}
		req.NextPlayerOverride = next.ID
	}
	return c.session.RollFor(p.ID, req)
}

type pickCmd struct {
	Name   string `arg:"" help:"Local player choosing"`
	Result int    `arg:"" help:"One of the offered results"`
}

func (pc *pickCmd) Run(c *Console) error {
	p, err := c.player(pc.Name)
	if err != nil {
		return err
	}
	return c.session.ChooseFor(p.ID, pc.Result)
}

type helpCmd struct{}

func (helpCmd) Run(c *Console) error {
	for _, n := range c.parser.Model.Children {
		fmt.Fprintf(c.out, "  %-8s %s\n", n.Name, n.Help)
	}
	return nil
}
