// Package tui renders a player's view of a deathroll room with Bubble Tea and
// turns typed commands into intents for the host.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/lox/deathroll/internal/client"
	"github.com/lox/deathroll/internal/game"
	"github.com/lox/deathroll/internal/protocol"
)

const reconnectTimeout = 30 * time.Second

// Intents is what the model needs from a player session.
type Intents interface {
	PlayerID() string
	RequestRoll(req protocol.RollRequest) error
	SetRange(maxRange int) error
	ChooseRoll(chosen int) error
	ManualReconnect(ctx context.Context) error
}

// EventMsg carries a client event into the Bubble Tea loop.
type EventMsg struct {
	Event client.Event
}

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Forward returns a client subscriber that feeds events to p.
func Forward(p Sender) func(client.Event) {
	return func(e client.Event) { p.Send(EventMsg{Event: e}) }
}

type reconnectResultMsg struct {
	err error
}

// Model is the Bubble Tea model for one player.
type Model struct {
	intents Intents
	logger  *log.Logger
	room    string

	logViewport viewport.Model
	input       textinput.Model
	focusedPane int // 0 = log, 1 = input

	gameLog  []string
	state    game.State
	hasState bool
	lastRoll *game.RollEntry

	status    client.Status
	quality   client.NetworkQuality
	latency   time.Duration
	reconnect client.ReconnectionState
	ended     string

	width       int
	height      int
	initialized bool
	quitting    bool
}

// NewModel creates a model that submits intents through intents.
func NewModel(intents Intents, room string, logger *log.Logger) *Model {
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = "roll, roll twice, skip, next <name>, range <n>, pick <n>"
	ti.Focus()
	ti.CharLimit = 64
	ti.Width = 64
	ti.PromptStyle = TurnStyle
	ti.TextStyle = lipgloss.NewStyle().Foreground(fg)
	ti.Prompt = "> "

	return &Model{
		intents:     intents,
		logger:      logger.WithPrefix("tui"),
		room:        room,
		logViewport: vp,
		input:       ti,
		focusedPane: 1,
	}
}

// Init initializes the TUI model
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages in the TUI
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case EventMsg:
		m.apply(msg.Event)
		return m, nil

	case reconnectResultMsg:
		if msg.err != nil {
			m.AddLogEntry(ErrorStyle.Render("Reconnect failed: " + msg.err.Error()))
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "tab":
			if m.focusedPane == 0 {
				m.focusedPane = 1
				m.input.Focus()
			} else {
				m.focusedPane = 0
				m.input.Blur()
			}
		case "enter":
			if m.focusedPane == 1 {
				line := m.input.Value()
				m.input.SetValue("")
				if cmd := m.submit(line); cmd != nil {
					return m, cmd
				}
			}
		case "up", "k":
			if m.focusedPane == 0 {
				m.logViewport.ScrollUp(1)
			}
		case "down", "j":
			if m.focusedPane == 0 {
				m.logViewport.ScrollDown(1)
			}
		case "pgup":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageUp()
			}
		case "pgdown":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageDown()
			}
		}
	}

	var cmd tea.Cmd
	if m.focusedPane == 1 {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit runs one line of input. It returns a command when the line needs
// work outside the update loop.
func (m *Model) submit(line string) tea.Cmd {
	cmd, err := ParseCommand(line)
	if err != nil {
		m.AddLogEntry(ErrorStyle.Render(err.Error()))
		return nil
	}

	switch cmd.Kind {
	case CommandQuit:
		m.quitting = true
		return tea.Quit
	case CommandHelp:
		for _, l := range HelpLines {
			m.AddLogEntry(InfoStyle.Render("  " + l))
		}
		return nil
	case CommandReconnect:
		m.AddLogEntry(InfoStyle.Render("Reconnecting..."))
		intents := m.intents
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), reconnectTimeout)
			defer cancel()
			return reconnectResultMsg{err: intents.ManualReconnect(ctx)}
		}
	}

	if m.ended != "" {
		m.AddLogEntry(ErrorStyle.Render("You are no longer in the room"))
		return nil
	}

	switch cmd.Kind {
	case CommandRoll:
		req := cmd.Roll
		if cmd.NextName != "" {
			target, ok := m.state.PlayerByName(cmd.NextName)
			if !ok {
				m.AddLogEntry(ErrorStyle.Render(fmt.Sprintf("No player named %q", cmd.NextName)))
				return nil
			}
			req.NextPlayerOverride = target.ID
		}
		err = m.intents.RequestRoll(req)
	case CommandRange:
		err = m.intents.SetRange(cmd.Value)
	case CommandPick:
		err = m.intents.ChooseRoll(cmd.Value)
	}
	if err != nil {
		m.logger.Debug("Intent not sent", "error", err)
		m.AddLogEntry(ErrorStyle.Render(err.Error()))
	}
	return nil
}

// apply folds a client event into the view.
func (m *Model) apply(e client.Event) {
	switch e := e.(type) {
	case client.StatusChange:
		m.status = e.Status
		if e.Status == client.StatusConnected {
			m.reconnect = client.ReconnectionState{}
		}
	case client.JoinAccepted:
		if e.Reconnected {
			m.AddLogEntry(SuccessStyle.Render("Reconnected"))
		} else {
			m.AddLogEntry(SuccessStyle.Render("Joined room " + m.room))
		}
		m.setState(e.State)
	case client.StateUpdate:
		m.setState(e.State)
	case client.GameOver:
		name := e.LoserID
		if p, ok := m.state.PlayerByID(e.LoserID); ok {
			name = PlayerStyle(p.Color).Render(p.Name)
		}
		m.AddLogEntry(ErrorStyle.Render("💀 ") + name + ErrorStyle.Render(" rolled a 1 and loses the round"))
	case client.JoinRejected:
		m.ended = e.Reason
		m.AddLogEntry(ErrorStyle.Render("Join rejected: " + e.Reason))
	case client.Kicked:
		m.ended = e.Reason
		m.AddLogEntry(ErrorStyle.Render("Removed from room: " + e.Reason))
	case client.ReconnectionState:
		m.reconnect = e
		switch {
		case e.Exhausted:
			m.AddLogEntry(ErrorStyle.Render("Could not reconnect. Type 'reconnect' to try again."))
		case e.Reconnecting && e.Attempt > 0:
			m.AddLogEntry(WarningStyle.Render(fmt.Sprintf("Connection lost, retry %d/%d in %s",
				e.Attempt, e.MaxAttempts, e.NextDelay)))
		}
	case client.NetworkQualityChange:
		m.quality = e.Quality
	case client.LatencyUpdate:
		m.latency = e.Latency
	case client.ErrorEvent:
		m.logger.Debug("Client error", "error", e.Err, "recoverable", e.Recoverable)
		if !e.Recoverable {
			m.AddLogEntry(ErrorStyle.Render(e.Err.Error()))
		}
	}
}

func (m *Model) setState(st game.State) {
	m.logNewRolls(st)
	m.state = st
	m.hasState = true
}

// logNewRolls logs history entries that arrived since the last state.
func (m *Model) logNewRolls(st game.State) {
	history := st.RollHistory
	if len(history) == 0 {
		m.lastRoll = nil
		return
	}

	// Without a known previous roll (first state, reset, eviction) only the
	// latest roll is shown.
	start := len(history) - 1
	if m.lastRoll != nil {
		for i := len(history) - 1; i >= 0; i-- {
			if sameRoll(history[i], *m.lastRoll) {
				start = i + 1
				break
			}
		}
	}
	for _, entry := range history[start:] {
		m.AddLogEntry(FormatRoll(entry))
	}
	last := history[len(history)-1]
	m.lastRoll = &last
}

func sameRoll(a, b game.RollEntry) bool {
	return a.PlayerID == b.PlayerID && a.Result == b.Result && a.MaxRange == b.MaxRange && a.Timestamp.Equal(b.Timestamp)
}

// FormatRoll renders one history entry.
func FormatRoll(e game.RollEntry) string {
	name := PlayerStyle(e.Color).Render(e.Emoji + " " + e.PlayerName)
	result := RollStyle.Render(fmt.Sprintf("%d", e.Result))
	if e.Result == 1 {
		result = ErrorStyle.Render("1")
	}
	return fmt.Sprintf("%s rolls %s (1-%d)", name, result, e.MaxRange)
}

// AddLogEntry adds an entry to the game log
func (m *Model) AddLogEntry(entry string) {
	m.gameLog = append(m.gameLog, entry)
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}

// Log returns the log lines.
func (m *Model) Log() []string {
	return append([]string(nil), m.gameLog...)
}

// View renders the TUI
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := m.renderHeader()
	headerHeight := lipgloss.Height(header)

	actionContent := m.renderActionPane()
	actionHeight := lipgloss.Height(actionContent) + 2
	actionPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#04B575")).
		Width(max(m.width-2, 1)).
		Render(actionContent)

	sidebarContent := m.renderSidebar()
	sidebarWidth := max(lipgloss.Width(sidebarContent), 28)
	paneHeight := max(m.height-headerHeight-actionHeight-2, 1)

	sidebarPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(sidebarWidth).
		Height(paneHeight).
		Render(sidebarContent)

	logWidth := max(m.width-sidebarWidth-4, 1)
	m.logViewport.Width = logWidth
	m.logViewport.Height = paneHeight
	if !m.initialized && logWidth > 1 && paneHeight > 1 {
		m.logViewport.GotoBottom()
		m.initialized = true
	}

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(logWidth).
		Height(paneHeight)
	if m.focusedPane == 0 {
		logStyle = logStyle.BorderForeground(lipgloss.Color("#04B575"))
	}
	logPane := logStyle.Render(m.logViewport.View())

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, logPane, sidebarPane)
	return lipgloss.JoinVertical(lipgloss.Left, header, topRow, actionPane)
}

func (m *Model) renderHeader() string {
	parts := []string{HeaderStyle.Render("DEATHROLL " + m.room), m.status.String()}
	switch m.status {
	case client.StatusConnected:
		parts = append(parts, QualityStyle(m.quality).Render(fmt.Sprintf("%s %dms", m.quality, m.latency.Milliseconds())))
	case client.StatusReconnecting:
		if m.reconnect.Attempt > 0 {
			parts = append(parts, fmt.Sprintf("attempt %d/%d", m.reconnect.Attempt, m.reconnect.MaxAttempts))
		}
	}
	return strings.Join(parts, InfoStyle.Render(" • "))
}

func (m *Model) renderSidebar() string {
	var b strings.Builder
	if !m.hasState {
		b.WriteString(InfoStyle.Render("Waiting for the host..."))
		return b.String()
	}

	st := m.state
	b.WriteString(WarningStyle.Render(fmt.Sprintf("Range: 1-%d", st.CurrentMaxRoll)))
	b.WriteString("\n")
	b.WriteString(InfoStyle.Render(fmt.Sprintf("Round %d", st.RoundNumber)))
	b.WriteString("\n\n")

	me := m.intents.PlayerID()
	current, hasCurrent := st.CurrentPlayer()
	for _, p := range st.Players {
		marker := "  "
		if st.Phase == game.PhasePlaying && hasCurrent && p.ID == current.ID {
			marker = "▶ "
		}
		line := marker + PlayerStyle(p.Color).Render(p.Emoji+" "+p.Name)
		if p.ID == me {
			line += InfoStyle.Render(" (you)")
		}
		line += fmt.Sprintf("  %d💀", p.Losses)
		if st.CoinsEnabled {
			line += fmt.Sprintf(" %d🪙", p.Coins)
		}
		switch {
		case p.IsSpectator:
			line += InfoStyle.Render(" spectating")
		case !p.IsConnected:
			line += ErrorStyle.Render(" offline")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if st.TeamMode && len(st.Teams) > 0 {
		b.WriteString("\n")
		b.WriteString(InfoStyle.Render("Teams:"))
		b.WriteString("\n")
		for _, t := range st.Teams {
			b.WriteString(fmt.Sprintf("  %s  %d💀\n", PlayerStyle(t.Color).Render(t.Name), t.Losses))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderActionPane() string {
	var b strings.Builder
	b.WriteString(m.turnLine())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.focusedPane == 0 {
		b.WriteString(InfoStyle.Render("Log focused: ↑↓ scroll, PgUp/PgDn half page, Tab to input"))
	} else {
		b.WriteString(InfoStyle.Render("Enter to roll • 'help' for commands • Tab to scroll log • Ctrl+C to quit"))
	}
	return b.String()
}

// turnLine says whose move it is.
func (m *Model) turnLine() string {
	if m.ended != "" {
		return ErrorStyle.Render(m.ended)
	}
	if !m.hasState {
		return TurnStyle.Render("Connecting...")
	}
	st := m.state
	if st.Phase != game.PhasePlaying {
		return TurnStyle.Render("Waiting for the host to start the game")
	}
	me := m.intents.PlayerID()
	if len(st.RollTwiceResults) > 0 {
		if st.RollTwicePlayerID == me {
			return ActionsStyle.Render(fmt.Sprintf("Pick a result: %v (pick <n>)", st.RollTwiceResults))
		}
		return TurnStyle.Render("Waiting for a roll-twice choice")
	}
	if st.IsRolling {
		return TurnStyle.Render("🎲 Rolling...")
	}
	current, ok := st.CurrentPlayer()
	if !ok {
		return TurnStyle.Render("Waiting for players")
	}
	if current.ID == me {
		return ActionsStyle.Render(fmt.Sprintf("Your turn: roll 1-%d", st.CurrentMaxRoll))
	}
	return TurnStyle.Render("Waiting for") + " " + PlayerStyle(current.Color).Render(current.Name)
}
