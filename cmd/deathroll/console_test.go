package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/deathroll/internal/game"
	"github.com/lox/deathroll/internal/host"
)

// lockedBuffer is written by the console and its event subscriber
// concurrently.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type consoleHarness struct {
	console *Console
	session *host.Session
	clock   *quartz.Mock
	out     *lockedBuffer
}

func newConsoleHarness(t *testing.T, roll int) *consoleHarness {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	clk := quartz.NewMock(t)
	session, err := host.NewSession("AB23", host.Options{
		Logger:   logger,
		Clock:    clk,
		Roller:   fixedRoller(roll),
		Settings: game.Settings{InitialMaxRoll: 100},
	})
	require.NoError(t, err)
	t.Cleanup(func() { session.EndSession("") })

	out := &lockedBuffer{}
	console, err := NewConsole(session, out, logger)
	require.NoError(t, err)
	return &consoleHarness{console: console, session: session, clock: clk, out: out}
}

func (h *consoleHarness) exec(t *testing.T, lines ...string) {
	t.Helper()
	for _, line := range lines {
		require.NoError(t, h.console.Exec(line), line)
	}
}

func (h *consoleHarness) reveal(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, w := h.clock.AdvanceNext()
	w.MustWait(ctx)
}

func TestConsoleLocalGame(t *testing.T) {
	h := newConsoleHarness(t, 40)
	h.exec(t, "add alice", "add Bob", "range 500", "start")

	st := h.session.State()
	require.Len(t, st.Players, 2)
	assert.Equal(t, game.PhasePlaying, st.Phase)
	assert.Equal(t, 500, st.CurrentMaxRoll)

	h.exec(t, "roll alice")
	assert.True(t, h.session.State().IsRolling)
	h.reveal(t)

	st = h.session.State()
	require.Len(t, st.RollHistory, 1)
	assert.Equal(t, 40, st.RollHistory[0].Result)
	assert.Equal(t, 500, st.RollHistory[0].MaxRange)
	assert.Equal(t, 40, st.CurrentMaxRoll)

	cur, _ := st.CurrentPlayer()
	assert.Equal(t, "Bob", cur.Name)
	assert.Error(t, h.console.Exec("roll alice"), "not alice's turn")
}

func TestConsoleAnnouncesLosers(t *testing.T) {
	h := newConsoleHarness(t, 1)
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pr, pw := io.Pipe()
	go func() {
		defer close(done)
		_ = h.console.Run(ctx, pr)
	}()
	_, err := io.WriteString(pw, "add alice\nadd bob\nstart\nroll alice\n")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.session.State().IsRolling }, 5*time.Second, 5*time.Millisecond)
	h.reveal(t)
	require.Eventually(t, func() bool {
		return strings.Contains(h.out.String(), "alice rolled a 1 and loses the round")
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	_ = pw.Close()
	<-done
	assert.Equal(t, 1, h.session.State().Players[0].Losses)
}

func TestConsolePlayersAndKick(t *testing.T) {
	h := newConsoleHarness(t, 10)
	h.exec(t, "players")
	assert.Contains(t, h.out.String(), "No players yet")

	h.exec(t, "add alice", "add bob", "players")
	out := h.out.String()
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "local")
	assert.Contains(t, out, "Phase lobby, range 1-100, round")

	h.exec(t, "kick BOB be nice")
	assert.Contains(t, h.out.String(), "Kicked bob")
	assert.Len(t, h.session.State().Players, 1)

	assert.ErrorContains(t, h.console.Exec("kick carol"), `no player named "carol"`)
}

func TestConsoleTeamsAndSettings(t *testing.T) {
	h := newConsoleHarness(t, 10)
	h.exec(t,
		"add alice",
		"teams on",
		"teams add Red --color=#FF0000",
		"teams assign alice red",
		"coins on --initial=2",
		"effects on",
	)
	st := h.session.State()
	assert.True(t, st.TeamMode)
	require.Len(t, st.Teams, 1)
	assert.Equal(t, "Red", st.Teams[0].Name)
	assert.Equal(t, st.Teams[0].ID, st.Players[0].TeamID)
	assert.True(t, st.CoinsEnabled)
	assert.True(t, h.session.ExtendedEffects())

	h.exec(t, "teams remove red", "teams off", "coins off", "effects off")
	st = h.session.State()
	assert.Empty(t, st.Teams)
	assert.False(t, st.TeamMode)
	assert.False(t, st.CoinsEnabled)
	assert.False(t, h.session.ExtendedEffects())
}

func TestConsoleRollTwice(t *testing.T) {
	h := newConsoleHarness(t, 30)
	h.exec(t, "coins on", "add alice", "add bob", "start", "roll alice --twice")
	h.reveal(t)

	st := h.session.State()
	require.True(t, st.AwaitingChoice())
	assert.Error(t, h.console.Exec("pick alice 99"))
	h.exec(t, "pick alice 30")
	assert.Equal(t, 30, h.session.State().CurrentMaxRoll)
}

func TestConsoleRejectsBadInput(t *testing.T) {
	h := newConsoleHarness(t, 10)
	for _, line := range []string{"dance", "range", "range ten", "coins maybe", "roll", "pick alice"} {
		assert.Error(t, h.console.Exec(line), line)
	}
	assert.NoError(t, h.console.Exec("   "))

	h.exec(t, "help")
	for _, name := range []string{"start", "kick", "teams", "roll"} {
		assert.Contains(t, h.out.String(), name)
	}
}

func TestConsoleRun(t *testing.T) {
	t.Run("eof keeps the room open", func(t *testing.T) {
		h := newConsoleHarness(t, 10)
		err := h.console.Run(context.Background(), strings.NewReader("add alice\ndance\n"))
		require.NoError(t, err)
		assert.False(t, h.session.Ended())
		assert.Len(t, h.session.State().Players, 1)
		assert.Contains(t, h.out.String(), "error:")
	})

	t.Run("end closes the room", func(t *testing.T) {
		h := newConsoleHarness(t, 10)
		err := h.console.Run(context.Background(), strings.NewReader("end see you\nadd alice\n"))
		require.ErrorIs(t, err, errEndRequested)
		assert.True(t, h.session.Ended())
		assert.Empty(t, h.session.State().Players)
	})

	t.Run("context cancel stops reading", func(t *testing.T) {
		h := newConsoleHarness(t, 10)
		ctx, cancel := context.WithCancel(context.Background())
		pr, pw := io.Pipe()
		defer func() { _ = pw.Close() }()
		done := make(chan error, 1)
		go func() { done <- h.console.Run(ctx, pr) }()
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("console did not stop")
		}
	})
}
