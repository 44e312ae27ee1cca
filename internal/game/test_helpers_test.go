package game

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptedRoller returns a fixed sequence of results.
type scriptedRoller struct {
	results []int
	calls   []int
}

func rolls(results ...int) *scriptedRoller {
	return &scriptedRoller{results: results}
}

func (r *scriptedRoller) Roll(maxRange int) (int, error) {
	r.calls = append(r.calls, maxRange)
	if len(r.results) == 0 {
		return 0, fmt.Errorf("scripted roller exhausted")
	}
	v := r.results[0]
	r.results = r.results[1:]
	if v > maxRange {
		v = maxRange
	}
	return v, nil
}

var testNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func remote(id, name string) Player {
	return Player{ID: id, Name: name, IsConnected: true, ConnectionID: "conn-" + id}
}

// newPlaying builds a started game with the given remote players.
func newPlaying(t *testing.T, settings Settings, ids ...string) State {
	t.Helper()
	s := NewState(settings)
	for _, id := range ids {
		s = AddPlayer(s, remote(id, "name-"+id))
	}
	s, err := StartGame(s)
	require.NoError(t, err)
	return s
}

// roll runs both phases of a single roll for the current player.
func roll(t *testing.T, s State, req RollRequest, r Roller) (State, Outcome) {
	t.Helper()
	cur, ok := s.CurrentPlayer()
	require.True(t, ok)
	s, _, err := InitiateRoll(s, cur.ID, req, r, testNow)
	require.NoError(t, err)
	require.NotNil(t, s.Pending)
	return CompleteRoll(s, s.Pending.ID)
}

// assertCurrentEligible checks the rotation invariant.
func assertCurrentEligible(t *testing.T, s State) {
	t.Helper()
	if s.Phase != PhasePlaying || s.Busy() {
		return
	}
	anyone := false
	for _, p := range s.Players {
		if p.CanAct() {
			anyone = true
		}
	}
	if !anyone {
		return
	}
	cur, ok := s.CurrentPlayer()
	require.True(t, ok, "current index %d out of range", s.CurrentPlayerIndex)
	require.True(t, cur.CanAct(), "current player %s cannot act", cur.ID)
}
