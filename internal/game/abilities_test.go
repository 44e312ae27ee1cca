package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coinGame(t *testing.T, coins int, ids ...string) State {
	t.Helper()
	return newPlaying(t, Settings{InitialMaxRoll: 100, CoinsEnabled: true, InitialCoins: coins}, ids...)
}

func TestRollTwiceDeductsOnceAndAwaitsChoice(t *testing.T) {
	s := coinGame(t, 3, "a", "b")

	s, _, err := InitiateRoll(s, "a", RollRequest{RollTwice: true}, rolls(60, 20), testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Players[0].Coins)
	assert.Empty(t, s.RollTwiceResults, "candidates hidden during animation")

	s, out := CompleteRoll(s, s.Pending.ID)
	require.True(t, out.AwaitingChoice)
	assert.Equal(t, []int{60, 20}, s.RollTwiceResults)
	assert.Equal(t, "a", s.RollTwicePlayerID)
	assert.False(t, s.IsRolling)
	assert.Equal(t, 100, s.CurrentMaxRoll, "nothing applied before the choice")
	assert.Equal(t, 2, s.Players[0].Coins, "revealing does not charge again")

	_, _, err = ChooseRoll(s, "a", 33)
	assert.ErrorIs(t, err, ErrInvalidChoice)
	_, _, err = ChooseRoll(s, "b", 20)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	s, out, err = ChooseRoll(s, "a", 20)
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, 20, s.CurrentMaxRoll)
	assert.Equal(t, 20, s.LastRoll)
	assert.Empty(t, s.RollTwiceResults)
	assert.Equal(t, 2, s.Players[0].Coins)
	assert.Equal(t, 1, s.CurrentPlayerIndex)
	require.Len(t, s.RollHistory, 1)
	assert.Equal(t, 20, s.RollHistory[0].Result)

	_, _, err = ChooseRoll(s, "a", 20)
	assert.ErrorIs(t, err, ErrStaleIntent)
}

func TestRollTwiceChoosingOneLoses(t *testing.T) {
	s := coinGame(t, 1, "a", "b")
	s, _ = roll(t, s, RollRequest{RollTwice: true}, rolls(1, 80))

	s, out, err := ChooseRoll(s, "a", 1)
	require.NoError(t, err)
	assert.True(t, out.Lost)
	assert.Equal(t, 1, s.Players[0].Losses)
}

func TestBestChoicePicksHigher(t *testing.T) {
	s := coinGame(t, 1, "a", "b")
	_, ok := BestChoice(s)
	assert.False(t, ok)

	s, _ = roll(t, s, RollRequest{RollTwice: true}, rolls(12, 70))
	best, ok := BestChoice(s)
	require.True(t, ok)
	assert.Equal(t, 70, best)
}

func TestInsufficientCoins(t *testing.T) {
	s := coinGame(t, 1, "a", "b")

	next, _, err := InitiateRoll(s, "a", RollRequest{SkipRoll: true}, rolls(), testNow)
	assert.ErrorIs(t, err, ErrInsufficientCoins)
	assert.Equal(t, s, next)

	_, _, err = InitiateRoll(s, "a", RollRequest{RollTwice: true, NextPlayerOverride: "b"}, rolls(5, 6), testNow)
	assert.ErrorIs(t, err, ErrInsufficientCoins)
}

func TestAbilitiesRequireCoinsEnabled(t *testing.T) {
	s := newPlaying(t, Settings{}, "a", "b")
	_, _, err := InitiateRoll(s, "a", RollRequest{RollTwice: true}, rolls(5, 6), testNow)
	assert.ErrorIs(t, err, ErrCoinsDisabled)
}

func TestSkipRollPassesTurnWithoutRolling(t *testing.T) {
	s := coinGame(t, 2, "a", "b", "c")

	r := rolls()
	s, out, err := InitiateRoll(s, "a", RollRequest{SkipRoll: true}, r, testNow)
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.Empty(t, r.calls)
	assert.Equal(t, 0, s.Players[0].Coins)
	assert.Equal(t, 1, s.CurrentPlayerIndex)
	assert.Equal(t, 100, s.CurrentMaxRoll)
	assert.Empty(t, s.RollHistory)
	assert.Equal(t, 1, s.RollsThisRound)
	assert.False(t, s.Busy())
}

func TestChooseNextPlayer(t *testing.T) {
	s := coinGame(t, 2, "a", "b", "c")

	s, _ = roll(t, s, RollRequest{NextPlayerOverride: "c"}, rolls(50))
	assert.Equal(t, "c", s.Players[s.CurrentPlayerIndex].ID)
	assert.Equal(t, 1, s.Players[0].Coins)
}

func TestChooseNextIgnoredOnLoss(t *testing.T) {
	s := coinGame(t, 2, "a", "b", "c")
	s, out := roll(t, s, RollRequest{NextPlayerOverride: "c"}, rolls(1))
	assert.True(t, out.Lost)
	assert.Equal(t, "a", s.Players[s.CurrentPlayerIndex].ID)
}

func TestChooseNextRejectsIneligibleTarget(t *testing.T) {
	s := coinGame(t, 2, "a", "b", "c")
	s = SetPlayerConnected(s, "c", false)

	_, _, err := InitiateRoll(s, "a", RollRequest{NextPlayerOverride: "c"}, rolls(5), testNow)
	assert.ErrorIs(t, err, ErrInvalidTarget)
	_, _, err = InitiateRoll(s, "a", RollRequest{NextPlayerOverride: "a"}, rolls(5), testNow)
	assert.ErrorIs(t, err, ErrInvalidTarget)
	_, _, err = InitiateRoll(s, "a", RollRequest{NextPlayerOverride: "zzz"}, rolls(5), testNow)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestChooseNextTargetDropsDuringAnimation(t *testing.T) {
	s := coinGame(t, 2, "a", "b", "c")
	s, _, err := InitiateRoll(s, "a", RollRequest{NextPlayerOverride: "c"}, rolls(50), testNow)
	require.NoError(t, err)

	s = SetPlayerConnected(s, "c", false)
	s, _ = CompleteRoll(s, s.Pending.ID)
	assert.Equal(t, "b", s.Players[s.CurrentPlayerIndex].ID)
}

func TestRequestCost(t *testing.T) {
	assert.Equal(t, 0, RollRequest{}.Cost())
	assert.Equal(t, 1, RollRequest{RollTwice: true}.Cost())
	assert.Equal(t, 2, RollRequest{RollTwice: true, NextPlayerOverride: "x"}.Cost())
	assert.Equal(t, 3, RollRequest{SkipRoll: true, NextPlayerOverride: "x"}.Cost())
}
