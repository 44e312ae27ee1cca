// Package game implements the deathroll rules as pure transitions over a
// State value.
//
// Every exported transition takes a State and returns a new State; the input
// is never mutated, so callers may keep the previous value around (for
// example to re-broadcast the last known-good state after a failure).
//
// # Rounds
//
// A round starts at InitialMaxRoll. The current player rolls in
// [1, CurrentMaxRoll]; the result becomes the new CurrentMaxRoll and the turn
// moves on. Rolling a 1 loses the round: the player's losses increase, the
// range resets to InitialMaxRoll, and the loser keeps the turn so they can
// choose the next round's range.
//
// # Two-phase rolls
//
// Rolls are resolved in two steps so that every peer can play the same
// reveal animation before the outcome is known:
//
//	s, _, err := game.InitiateRoll(s, playerID, game.RollRequest{}, roller, now)
//	// broadcast s: IsRolling is true, the result is hidden in s.Pending
//	delay := game.AnimationDelay(s.Pending.MaxRange, extendedEffects)
//	// ... after delay ...
//	s, outcome := game.CompleteRoll(s, s.Pending.ID)
//
// A roll-twice ability stops after CompleteRoll with both candidates exposed
// in RollTwiceResults; ChooseRoll then applies the chosen value.
package game
