package game

import (
	"fmt"
	"strconv"
	"time"
)

// Ability costs in coins.
const (
	CostRollTwice  = 1
	CostChooseNext = 1
	CostSkipRoll   = 2
)

// Roller produces a roll in [1, maxRange].
type Roller interface {
	Roll(maxRange int) (int, error)
}

// RollRequest describes a roll intent and the abilities attached to it.
type RollRequest struct {
	// OverrideRange, when positive, rolls against a smaller range than
	// CurrentMaxRoll for this roll only.
	OverrideRange      int
	RollTwice          bool
	NextPlayerOverride string
	SkipRoll           bool
}

// Cost returns the coins the request spends.
func (r RollRequest) Cost() int {
	cost := 0
	if r.SkipRoll {
		cost += CostSkipRoll
	}
	if r.RollTwice {
		cost += CostRollTwice
	}
	if r.NextPlayerOverride != "" {
		cost += CostChooseNext
	}
	return cost
}

// Outcome summarises what a completed roll did.
type Outcome struct {
	// Applied is false when the completion was stale and nothing changed.
	Applied        bool
	AwaitingChoice bool
	Skipped        bool
	PlayerID       string
	Result         int
	Lost           bool
}

// InitiateRoll is Phase 1. It validates the intent, spends coins, and freezes
// the result in s.Pending without applying any consequence. A skip-roll
// intent has no animation and is applied immediately.
func InitiateRoll(s State, actorID string, req RollRequest, roller Roller, now time.Time) (State, Outcome, error) {
	if s.Phase != PhasePlaying {
		return s, Outcome{}, ErrWrongPhase
	}
	if s.Busy() {
		return s, Outcome{}, ErrStaleIntent
	}
	cur, ok := s.CurrentPlayer()
	if !ok || cur.ID != actorID {
		return s, Outcome{}, ErrNotYourTurn
	}
	if cur.IsSpectator {
		return s, Outcome{}, ErrSpectator
	}
	if req.SkipRoll && req.RollTwice {
		return s, Outcome{}, ErrConflictingIntent
	}
	if req.NextPlayerOverride != "" {
		target, ok := s.PlayerByID(req.NextPlayerOverride)
		if !ok || !target.CanAct() || target.ID == actorID {
			return s, Outcome{}, ErrInvalidTarget
		}
	}

	maxRange := s.CurrentMaxRoll
	if req.OverrideRange > 0 {
		if req.OverrideRange > s.CurrentMaxRoll {
			return s, Outcome{}, fmt.Errorf("%w: override %d above current %d", ErrInvalidRange, req.OverrideRange, s.CurrentMaxRoll)
		}
		maxRange = req.OverrideRange
	}

	// The balance check and the deduction happen in this one transition.
	cost := req.Cost()
	if cost > 0 {
		if !s.CoinsEnabled {
			return s, Outcome{}, ErrCoinsDisabled
		}
		if cur.Coins < cost {
			return s, Outcome{}, ErrInsufficientCoins
		}
	}

	if req.SkipRoll {
		next := s.Clone()
		next.Players[next.CurrentPlayerIndex].Coins -= cost
		next.LastLoserID = ""
		next.LastLoserTeamID = ""
		next.RollsThisRound++
		advanceTurn(&next, next.CurrentPlayerIndex, req.NextPlayerOverride)
		return EnsureCurrentEligible(next), Outcome{Applied: true, Skipped: true, PlayerID: actorID}, nil
	}

	draws := 1
	if req.RollTwice {
		draws = 2
	}
	results := make([]int, 0, draws)
	for i := 0; i < draws; i++ {
		v, err := roller.Roll(maxRange)
		if err != nil {
			return s, Outcome{}, err
		}
		results = append(results, v)
	}

	next := s.Clone()
	next.Players[next.CurrentPlayerIndex].Coins -= cost
	next.lastRollID++
	next.Pending = &PendingRoll{
		ID:                 next.lastRollID,
		PlayerID:           actorID,
		MaxRange:           maxRange,
		Results:            results,
		NextPlayerOverride: req.NextPlayerOverride,
		RolledAt:           now,
	}
	next.IsRolling = true
	next.LastMaxRoll = maxRange
	next.RollTwiceResults = nil
	next.RollTwicePlayerID = ""
	return next, Outcome{PlayerID: actorID}, nil
}

// CompleteRoll is Phase 2, run after the reveal animation. It reads whatever
// state is current at that moment: if the roll was superseded (reset, kick,
// duplicate completion) it is a no-op. A roll-twice pair is revealed and left
// for ChooseRoll; a single result is applied.
func CompleteRoll(s State, rollID uint64) (State, Outcome) {
	if s.Pending == nil || s.Pending.ID != rollID || s.Pending.Revealed {
		return s, Outcome{}
	}

	next := s.Clone()
	pending := *next.Pending

	if next.Phase != PhasePlaying {
		clearPending(&next)
		return next, Outcome{}
	}
	actorIdx := next.IndexOf(pending.PlayerID)
	if actorIdx < 0 {
		clearPending(&next)
		return EnsureCurrentEligible(next), Outcome{}
	}

	if len(pending.Results) > 1 {
		next.Pending.Revealed = true
		next.IsRolling = false
		next.RollTwiceResults = append([]int(nil), pending.Results...)
		next.RollTwicePlayerID = pending.PlayerID
		return next, Outcome{Applied: true, AwaitingChoice: true, PlayerID: pending.PlayerID}
	}

	return applyResult(next, pending, actorIdx, pending.Results[0])
}

// ChooseRoll commits one of the two roll-twice candidates. The value must
// match one of them exactly.
func ChooseRoll(s State, actorID string, chosen int) (State, Outcome, error) {
	if !s.AwaitingChoice() {
		return s, Outcome{}, ErrStaleIntent
	}
	if s.Pending.PlayerID != actorID {
		return s, Outcome{}, ErrNotYourTurn
	}
	valid := false
	for _, v := range s.Pending.Results {
		if v == chosen {
			valid = true
			break
		}
	}
	if !valid {
		return s, Outcome{}, fmt.Errorf("%w: %d", ErrInvalidChoice, chosen)
	}

	next := s.Clone()
	pending := *next.Pending
	actorIdx := next.IndexOf(actorID)
	if actorIdx < 0 {
		clearPending(&next)
		return EnsureCurrentEligible(next), Outcome{}, ErrPlayerNotFound
	}
	next, outcome := applyResult(next, pending, actorIdx, chosen)
	return next, outcome, nil
}

// BestChoice returns the larger of the pending roll-twice candidates. The
// host uses it when the chooser drops before picking.
func BestChoice(s State) (int, bool) {
	if !s.AwaitingChoice() || len(s.Pending.Results) == 0 {
		return 0, false
	}
	best := s.Pending.Results[0]
	for _, v := range s.Pending.Results[1:] {
		if v > best {
			best = v
		}
	}
	return best, true
}

// applyResult reveals a result and applies its consequences. next must be a
// private copy.
func applyResult(next State, pending PendingRoll, actorIdx, result int) (State, Outcome) {
	actor := next.Players[actorIdx]
	clearPending(&next)

	next.LastRoll = result
	next.LastMaxRoll = pending.MaxRange
	next.LastRollPlayerID = actor.ID
	next.RollsThisRound++
	appendHistory(&next, RollEntry{
		PlayerID:   actor.ID,
		PlayerName: actor.Name,
		Color:      actor.Color,
		Emoji:      actor.Emoji,
		TeamID:     actor.TeamID,
		MaxRange:   pending.MaxRange,
		Result:     result,
		Timestamp:  pending.RolledAt,
	})

	outcome := Outcome{Applied: true, PlayerID: actor.ID, Result: result}

	if result == 1 {
		next.Players[actorIdx].Losses++
		next.LastLoserID = actor.ID
		next.LastLoserTeamID = ""
		if next.TeamMode && actor.TeamID != "" {
			if ti := next.teamIndex(actor.TeamID); ti >= 0 {
				next.Teams[ti].Losses++
				next.LastLoserTeamID = actor.TeamID
			}
		}
		next.CurrentMaxRoll = next.InitialMaxRoll
		next.RoundNumber++
		next.RollsThisRound = 0
		// The loser keeps the turn and picks the next range.
		next.CurrentPlayerIndex = actorIdx
		outcome.Lost = true
		return EnsureCurrentEligible(next), outcome
	}

	next.CurrentMaxRoll = result
	next.LastLoserID = ""
	next.LastLoserTeamID = ""
	advanceTurn(&next, actorIdx, pending.NextPlayerOverride)
	return EnsureCurrentEligible(next), outcome
}

func appendHistory(s *State, entry RollEntry) {
	s.RollHistory = append(s.RollHistory, entry)
	if over := len(s.RollHistory) - HistoryLimit; over > 0 {
		s.RollHistory = append([]RollEntry(nil), s.RollHistory[over:]...)
	}
}

// AnimationDelay is how long peers spend on the reveal animation for a roll
// against maxRange. Wider ranges spin through more digits and get longer;
// extended effects add a flourish at the end.
func AnimationDelay(maxRange int, extendedEffects bool) time.Duration {
	const (
		base     = 1500 * time.Millisecond
		perDigit = 250 * time.Millisecond
		extended = 1000 * time.Millisecond
	)
	if maxRange < 1 {
		maxRange = 1
	}
	digits := len(strconv.Itoa(maxRange))
	d := base + time.Duration(digits-1)*perDigit
	if extendedEffects {
		d += extended
	}
	return d
}
