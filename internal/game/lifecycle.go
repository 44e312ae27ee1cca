package game

import "fmt"

// HostActor is the actor id used for intents issued by the host itself
// rather than by a player.
const HostActor = ""

// StartGame moves the lobby into play. The first player able to act takes the
// opening turn.
func StartGame(s State) (State, error) {
	if s.Phase != PhaseLobby {
		return s, ErrWrongPhase
	}
	first := -1
	for i, p := range s.Players {
		if p.CanAct() {
			first = i
			break
		}
	}
	if first < 0 {
		return s, ErrNoEligiblePlayers
	}

	next := s.Clone()
	next.Phase = PhasePlaying
	next.CurrentPlayerIndex = first
	next.CurrentMaxRoll = next.InitialMaxRoll
	next.RollsThisRound = 0
	next.RoundNumber = 1
	clearTransient(&next)
	for i := range next.Players {
		next.Players[i].Coins = next.InitialCoins
	}
	return next, nil
}

// ResetGame returns to the lobby and wipes every score. Players, teams and
// settings are kept.
func ResetGame(s State) State {
	next := s.Clone()
	next.Phase = PhaseLobby
	next.CurrentPlayerIndex = 0
	next.CurrentMaxRoll = next.InitialMaxRoll
	next.RollsThisRound = 0
	next.RoundNumber = 0
	next.RollHistory = []RollEntry{}
	clearTransient(&next)
	for i := range next.Players {
		next.Players[i].Losses = 0
		next.Players[i].Coins = next.InitialCoins
	}
	for i := range next.Teams {
		next.Teams[i].Losses = 0
	}
	return next
}

// SetRange changes the round's starting range. In the lobby only the host may
// do this; during play the current player may, but only before anyone has
// rolled in the round (typically the loser of the previous round).
func SetRange(s State, actorID string, maxRange int) (State, error) {
	if maxRange < MinMaxRoll || maxRange > MaxMaxRoll {
		return s, fmt.Errorf("%w: %d", ErrInvalidRange, maxRange)
	}

	switch s.Phase {
	case PhaseLobby:
		if actorID != HostActor {
			return s, ErrWrongPhase
		}
	case PhasePlaying:
		if s.Busy() {
			return s, ErrStaleIntent
		}
		if actorID != HostActor {
			cur, ok := s.CurrentPlayer()
			if !ok || cur.ID != actorID {
				return s, ErrNotYourTurn
			}
		}
		if s.RollsThisRound > 0 {
			return s, ErrRangeLocked
		}
	}

	next := s.Clone()
	next.InitialMaxRoll = maxRange
	next.CurrentMaxRoll = maxRange
	return next, nil
}

// SetCoins configures the coin abilities. Only allowed in the lobby; every
// player's balance is reset to the new starting amount.
func SetCoins(s State, enabled bool, initial int) (State, error) {
	if s.Phase != PhaseLobby {
		return s, ErrWrongPhase
	}
	if initial < 0 || initial > MaxInitialCoins {
		return s, fmt.Errorf("%w: %d", ErrInvalidCoins, initial)
	}
	next := s.Clone()
	next.CoinsEnabled = enabled
	next.InitialCoins = initial
	for i := range next.Players {
		next.Players[i].Coins = initial
	}
	return next, nil
}

func clearTransient(s *State) {
	s.LastRoll = 0
	s.LastMaxRoll = 0
	s.LastRollPlayerID = ""
	s.LastLoserID = ""
	s.LastLoserTeamID = ""
	clearPending(s)
}

func clearPending(s *State) {
	s.IsRolling = false
	s.Pending = nil
	s.RollTwiceResults = nil
	s.RollTwicePlayerID = ""
}

// Restore prepares a saved state for a new host process. Any roll that was in
// flight is discarded and every remote player starts disconnected until they
// reconnect; the turn moves to a player who can still act.
func Restore(s State) State {
	next := s.Clone()
	clearPending(&next)
	for i := range next.Players {
		if !next.Players[i].IsLocal {
			next.Players[i].IsConnected = false
			next.Players[i].ConnectionID = ""
		}
	}
	if next.CurrentMaxRoll < 1 || next.CurrentMaxRoll > next.InitialMaxRoll {
		next.CurrentMaxRoll = next.InitialMaxRoll
	}
	return EnsureCurrentEligible(next)
}
