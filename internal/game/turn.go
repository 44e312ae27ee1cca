package game

// NextPlayerIndex scans forward from the player at index from, wrapping, and
// returns the first player who can act. In team mode players on actedTeamID
// are passed over so turns alternate between teams; when every other eligible
// player shares that team the scan falls back to plain rotation. If nobody is
// found within one full cycle, from is returned unchanged.
func NextPlayerIndex(s State, from int, actedTeamID string) int {
	n := len(s.Players)
	if n == 0 {
		return from
	}
	if s.TeamMode && actedTeamID != "" {
		if i, ok := scan(s, from, func(p Player) bool { return p.TeamID != actedTeamID }); ok {
			return i
		}
	}
	if i, ok := scan(s, from, func(Player) bool { return true }); ok {
		return i
	}
	return from
}

func scan(s State, from int, accept func(Player) bool) (int, bool) {
	n := len(s.Players)
	for step := 1; step <= n; step++ {
		i := ((from+step)%n + n) % n
		p := s.Players[i]
		if p.CanAct() && accept(p) {
			return i, true
		}
	}
	return 0, false
}

// EnsureCurrentEligible moves the turn off a disconnected or spectating
// player. It does nothing outside the playing phase or while a roll is being
// resolved, so a player who drops mid-animation is skipped once the roll
// completes rather than having their result reassigned.
func EnsureCurrentEligible(s State) State {
	if s.Phase != PhasePlaying || s.Busy() || len(s.Players) == 0 {
		return s
	}
	cur := s.CurrentPlayerIndex
	if cur >= 0 && cur < len(s.Players) && s.Players[cur].CanAct() {
		return s
	}
	if cur < 0 || cur >= len(s.Players) {
		cur = 0
		if s.Players[0].CanAct() {
			next := s.Clone()
			next.CurrentPlayerIndex = 0
			return next
		}
	}
	i, ok := scan(s, cur, func(Player) bool { return true })
	if !ok {
		if cur == s.CurrentPlayerIndex {
			return s
		}
		next := s.Clone()
		next.CurrentPlayerIndex = cur
		return next
	}
	next := s.Clone()
	next.CurrentPlayerIndex = i
	return next
}

// advanceTurn moves the turn on from the player at actorIdx, honouring a
// choose-next override when it still names an eligible player.
func advanceTurn(s *State, actorIdx int, override string) {
	if override != "" {
		if i := s.IndexOf(override); i >= 0 && s.Players[i].CanAct() {
			s.CurrentPlayerIndex = i
			return
		}
	}
	teamID := ""
	if actorIdx >= 0 && actorIdx < len(s.Players) {
		teamID = s.Players[actorIdx].TeamID
	}
	s.CurrentPlayerIndex = NextPlayerIndex(*s, actorIdx, teamID)
}
