package game

import "strings"

// CreateTeam adds a team. The id is supplied by the caller.
func CreateTeam(s State, team Team) (State, error) {
	if team.ID == "" || s.teamIndex(team.ID) >= 0 {
		return s, ErrDuplicateTeam
	}
	next := s.Clone()
	team.Name = strings.TrimSpace(team.Name)
	team.Losses = 0
	next.Teams = append(next.Teams, team)
	return next, nil
}

// RemoveTeam deletes a team and unassigns its members. No player is removed.
func RemoveTeam(s State, teamID string) State {
	idx := s.teamIndex(teamID)
	if idx < 0 {
		return s
	}
	next := s.Clone()
	next.Teams = append(next.Teams[:idx:idx], next.Teams[idx+1:]...)
	for i := range next.Players {
		if next.Players[i].TeamID == teamID {
			next.Players[i].TeamID = ""
		}
	}
	if next.LastLoserTeamID == teamID {
		next.LastLoserTeamID = ""
	}
	return next
}

// AssignPlayerToTeam moves a player onto a team. An empty teamID unassigns.
// Reassigning to the current team is a no-op.
func AssignPlayerToTeam(s State, playerID, teamID string) (State, error) {
	idx := s.IndexOf(playerID)
	if idx < 0 {
		return s, ErrPlayerNotFound
	}
	if teamID != "" && s.teamIndex(teamID) < 0 {
		return s, ErrTeamNotFound
	}
	if s.Players[idx].TeamID == teamID {
		return s, nil
	}
	next := s.Clone()
	next.Players[idx].TeamID = teamID
	return next, nil
}

// SetTeamMode toggles team rotation and team loss tracking. Scores are kept.
func SetTeamMode(s State, enabled bool) State {
	next := s.Clone()
	next.TeamMode = enabled
	return next
}
