package game

import "strings"

// Palette is the fixed set of display identities handed out at join time.
var Palette = []struct {
	Color string
	Emoji string
}{
	{"#FF6B6B", "🐉"},
	{"#4ECDC4", "🦊"},
	{"#FFD93D", "🐝"},
	{"#6C5CE7", "🦄"},
	{"#A8E6CF", "🐢"},
	{"#FF8C42", "🦁"},
	{"#3D84A8", "🐳"},
	{"#F78FB3", "🐙"},
	{"#95E1D3", "🦉"},
	{"#C06C84", "🦩"},
	{"#F8B195", "🐼"},
	{"#355C7D", "🐺"},
}

// AddPlayer appends p to the turn order. Color, emoji and the starting coin
// balance are assigned here; existing players are never reordered.
func AddPlayer(s State, p Player) State {
	next := s.Clone()

	p.Name = strings.TrimSpace(p.Name)
	if p.IsLocal {
		p.IsConnected = true
		p.ConnectionID = ""
	}
	if p.Color == "" || p.Emoji == "" {
		p.Color, p.Emoji = nextIdentity(next.Players)
	}
	p.Coins = next.InitialCoins
	p.Losses = 0

	next.Players = append(next.Players, p)
	return EnsureCurrentEligible(next)
}

// nextIdentity picks the first palette entry whose color is not in use. Once
// the palette is exhausted identities repeat in join order.
func nextIdentity(players []Player) (string, string) {
	used := make(map[string]bool, len(players))
	for _, p := range players {
		used[p.Color] = true
	}
	for _, entry := range Palette {
		if !used[entry.Color] {
			return entry.Color, entry.Emoji
		}
	}
	entry := Palette[len(players)%len(Palette)]
	return entry.Color, entry.Emoji
}

// RemovePlayer drops the player with id. The current turn stays with the same
// player where possible; removing the current player passes the turn on. A
// roll in flight for the removed player is discarded.
func RemovePlayer(s State, id string) State {
	idx := s.IndexOf(id)
	if idx < 0 {
		return s
	}

	next := s.Clone()
	next.Players = append(next.Players[:idx:idx], next.Players[idx+1:]...)

	switch {
	case len(next.Players) == 0:
		next.CurrentPlayerIndex = 0
	case idx < next.CurrentPlayerIndex:
		next.CurrentPlayerIndex--
	case next.CurrentPlayerIndex >= len(next.Players):
		next.CurrentPlayerIndex = 0
	}

	if next.Pending != nil && next.Pending.PlayerID == id {
		clearPending(&next)
	}
	if next.RollTwicePlayerID == id {
		next.RollTwicePlayerID = ""
		next.RollTwiceResults = nil
	}
	if next.LastLoserID == id {
		next.LastLoserID = ""
		next.LastLoserTeamID = ""
	}

	return EnsureCurrentEligible(next)
}

// SetPlayerConnected flips the connectivity flag. Losses, coins and turn
// position are untouched; use EnsureCurrentEligible afterwards to move the
// turn off a player who dropped.
func SetPlayerConnected(s State, id string, connected bool) State {
	idx := s.IndexOf(id)
	if idx < 0 || s.Players[idx].IsLocal {
		return s
	}
	next := s.Clone()
	next.Players[idx].IsConnected = connected
	if !connected {
		next.Players[idx].ConnectionID = ""
	}
	return next
}

// ReconnectPlayer binds a returning player to a new connection, restoring them
// into their previous slot with their score intact.
func ReconnectPlayer(s State, id, connectionID string) State {
	idx := s.IndexOf(id)
	if idx < 0 || s.Players[idx].IsLocal {
		return s
	}
	next := s.Clone()
	next.Players[idx].IsConnected = true
	next.Players[idx].ConnectionID = connectionID
	return EnsureCurrentEligible(next)
}
