package game

import (
	"strings"
	"time"
)

// Phase is the coarse lifecycle of a session.
type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhasePlaying Phase = "playing"
)

// String returns the string representation of the phase
func (p Phase) String() string {
	return string(p)
}

const (
	// DefaultMaxRoll is the starting range of a new session.
	DefaultMaxRoll = 100
	// MinMaxRoll and MaxMaxRoll bound the range a player may choose.
	MinMaxRoll = 2
	MaxMaxRoll = 1_000_000
	// HistoryLimit caps RollHistory; the oldest entry is dropped first.
	HistoryLimit = 100
	// MaxInitialCoins is the largest configurable starting balance.
	MaxInitialCoins = 5
)

// Player is a participant in the session. Order in State.Players is the turn
// order.
type Player struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IsLocal      bool   `json:"isLocal"`
	IsConnected  bool   `json:"isConnected"`
	ConnectionID string `json:"connectionId,omitempty"`
	Losses       int    `json:"losses"`
	Coins        int    `json:"coins"`
	IsSpectator  bool   `json:"isSpectator"`
	TeamID       string `json:"teamId,omitempty"`
	Color        string `json:"color"`
	Emoji        string `json:"emoji"`
}

// CanAct reports whether the player takes part in turn rotation.
func (p Player) CanAct() bool {
	return p.IsConnected && !p.IsSpectator
}

// Team groups players in team mode.
type Team struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	Losses int    `json:"losses"`
}

// RollEntry is an audit record of one revealed roll.
type RollEntry struct {
	PlayerID   string    `json:"playerId"`
	PlayerName string    `json:"playerName"`
	Color      string    `json:"color"`
	Emoji      string    `json:"emoji"`
	TeamID     string    `json:"teamId,omitempty"`
	MaxRange   int       `json:"maxRange"`
	Result     int       `json:"result"`
	Timestamp  time.Time `json:"timestamp"`
}

// PendingRoll holds a Phase 1 result until it is revealed and applied.
// It never leaves the host.
type PendingRoll struct {
	ID                 uint64
	PlayerID           string
	MaxRange           int
	Results            []int
	NextPlayerOverride string
	RolledAt           time.Time
	Revealed           bool
}

// State is the complete, authoritative game state. The host broadcasts it
// verbatim in every STATE_UPDATE.
type State struct {
	Phase              Phase       `json:"phase"`
	Players            []Player    `json:"players"`
	CurrentPlayerIndex int         `json:"currentPlayerIndex"`
	CurrentMaxRoll     int         `json:"currentMaxRoll"`
	InitialMaxRoll     int         `json:"initialMaxRoll"`
	RollsThisRound     int         `json:"rollsThisRound"`
	LastRoll           int         `json:"lastRoll,omitempty"`
	LastMaxRoll        int         `json:"lastMaxRoll,omitempty"`
	LastRollPlayerID   string      `json:"lastRollPlayerId,omitempty"`
	RollHistory        []RollEntry `json:"rollHistory"`
	LastLoserID        string      `json:"lastLoserId,omitempty"`
	LastLoserTeamID    string      `json:"lastLoserTeamId,omitempty"`
	RoundNumber        int         `json:"roundNumber"`
	TeamMode           bool        `json:"teamMode"`
	Teams              []Team      `json:"teams"`
	CoinsEnabled       bool        `json:"coinsEnabled"`
	InitialCoins       int         `json:"initialCoins"`
	IsRolling          bool        `json:"isRolling"`
	RollTwiceResults   []int       `json:"rollTwiceResults,omitempty"`
	RollTwicePlayerID  string      `json:"rollTwicePlayerId,omitempty"`

	Pending    *PendingRoll `json:"-"`
	lastRollID uint64
}

// Settings configures a new session.
type Settings struct {
	InitialMaxRoll int
	CoinsEnabled   bool
	InitialCoins   int
	TeamMode       bool
}

// NewState returns an empty lobby.
func NewState(settings Settings) State {
	maxRoll := settings.InitialMaxRoll
	if maxRoll < MinMaxRoll || maxRoll > MaxMaxRoll {
		maxRoll = DefaultMaxRoll
	}
	coins := settings.InitialCoins
	if coins < 0 || coins > MaxInitialCoins {
		coins = 0
	}
	return State{
		Phase:          PhaseLobby,
		Players:        []Player{},
		CurrentMaxRoll: maxRoll,
		InitialMaxRoll: maxRoll,
		RollHistory:    []RollEntry{},
		TeamMode:       settings.TeamMode,
		Teams:          []Team{},
		CoinsEnabled:   settings.CoinsEnabled,
		InitialCoins:   coins,
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.Players = append([]Player(nil), s.Players...)
	out.Teams = append([]Team(nil), s.Teams...)
	out.RollHistory = append([]RollEntry(nil), s.RollHistory...)
	if out.Players == nil {
		out.Players = []Player{}
	}
	if out.Teams == nil {
		out.Teams = []Team{}
	}
	if out.RollHistory == nil {
		out.RollHistory = []RollEntry{}
	}
	if s.RollTwiceResults != nil {
		out.RollTwiceResults = append([]int(nil), s.RollTwiceResults...)
	}
	if s.Pending != nil {
		p := *s.Pending
		p.Results = append([]int(nil), s.Pending.Results...)
		out.Pending = &p
	}
	return out
}

// Public returns a copy safe to send to peers. Hidden roll results are
// stripped; the JSON encoding already skips them, this also covers in-process
// subscribers.
func (s State) Public() State {
	out := s.Clone()
	out.Pending = nil
	out.lastRollID = 0
	return out
}

// IndexOf returns the position of the player with id, or -1.
func (s State) IndexOf(id string) int {
	for i, p := range s.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// PlayerByID looks up a player.
func (s State) PlayerByID(id string) (Player, bool) {
	if i := s.IndexOf(id); i >= 0 {
		return s.Players[i], true
	}
	return Player{}, false
}

// PlayerByName looks up a player by display name, ignoring case and
// surrounding whitespace.
func (s State) PlayerByName(name string) (Player, bool) {
	name = strings.TrimSpace(name)
	for _, p := range s.Players {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Player{}, false
}

// CurrentPlayer returns the player whose turn it is.
func (s State) CurrentPlayer() (Player, bool) {
	if s.Phase != PhasePlaying || s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.Players) {
		return Player{}, false
	}
	return s.Players[s.CurrentPlayerIndex], true
}

// TeamByID looks up a team.
func (s State) TeamByID(id string) (Team, bool) {
	for _, t := range s.Teams {
		if t.ID == id {
			return t, true
		}
	}
	return Team{}, false
}

// AwaitingChoice reports whether a roll-twice pair is waiting for a pick.
func (s State) AwaitingChoice() bool {
	return s.Pending != nil && s.Pending.Revealed
}

// Busy reports whether a roll is in flight or waiting for a choice.
func (s State) Busy() bool {
	return s.IsRolling || s.Pending != nil || len(s.RollTwiceResults) > 0
}

func (s State) teamIndex(id string) int {
	for i, t := range s.Teams {
		if t.ID == id {
			return i
		}
	}
	return -1
}
