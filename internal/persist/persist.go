// Package persist stores host state and player sessions so a refresh or
// restart can resume a room. Callers decide whether a saved record is still
// usable with Fresh.
package persist

import (
	"time"

	"github.com/lox/deathroll/internal/game"
)

// TTL is how long a saved record stays resumable.
const TTL = time.Hour

// SavedHostState is the host's snapshot of a room.
type SavedHostState struct {
	RoomCode  string     `json:"roomCode"`
	GameState game.State `json:"gameState"`
	Timestamp time.Time  `json:"timestamp"`
}

// SavedPlayerSession lets a player rejoin the same room as the same player.
type SavedPlayerSession struct {
	RoomCode   string    `json:"roomCode"`
	PlayerName string    `json:"playerName"`
	PlayerID   string    `json:"playerId"`
	Timestamp  time.Time `json:"timestamp"`
}

// Store loads and saves a single record.
type Store[T any] interface {
	Save(v T) error
	// Load reports ok=false with a nil error when nothing has been saved.
	Load() (v T, ok bool, err error)
	Clear() error
}

type (
	HostStore    = Store[SavedHostState]
	SessionStore = Store[SavedPlayerSession]
)

// Fresh reports whether a record saved at ts is younger than ttl at now.
func Fresh(ts, now time.Time, ttl time.Duration) bool {
	if ts.IsZero() {
		return false
	}
	age := now.Sub(ts)
	return age >= 0 && age < ttl
}
