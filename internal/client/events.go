package client

import (
	"time"

	"github.com/lox/deathroll/internal/game"
)

// Status is the client's connection status.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// NetworkQuality buckets the heartbeat round trip.
type NetworkQuality int

const (
	QualityOffline NetworkQuality = iota
	QualityExcellent
	QualityGood
	QualityPoor
)

func (q NetworkQuality) String() string {
	switch q {
	case QualityExcellent:
		return "excellent"
	case QualityGood:
		return "good"
	case QualityPoor:
		return "poor"
	default:
		return "offline"
	}
}

// QualityFor maps a measured latency to a quality bucket.
func QualityFor(latency time.Duration, connected bool) NetworkQuality {
	switch {
	case !connected:
		return QualityOffline
	case latency < 100*time.Millisecond:
		return QualityExcellent
	case latency < 300*time.Millisecond:
		return QualityGood
	default:
		return QualityPoor
	}
}

// Event is delivered to subscribers. The set of implementations is closed.
type Event interface {
	clientEvent()
}

// StatusChange reports a new connection status.
type StatusChange struct {
	Status Status
}

// StateUpdate carries the latest state mirrored from the host.
type StateUpdate struct {
	State game.State
}

// JoinAccepted is sent once per successful join or reconnection.
type JoinAccepted struct {
	PlayerID    string
	State       game.State
	Reconnected bool
}

// JoinRejected carries the host's reason. The client does not retry.
type JoinRejected struct {
	Reason string
}

// Kicked means the host removed this player or ended the session.
type Kicked struct {
	Reason string
}

// GameOver announces a round loss.
type GameOver struct {
	LoserID string
}

// ReconnectionState describes the backoff loop.
type ReconnectionState struct {
	Attempt      int
	MaxAttempts  int
	NextDelay    time.Duration
	Reconnecting bool
	Exhausted    bool
}

// NetworkQualityChange is emitted when the quality bucket changes.
type NetworkQualityChange struct {
	Quality NetworkQuality
}

// LatencyUpdate is emitted for every heartbeat acknowledgement.
type LatencyUpdate struct {
	Latency time.Duration
}

// ErrorEvent reports a failure. Recoverable errors are retried by the client.
type ErrorEvent struct {
	Err         error
	Recoverable bool
}

func (StatusChange) clientEvent()         {}
func (StateUpdate) clientEvent()          {}
func (JoinAccepted) clientEvent()         {}
func (JoinRejected) clientEvent()         {}
func (Kicked) clientEvent()               {}
func (GameOver) clientEvent()             {}
func (ReconnectionState) clientEvent()    {}
func (NetworkQualityChange) clientEvent() {}
func (LatencyUpdate) clientEvent()        {}
func (ErrorEvent) clientEvent()           {}
