package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lox/deathroll/internal/game"
)

// Message is the envelope every frame is wrapped in.
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
	// Seq orders host frames. It increases by one for every frame the host
	// sends to any peer, so a client can drop anything older than what it has
	// already applied. Player frames leave it zero.
	Seq       uint64    `json:"seq,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Payload is implemented by every message body.
type Payload interface {
	MessageType() MessageType
}

// PlayerMessage is the closed set of payloads a player may send.
type PlayerMessage interface {
	Payload
	Validate() error
	playerMessage()
}

// HostMessage is the closed set of payloads the host may send.
type HostMessage interface {
	Payload
	hostMessage()
}

// NewMessage wraps p in an envelope stamped with the current time.
func NewMessage(p Payload) (*Message, error) {
	if pm, ok := p.(PlayerMessage); ok {
		if err := pm.Validate(); err != nil {
			return nil, err
		}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.MessageType(), err)
	}
	return &Message{
		Type:      p.MessageType(),
		Data:      data,
		Timestamp: time.Now(),
	}, nil
}

// Player → Host

// JoinRequest asks to join the room, or to resume as PlayerID.
type JoinRequest struct {
	Name      string `json:"name"`
	Spectator bool   `json:"spectator,omitempty"`
	// PlayerID is set when a player resumes a saved session.
	PlayerID string `json:"playerId,omitempty"`
}

// RollRequest asks to roll on the sender's turn, with optional coin abilities.
type RollRequest struct {
	OverrideRange      int    `json:"overrideRange,omitempty"`
	RollTwice          bool   `json:"rollTwice,omitempty"`
	NextPlayerOverride string `json:"nextPlayerOverride,omitempty"`
	SkipRoll           bool   `json:"skipRoll,omitempty"`
}

// SetRange changes the round's range before its first roll.
type SetRange struct {
	MaxRange int `json:"maxRange"`
}

// Heartbeat keeps the connection alive; the host answers HeartbeatAck.
type Heartbeat struct{}

// StateSyncRequest asks the host to resend the full state.
type StateSyncRequest struct{}

// ChooseRoll picks one of the roll-twice results.
type ChooseRoll struct {
	ChosenRoll int `json:"chosenRoll"`
}

func (JoinRequest) MessageType() MessageType      { return TypeJoinRequest }
func (RollRequest) MessageType() MessageType      { return TypeRollRequest }
func (SetRange) MessageType() MessageType         { return TypeSetRange }
func (Heartbeat) MessageType() MessageType        { return TypeHeartbeat }
func (StateSyncRequest) MessageType() MessageType { return TypeStateSyncRequest }
func (ChooseRoll) MessageType() MessageType       { return TypeChooseRoll }

func (JoinRequest) playerMessage()      {}
func (RollRequest) playerMessage()      {}
func (SetRange) playerMessage()         {}
func (Heartbeat) playerMessage()        {}
func (StateSyncRequest) playerMessage() {}
func (ChooseRoll) playerMessage()       {}

// GameRequest converts the wire intent into the state machine's form.
func (r RollRequest) GameRequest() game.RollRequest {
	return game.RollRequest{
		OverrideRange:      r.OverrideRange,
		RollTwice:          r.RollTwice,
		NextPlayerOverride: r.NextPlayerOverride,
		SkipRoll:           r.SkipRoll,
	}
}

// Host → Player

// JoinAccepted admits a new player and carries the state at admission.
type JoinAccepted struct {
	PlayerID string     `json:"playerId"`
	State    game.State `json:"state"`
}

// ReconnectAccepted rebinds a returning player to their existing slot.
type ReconnectAccepted struct {
	PlayerID string     `json:"playerId"`
	State    game.State `json:"state"`
}

// JoinRejected refuses a join, e.g. for a taken name or a full room.
type JoinRejected struct {
	Reason string `json:"reason"`
}

// StateUpdate replaces the client's mirror of the game state.
type StateUpdate struct {
	State game.State `json:"state"`
}

// GameOver announces the player who rolled a 1.
type GameOver struct {
	LoserID string `json:"loserId"`
}

// Kick removes the player; the host closes the connection after it.
type Kick struct {
	Reason string `json:"reason"`
}

// HeartbeatAck answers Heartbeat.
type HeartbeatAck struct{}

func (JoinAccepted) MessageType() MessageType      { return TypeJoinAccepted }
func (ReconnectAccepted) MessageType() MessageType { return TypeReconnectAccepted }
func (JoinRejected) MessageType() MessageType      { return TypeJoinRejected }
func (StateUpdate) MessageType() MessageType       { return TypeStateUpdate }
func (GameOver) MessageType() MessageType          { return TypeGameOver }
func (Kick) MessageType() MessageType              { return TypeKick }
func (HeartbeatAck) MessageType() MessageType      { return TypeHeartbeatAck }

func (JoinAccepted) hostMessage()      {}
func (ReconnectAccepted) hostMessage() {}
func (JoinRejected) hostMessage()      {}
func (StateUpdate) hostMessage()       {}
func (GameOver) hostMessage()          {}
func (Kick) hostMessage()              {}
func (HeartbeatAck) hostMessage()      {}
