package protocol

import (
	"encoding/json"
	"fmt"
)

// DecodePlayerMessage parses and validates a frame received by the host.
// Every failure is a *ValidationError.
func DecodePlayerMessage(m *Message) (PlayerMessage, error) {
	var p PlayerMessage
	switch m.Type {
	case TypeJoinRequest:
		var v JoinRequest
		if err := unmarshal(m, &v); err != nil {
			return nil, err
		}
		v.Name = NormalizeName(v.Name)
		p = v
	case TypeRollRequest:
		var v RollRequest
		if err := unmarshal(m, &v); err != nil {
			return nil, err
		}
		p = v
	case TypeSetRange:
		var v SetRange
		if err := unmarshal(m, &v); err != nil {
			return nil, err
		}
		p = v
	case TypeHeartbeat:
		p = Heartbeat{}
	case TypeStateSyncRequest:
		p = StateSyncRequest{}
	case TypeChooseRoll:
		var v ChooseRoll
		if err := unmarshal(m, &v); err != nil {
			return nil, err
		}
		p = v
	default:
		return nil, &ValidationError{Type: m.Type, Reason: ErrUnknownType.Error(), Err: ErrUnknownType}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// DecodeHostMessage parses a frame received by a player.
func DecodeHostMessage(m *Message) (HostMessage, error) {
	switch m.Type {
	case TypeJoinAccepted:
		var v JoinAccepted
		if err := unmarshal(m, &v); err != nil {
			return nil, err
		}
		if v.PlayerID == "" {
			return nil, invalid(m.Type, "playerId", "is required")
		}
		return v, nil
	case TypeReconnectAccepted:
		var v ReconnectAccepted
		if err := unmarshal(m, &v); err != nil {
			return nil, err
		}
		if v.PlayerID == "" {
			return nil, invalid(m.Type, "playerId", "is required")
		}
		return v, nil
	case TypeJoinRejected:
		var v JoinRejected
		if err := unmarshal(m, &v); err != nil {
			return nil, err
		}
		return v, nil
	case TypeStateUpdate:
		var v StateUpdate
		if err := unmarshal(m, &v); err != nil {
			return nil, err
		}
		return v, nil
	case TypeGameOver:
		var v GameOver
		if err := unmarshal(m, &v); err != nil {
			return nil, err
		}
		return v, nil
	case TypeKick:
		var v Kick
		if err := unmarshal(m, &v); err != nil {
			return nil, err
		}
		return v, nil
	case TypeHeartbeatAck:
		return HeartbeatAck{}, nil
	}
	return nil, &ValidationError{Type: m.Type, Reason: ErrUnknownType.Error(), Err: ErrUnknownType}
}

func unmarshal(m *Message, v any) error {
	if len(m.Data) == 0 || string(m.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return &ValidationError{Type: m.Type, Field: "data", Reason: fmt.Sprintf("malformed: %v", err), Err: err}
	}
	return nil
}

// ParseMessage decodes a raw frame into its envelope. A frame that is not a
// JSON envelope is reported as a *ValidationError.
func ParseMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &ValidationError{Reason: "malformed envelope", Err: err}
	}
	if m.Type == "" {
		return nil, &ValidationError{Field: "type", Reason: "is required"}
	}
	return &m, nil
}
