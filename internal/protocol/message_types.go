package protocol

// MessageType identifies the payload carried by a Message envelope.
type MessageType string

const (
	// Player to host
	TypeJoinRequest      MessageType = "JOIN_REQUEST"
	TypeRollRequest      MessageType = "ROLL_REQUEST"
	TypeSetRange         MessageType = "SET_RANGE"
	TypeHeartbeat        MessageType = "HEARTBEAT"
	TypeStateSyncRequest MessageType = "STATE_SYNC_REQUEST"
	TypeChooseRoll       MessageType = "CHOOSE_ROLL"

	// Host to player
	TypeJoinAccepted      MessageType = "JOIN_ACCEPTED"
	TypeReconnectAccepted MessageType = "RECONNECT_ACCEPTED"
	TypeJoinRejected      MessageType = "JOIN_REJECTED"
	TypeStateUpdate       MessageType = "STATE_UPDATE"
	TypeGameOver          MessageType = "GAME_OVER"
	TypeKick              MessageType = "KICK"
	TypeHeartbeatAck      MessageType = "HEARTBEAT_ACK"
)

// String returns the wire name of the message type.
func (mt MessageType) String() string {
	return string(mt)
}

// FromPlayer reports whether mt is sent by players.
func (mt MessageType) FromPlayer() bool {
	switch mt {
	case TypeJoinRequest, TypeRollRequest, TypeSetRange, TypeHeartbeat, TypeStateSyncRequest, TypeChooseRoll:
		return true
	}
	return false
}

// FromHost reports whether mt is sent by the host.
func (mt MessageType) FromHost() bool {
	switch mt {
	case TypeJoinAccepted, TypeReconnectAccepted, TypeJoinRejected, TypeStateUpdate, TypeGameOver, TypeKick, TypeHeartbeatAck:
		return true
	}
	return false
}
