package client

import "errors"

var (
	// ErrConnection is returned when the host cannot be reached or the
	// transport drops. The client retries these.
	ErrConnection = errors.New("connection failed")
	// ErrTimeout is returned when connecting or joining takes too long.
	ErrTimeout = errors.New("connection timed out")
	// ErrReconnectExhausted is fatal: every backoff attempt failed.
	ErrReconnectExhausted = errors.New("reconnection attempts exhausted")
	// ErrNotConnected is returned for intents sent without a joined session.
	ErrNotConnected = errors.New("not connected")
	// ErrJoinRejected wraps the host's rejection reason.
	ErrJoinRejected = errors.New("join rejected")
	// ErrKicked is returned to a pending join when the host kicks the player.
	ErrKicked = errors.New("kicked by host")
)
