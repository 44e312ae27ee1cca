package protocol

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Field limits enforced on every player message.
const (
	MaxNameLength = 20
	MinMaxRange   = 2
	MaxRange      = 1_000_000
)

// ErrUnknownType is wrapped by a ValidationError for a type outside the
// expected direction's set.
var ErrUnknownType = errors.New("unknown message type")

// ValidationError describes a malformed or out-of-range message. The host
// drops the message and keeps the connection.
type ValidationError struct {
	Type   MessageType
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	what := "frame"
	if e.Type != "" {
		what = string(e.Type) + " message"
	}
	if e.Field == "" {
		return fmt.Sprintf("invalid %s: %s", what, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s %s", what, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(mt MessageType, field, reason string) *ValidationError {
	return &ValidationError{Type: mt, Field: field, Reason: reason}
}

// NormalizeName trims surrounding whitespace from a display name.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

func (m JoinRequest) Validate() error {
	n := utf8.RuneCountInString(NormalizeName(m.Name))
	if n < 1 || n > MaxNameLength {
		return invalid(m.MessageType(), "name", fmt.Sprintf("must be 1-%d characters", MaxNameLength))
	}
	return nil
}

func (m RollRequest) Validate() error {
	if m.OverrideRange < 0 || m.OverrideRange > MaxRange {
		return invalid(m.MessageType(), "overrideRange", fmt.Sprintf("must be in [1, %d]", MaxRange))
	}
	if m.SkipRoll && m.RollTwice {
		return invalid(m.MessageType(), "skipRoll", "cannot be combined with rollTwice")
	}
	return nil
}

func (m SetRange) Validate() error {
	if m.MaxRange < MinMaxRange || m.MaxRange > MaxRange {
		return invalid(m.MessageType(), "maxRange", fmt.Sprintf("must be in [%d, %d]", MinMaxRange, MaxRange))
	}
	return nil
}

func (Heartbeat) Validate() error        { return nil }
func (StateSyncRequest) Validate() error { return nil }

func (m ChooseRoll) Validate() error {
	if m.ChosenRoll < 1 || m.ChosenRoll > MaxRange {
		return invalid(m.MessageType(), "chosenRoll", fmt.Sprintf("must be in [1, %d]", MaxRange))
	}
	return nil
}
