package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/deathroll/internal/game"
)

func raw(t *testing.T, mt MessageType, data string) *Message {
	t.Helper()
	return &Message{Type: mt, Data: json.RawMessage(data), Timestamp: time.Now()}
}

func TestDecodePlayerMessage(t *testing.T) {
	tests := []struct {
		name    string
		msg     *Message
		want    PlayerMessage
		field   string
		unknown bool
	}{
		{name: "join trims name", msg: raw(t, TypeJoinRequest, `{"name":"  Alice  "}`), want: JoinRequest{Name: "Alice"}},
		{name: "join with id", msg: raw(t, TypeJoinRequest, `{"name":"Bob","playerId":"p-1","spectator":true}`), want: JoinRequest{Name: "Bob", PlayerID: "p-1", Spectator: true}},
		{name: "join blank name", msg: raw(t, TypeJoinRequest, `{"name":"   "}`), field: "name"},
		{name: "join long name", msg: raw(t, TypeJoinRequest, `{"name":"` + strings.Repeat("x", 21) + `"}`), field: "name"},
		{name: "join 20 runes", msg: raw(t, TypeJoinRequest, `{"name":"` + strings.Repeat("é", 20) + `"}`), want: JoinRequest{Name: strings.Repeat("é", 20)}},
		{name: "plain roll", msg: raw(t, TypeRollRequest, `{}`), want: RollRequest{}},
		{name: "roll with abilities", msg: raw(t, TypeRollRequest, `{"overrideRange":10,"rollTwice":true,"nextPlayerOverride":"p2"}`), want: RollRequest{OverrideRange: 10, RollTwice: true, NextPlayerOverride: "p2"}},
		{name: "override too large", msg: raw(t, TypeRollRequest, `{"overrideRange":1000001}`), field: "overrideRange"},
		{name: "override negative", msg: raw(t, TypeRollRequest, `{"overrideRange":-4}`), field: "overrideRange"},
		{name: "skip and twice", msg: raw(t, TypeRollRequest, `{"skipRoll":true,"rollTwice":true}`), field: "skipRoll"},
		{name: "set range", msg: raw(t, TypeSetRange, `{"maxRange":2}`), want: SetRange{MaxRange: 2}},
		{name: "set range too small", msg: raw(t, TypeSetRange, `{"maxRange":1}`), field: "maxRange"},
		{name: "set range missing", msg: raw(t, TypeSetRange, `{}`), field: "maxRange"},
		{name: "choose", msg: raw(t, TypeChooseRoll, `{"chosenRoll":7}`), want: ChooseRoll{ChosenRoll: 7}},
		{name: "choose zero", msg: raw(t, TypeChooseRoll, `{"chosenRoll":0}`), field: "chosenRoll"},
		{name: "heartbeat without data", msg: raw(t, TypeHeartbeat, ``), want: Heartbeat{}},
		{name: "sync", msg: raw(t, TypeStateSyncRequest, `{}`), want: StateSyncRequest{}},
		{name: "malformed", msg: raw(t, TypeSetRange, `{"maxRange":"big"}`), field: "data"},
		{name: "host type", msg: raw(t, TypeStateUpdate, `{}`), unknown: true},
		{name: "garbage type", msg: raw(t, "NOPE", `{}`), unknown: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePlayerMessage(tt.msg)
			if tt.want != nil {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.msg.Type, verr.Type)
			if tt.unknown {
				assert.True(t, errors.Is(err, ErrUnknownType))
				return
			}
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestNewMessageValidatesPlayerPayloads(t *testing.T) {
	_, err := NewMessage(SetRange{MaxRange: 0})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "maxRange", verr.Field)

	msg, err := NewMessage(ChooseRoll{ChosenRoll: 4})
	require.NoError(t, err)
	assert.Equal(t, TypeChooseRoll, msg.Type)
	assert.JSONEq(t, `{"chosenRoll":4}`, string(msg.Data))
}

func TestStateUpdateNeverCarriesPendingResult(t *testing.T) {
	s := game.NewState(game.Settings{})
	s = game.AddPlayer(s, game.Player{ID: "a", Name: "A", IsConnected: true})
	s = game.AddPlayer(s, game.Player{ID: "b", Name: "B", IsConnected: true})
	s, err := game.StartGame(s)
	require.NoError(t, err)
	s, _, err = game.InitiateRoll(s, "a", game.RollRequest{}, fixedRoller(77), time.Now())
	require.NoError(t, err)
	require.NotNil(t, s.Pending)

	msg, err := NewMessage(StateUpdate{State: s})
	require.NoError(t, err)
	assert.NotContains(t, string(msg.Data), "77")

	decoded, err := DecodeHostMessage(msg)
	require.NoError(t, err)
	update, ok := decoded.(StateUpdate)
	require.True(t, ok)
	assert.True(t, update.State.IsRolling)
	assert.Nil(t, update.State.Pending)
	assert.Equal(t, 100, update.State.LastMaxRoll)
}

func TestEnvelopeCarriesSeq(t *testing.T) {
	msg, err := NewMessage(GameOver{LoserID: "p1"})
	require.NoError(t, err)
	msg.Seq = 42

	b, err := json.Marshal(msg)
	require.NoError(t, err)

	var back Message
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, uint64(42), back.Seq)
	assert.Equal(t, TypeGameOver, back.Type)

	decoded, err := DecodeHostMessage(&back)
	require.NoError(t, err)
	assert.Equal(t, GameOver{LoserID: "p1"}, decoded)
}

func TestDecodeHostMessageRequiresPlayerID(t *testing.T) {
	_, err := DecodeHostMessage(raw(t, TypeJoinAccepted, `{"state":{}}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "playerId", verr.Field)

	_, err = DecodeHostMessage(raw(t, TypeRollRequest, `{}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestMessageTypeDirection(t *testing.T) {
	assert.True(t, TypeJoinRequest.FromPlayer())
	assert.False(t, TypeJoinRequest.FromHost())
	assert.True(t, TypeKick.FromHost())
	assert.False(t, MessageType("X").FromPlayer())
	assert.Equal(t, "STATE_UPDATE", TypeStateUpdate.String())
}

type fixedRoller int

func (f fixedRoller) Roll(int) (int, error) { return int(f), nil }

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"HEARTBEAT","data":{},"timestamp":"2026-01-01T00:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeHeartbeat, msg.Type)

	for _, frame := range []string{`not json`, `{"type":5}`, `{"data":{}}`, `[]`} {
		t.Run(frame, func(t *testing.T) {
			_, err := ParseMessage([]byte(frame))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.True(t, strings.HasPrefix(verr.Error(), "invalid frame:"), verr.Error())
		})
	}
}
