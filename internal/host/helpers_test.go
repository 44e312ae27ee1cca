package host

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/lox/deathroll/internal/game"
	"github.com/lox/deathroll/internal/protocol"
)

// fakePeer records every frame the session sends it.
type fakePeer struct {
	id     string
	mu     sync.Mutex
	frames []*protocol.Message
	closed bool
}

func newFakePeer(id string) *fakePeer { return &fakePeer{id: id} }

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(msg *protocol.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrConnectionClosed
	}
	p.frames = append(p.frames, msg)
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePeer) received() []*protocol.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*protocol.Message(nil), p.frames...)
}

func (p *fakePeer) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = nil
}

// decoded returns every frame of type mt in order.
func (p *fakePeer) decoded(t *testing.T, mt protocol.MessageType) []protocol.HostMessage {
	t.Helper()
	var out []protocol.HostMessage
	for _, m := range p.received() {
		if m.Type != mt {
			continue
		}
		hm, err := protocol.DecodeHostMessage(m)
		require.NoError(t, err)
		out = append(out, hm)
	}
	return out
}

func (p *fakePeer) lastState(t *testing.T) game.State {
	t.Helper()
	updates := p.decoded(t, protocol.TypeStateUpdate)
	require.NotEmpty(t, updates, "no STATE_UPDATE received")
	return updates[len(updates)-1].(protocol.StateUpdate).State
}

func (p *fakePeer) types() []protocol.MessageType {
	var out []protocol.MessageType
	for _, m := range p.received() {
		out = append(out, m.Type)
	}
	return out
}

// scriptedRoller hands out results in order.
type scriptedRoller struct {
	mu      sync.Mutex
	results []int
}

func (r *scriptedRoller) Roll(maxRange int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.results) == 0 {
		return 0, fmt.Errorf("no scripted result")
	}
	v := r.results[0]
	r.results = r.results[1:]
	if v > maxRange {
		v = maxRange
	}
	return v, nil
}

func (r *scriptedRoller) push(v ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, v...)
}

type harness struct {
	t       *testing.T
	session *Session
	clock   *quartz.Mock
	roller  *scriptedRoller
	nextID  int
}

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()
	h := &harness{t: t, clock: quartz.NewMock(t), roller: &scriptedRoller{}}
	opts := Options{
		Logger:   testLogger(),
		Clock:    h.clock,
		Roller:   h.roller,
		Settings: game.Settings{InitialMaxRoll: 100},
		NewID: func() string {
			h.nextID++
			return fmt.Sprintf("p%d", h.nextID)
		},
	}
	for _, m := range mutate {
		m(&opts)
	}
	s, err := NewSession("AB23", opts)
	require.NoError(t, err)
	h.session = s
	t.Cleanup(func() { s.EndSession("") })
	return h
}

func (h *harness) send(peer *fakePeer, p protocol.PlayerMessage) {
	h.t.Helper()
	msg, err := protocol.NewMessage(p)
	require.NoError(h.t, err)
	h.session.Handle(peer.id, msg)
}

func (h *harness) connect(connID string) *fakePeer {
	peer := newFakePeer(connID)
	h.session.Attach(peer)
	return peer
}

// join connects a peer and joins as name, returning the assigned player id.
func (h *harness) join(name string) (*fakePeer, string) {
	h.t.Helper()
	peer := h.connect("conn-" + name)
	h.send(peer, protocol.JoinRequest{Name: name})
	accepted := peer.decoded(h.t, protocol.TypeJoinAccepted)
	require.Len(h.t, accepted, 1, "join not accepted for %s", name)
	return peer, accepted[0].(protocol.JoinAccepted).PlayerID
}

// finishAnimation fires the pending reveal timer.
func (h *harness) finishAnimation() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, w := h.clock.AdvanceNext()
	w.MustWait(ctx)
}

func (h *harness) waitFor(cond func(game.State) bool) game.State {
	h.t.Helper()
	var st game.State
	require.Eventually(h.t, func() bool {
		st = h.session.State()
		return cond(st)
	}, 2*time.Second, 5*time.Millisecond)
	return st
}
