package client

import (
	"context"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/lox/deathroll/internal/game"
	"github.com/lox/deathroll/internal/host"
	"github.com/lox/deathroll/internal/protocol"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// hostRoller returns the same result for every roll, capped at the range.
type hostRoller struct {
	mu     sync.Mutex
	result int
}

func (r *hostRoller) Roll(maxRange int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return min(r.result, maxRange), nil
}

func (r *hostRoller) set(v int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = v
}

// testHost is a real host session served over httptest. Its clock is a mock
// so roll reveals happen only when the test advances it.
type testHost struct {
	session *host.Session
	server  *httptest.Server
	clock   *quartz.Mock
	roller  *hostRoller
}

func startHost(t *testing.T) *testHost {
	t.Helper()
	clk := quartz.NewMock(t)
	roller := &hostRoller{result: 42}
	session, err := host.NewSession("AB23", host.Options{
		Logger:   testLogger(),
		Clock:    clk,
		Roller:   roller,
		Settings: game.Settings{InitialMaxRoll: 100},
	})
	require.NoError(t, err)
	srv := host.NewServer(host.DefaultConfig(), session, testLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		session.EndSession("")
		ts.Close()
	})
	return &testHost{session: session, server: ts, clock: clk, roller: roller}
}

// recorder collects every event a client publishes.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func eventsOf[E Event](r *recorder) []E {
	var out []E
	for _, e := range r.all() {
		if v, ok := e.(E); ok {
			out = append(out, v)
		}
	}
	return out
}

type testClient struct {
	*Client
	clock  *quartz.Mock
	events *recorder
}

func newTestClient(t *testing.T, url string, mutate ...func(*Options)) *testClient {
	t.Helper()
	clk := quartz.NewMock(t)
	opts := Options{
		Logger: testLogger(),
		Clock:  clk,
	}
	for _, m := range mutate {
		m(&opts)
	}
	c := New(url, opts)
	rec := &recorder{}
	c.Subscribe(rec.add)
	t.Cleanup(func() { _ = c.Close() })
	return &testClient{Client: c, clock: clk, events: rec}
}

func (tc *testClient) join(t *testing.T, name string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tc.JoinRoom(ctx, "AB23", name, false))
}

// advance fires the next timer on the client's clock and waits for it.
func (tc *testClient) advance(t *testing.T) time.Duration {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d, w := tc.clock.AdvanceNext()
	w.MustWait(ctx)
	return d
}

// dropConnection closes the socket without telling the client, as a network
// failure would.
func (tc *testClient) dropConnection() {
	tc.mu.Lock()
	l := tc.link
	tc.mu.Unlock()
	if l != nil {
		_ = l.conn.Close()
	}
}

// reveal fires the host's pending roll timer.
func (h *testHost) reveal(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, w := h.clock.AdvanceNext()
	w.MustWait(ctx)
}

func waitUntil(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 5*time.Millisecond, msg)
}

// newLink returns a link with no socket, for feeding frames directly.
func newLink() *link {
	return &link{
		send:   make(chan *protocol.Message, sendBuffer),
		done:   make(chan struct{}),
		joined: make(chan error, 1),
	}
}

func frame(t *testing.T, p protocol.Payload, seq uint64) *protocol.Message {
	t.Helper()
	msg, err := protocol.NewMessage(p)
	require.NoError(t, err)
	msg.Seq = seq
	return msg
}
