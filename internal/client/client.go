// Package client is the player side of a deathroll room. It joins a host over
// a WebSocket, mirrors the host's state, submits intents and keeps the
// connection alive with heartbeats and backoff reconnection.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"

	"github.com/lox/deathroll/internal/eventbus"
	"github.com/lox/deathroll/internal/game"
	"github.com/lox/deathroll/internal/persist"
	"github.com/lox/deathroll/internal/protocol"
	"github.com/lox/deathroll/internal/roomcode"
)

const (
	writeWait      = 10 * time.Second
	readWait       = 60 * time.Second
	maxMessageSize = 1 << 20
	sendBuffer     = 64

	// An unanswered heartbeat older than this marks the link as poor.
	poorAfter = 300 * time.Millisecond
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	Logger *log.Logger
	Clock  quartz.Clock
	Dialer *websocket.Dialer
	// Store keeps the session so a restarted client rejoins as the same
	// player. Optional.
	Store persist.SessionStore

	PathPrefix        string
	ConnectTimeout    time.Duration
	HeartbeatInterval time.Duration
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
}

func (o *Options) applyDefaults() {
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.Clock == nil {
		o.Clock = quartz.NewReal()
	}
	if o.Dialer == nil {
		o.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	if o.PathPrefix == "" {
		o.PathPrefix = "deathroll-"
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 30 * time.Second
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 5 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
}

// Backoff returns the delay before reconnection attempt n (1-based).
func Backoff(n int, base, ceiling time.Duration) time.Duration {
	d := base
	for i := 1; i < n; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	return min(d, ceiling)
}

// link is one WebSocket connection attempt. A Client replaces its link on
// every reconnection; callbacks from an old link are ignored.
type link struct {
	conn      *websocket.Conn
	send      chan *protocol.Message
	done      chan struct{}
	joined    chan error
	accepted  bool
	closed    bool
	heartbeat *quartz.Ticker
}

// Client is a player's session with one host.
type Client struct {
	serverURL string
	opts      Options
	logger    *log.Logger
	clock     quartz.Clock
	events    *eventbus.Bus[Event]

	mu        sync.Mutex
	link      *link
	code      string
	name      string
	spectator bool
	playerID  string
	state     game.State
	hasState  bool
	lastSeq   uint64
	status    Status
	quality   NetworkQuality
	latency   time.Duration
	pingSent  time.Time
	reconnect ReconnectionState

	// closed stops reconnection after an explicit disconnect, a kick or a
	// rejection. JoinRoom clears it.
	closed     bool
	attempt    int
	retryTimer *quartz.Timer
	retryToken uint64
}

// New creates a client for the host at serverURL (http, https, ws or wss).
func New(serverURL string, opts Options) *Client {
	opts.applyDefaults()
	return &Client{
		serverURL: serverURL,
		opts:      opts,
		logger:    opts.Logger.WithPrefix("client"),
		clock:     opts.Clock,
		events:    eventbus.New[Event](),
		reconnect: ReconnectionState{MaxAttempts: opts.MaxAttempts},
	}
}

// Subscribe registers fn for client events.
func (c *Client) Subscribe(fn func(Event)) (unsubscribe func()) {
	return c.events.Subscribe(fn)
}

// State returns the last state received from the host.
func (c *Client) State() (game.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone(), c.hasState
}

// PlayerID returns the id the host assigned, or "" before the first join.
func (c *Client) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// RoomCode returns the room joined most recently.
func (c *Client) RoomCode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Client) Latency() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latency
}

func (c *Client) Quality() NetworkQuality {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quality
}

func (c *Client) ReconnectionState() ReconnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnect
}

// JoinRoom connects to the host for code and joins as name. It returns once
// the host accepts or rejects the join, or when the connect timeout expires.
func (c *Client) JoinRoom(ctx context.Context, code, name string, spectator bool) error {
	if err := roomcode.Validate(code); err != nil {
		return fmt.Errorf("invalid room code: %w", err)
	}
	req := protocol.JoinRequest{Name: protocol.NormalizeName(name), Spectator: spectator}
	if err := req.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.link != nil {
		c.mu.Unlock()
		return errors.New("already connected to a room")
	}
	code = roomcode.Normalize(code)
	c.code = code
	c.name = req.Name
	c.spectator = spectator
	c.playerID = c.resumeIDLocked()
	c.hasState = false
	c.closed = false
	c.attempt = 0
	c.cancelRetryLocked()
	c.setStatusLocked(StatusConnecting)
	c.mu.Unlock()

	c.logger.Info("Joining room", "room", code, "name", req.Name)
	err := c.connect(ctx)
	if err != nil && !errors.Is(err, ErrJoinRejected) && !errors.Is(err, ErrKicked) {
		c.mu.Lock()
		c.setStatusLocked(StatusFailed)
		c.events.Publish(ErrorEvent{Err: err})
		c.mu.Unlock()
	}
	return err
}

// RequestRoll asks the host to roll for this player.
func (c *Client) RequestRoll(req protocol.RollRequest) error {
	return c.sendIntent(req)
}

// SetRange asks the host to change the current range.
func (c *Client) SetRange(maxRange int) error {
	return c.sendIntent(protocol.SetRange{MaxRange: maxRange})
}

// ChooseRoll picks one of the two results of a roll-twice.
func (c *Client) ChooseRoll(chosen int) error {
	return c.sendIntent(protocol.ChooseRoll{ChosenRoll: chosen})
}

// RequestSync asks the host to resend the full state.
func (c *Client) RequestSync() error {
	return c.sendIntent(protocol.StateSyncRequest{})
}

// ManualReconnect cancels any pending backoff and reconnects immediately.
func (c *Client) ManualReconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.code == "" || c.playerID == "" {
		c.mu.Unlock()
		return ErrNotConnected
	}
	if c.link != nil && c.link.accepted {
		c.mu.Unlock()
		return nil
	}
	c.cancelRetryLocked()
	c.attempt = 0
	c.closed = false
	c.reconnect = ReconnectionState{MaxAttempts: c.opts.MaxAttempts, Reconnecting: true}
	c.events.Publish(c.reconnect)
	c.setStatusLocked(StatusReconnecting)
	c.mu.Unlock()

	c.logger.Info("Manual reconnect")
	return c.attemptReconnect(ctx)
}

// Disconnect leaves the room. No reconnection is attempted and the saved
// session is cleared.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cancelRetryLocked()
	if c.link != nil {
		c.teardownLocked(c.link, ErrNotConnected)
	}
	c.clearSessionLocked()
	c.setQualityLocked(QualityOffline)
	c.setStatusLocked(StatusDisconnected)
	return nil
}

// Close disconnects and stops event delivery. It must not be called from a
// subscriber.
func (c *Client) Close() error {
	err := c.Disconnect()
	c.events.Close()
	return err
}

func (c *Client) roomURL() (string, error) {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/room/" + roomcode.PeerAddress(c.opts.PathPrefix, c.code)
	return u.String(), nil
}

// connect dials the host, sends a join and waits for the answer.
func (c *Client) connect(ctx context.Context) error {
	c.mu.Lock()
	target, err := c.roomURL()
	req := protocol.JoinRequest{Name: c.name, Spectator: c.spectator, PlayerID: c.playerID}
	c.mu.Unlock()
	if err != nil {
		return err
	}
	msg, err := protocol.NewMessage(req)
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	conn, _, err := c.opts.Dialer.DialContext(dialCtx, target, nil)
	if err != nil {
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: dialing %s", ErrTimeout, target)
		}
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	l := &link{
		conn:   conn,
		send:   make(chan *protocol.Message, sendBuffer),
		done:   make(chan struct{}),
		joined: make(chan error, 1),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrNotConnected
	}
	if c.link != nil {
		c.teardownLocked(c.link, ErrConnection)
	}
	c.link = l
	c.lastSeq = 0
	c.mu.Unlock()

	go c.writePump(l)
	go c.readPump(l)

	c.mu.Lock()
	_ = c.enqueueLocked(l, msg)
	c.mu.Unlock()

	select {
	case err := <-l.joined:
		return err
	case <-dialCtx.Done():
		c.mu.Lock()
		c.teardownLocked(l, ErrTimeout)
		c.mu.Unlock()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: waiting for join", ErrTimeout)
	}
}

// attemptReconnect runs one reconnection and schedules the next on failure.
func (c *Client) attemptReconnect(ctx context.Context) error {
	err := c.connect(ctx)
	if err == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A rejection or kick closed the client; a newer link owns the retry.
	if c.closed || c.link != nil {
		return err
	}
	c.logger.Warn("Reconnect attempt failed", "attempt", c.attempt, "error", err)
	c.events.Publish(ErrorEvent{Err: err, Recoverable: true})
	c.scheduleReconnectLocked()
	return err
}

func (c *Client) scheduleReconnectLocked() {
	c.attempt++
	if c.attempt > c.opts.MaxAttempts {
		c.reconnect = ReconnectionState{
			Attempt:     c.opts.MaxAttempts,
			MaxAttempts: c.opts.MaxAttempts,
			Exhausted:   true,
		}
		c.events.Publish(c.reconnect)
		c.setStatusLocked(StatusFailed)
		c.logger.Error("Giving up on reconnection", "attempts", c.opts.MaxAttempts)
		c.events.Publish(ErrorEvent{Err: ErrReconnectExhausted})
		return
	}

	delay := Backoff(c.attempt, c.opts.BaseDelay, c.opts.MaxDelay)
	c.reconnect = ReconnectionState{
		Attempt:      c.attempt,
		MaxAttempts:  c.opts.MaxAttempts,
		NextDelay:    delay,
		Reconnecting: true,
	}
	c.events.Publish(c.reconnect)
	c.logger.Info("Reconnecting", "attempt", c.attempt, "delay", delay)

	c.retryToken++
	token := c.retryToken
	c.retryTimer = c.clock.AfterFunc(delay, func() { c.retry(token) }, "client", "reconnect")
}

func (c *Client) retry(token uint64) {
	c.mu.Lock()
	if c.closed || token != c.retryToken {
		c.mu.Unlock()
		return
	}
	c.retryTimer = nil
	c.mu.Unlock()
	_ = c.attemptReconnect(context.Background())
}

func (c *Client) cancelRetryLocked() {
	c.retryToken++
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

func (c *Client) sendIntent(p protocol.PlayerMessage) error {
	msg, err := protocol.NewMessage(p)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link == nil || !c.link.accepted {
		return ErrNotConnected
	}
	return c.enqueueLocked(c.link, msg)
}

func (c *Client) enqueueLocked(l *link, msg *protocol.Message) error {
	if l.closed {
		return ErrNotConnected
	}
	select {
	case l.send <- msg:
		return nil
	default:
		c.linkLostLocked(l, errors.New("send buffer full"))
		return ErrNotConnected
	}
}

// signal reports the join outcome once; later outcomes are dropped.
func signal(l *link, err error) {
	select {
	case l.joined <- err:
	default:
	}
}

func (c *Client) teardownLocked(l *link, cause error) {
	if l.closed {
		return
	}
	l.closed = true
	close(l.send)
	close(l.done)
	if l.heartbeat != nil {
		l.heartbeat.Stop()
	}
	if c.link == l {
		c.link = nil
	}
	c.pingSent = time.Time{}
	signal(l, cause)
}

func (c *Client) linkLost(l *link, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.linkLostLocked(l, err)
}

func (c *Client) linkLostLocked(l *link, err error) {
	if l.closed {
		return
	}
	accepted := l.accepted
	signal(l, fmt.Errorf("%w: %w", ErrConnection, err))
	c.teardownLocked(l, ErrConnection)
	if !accepted || c.closed {
		return
	}

	c.logger.Warn("Lost connection to host", "error", err)
	c.setQualityLocked(QualityOffline)
	c.setStatusLocked(StatusReconnecting)
	c.events.Publish(ErrorEvent{Err: fmt.Errorf("%w: %w", ErrConnection, err), Recoverable: true})
	c.scheduleReconnectLocked()
}

func (c *Client) readPump(l *link) {
	l.conn.SetReadLimit(maxMessageSize)
	for {
		_ = l.conn.SetReadDeadline(time.Now().Add(readWait))
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("WebSocket error", "error", err)
			}
			c.linkLost(l, err)
			return
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			c.logger.Warn("Dropping malformed frame", "error", err)
			continue
		}
		c.handle(l, msg)
	}
}

func (c *Client) writePump(l *link) {
	defer func() { _ = l.conn.Close() }()
	for msg := range l.send {
		_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := l.conn.WriteJSON(msg); err != nil {
			c.logger.Debug("Failed to write message", "error", err)
			return
		}
	}
	_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = l.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (c *Client) handle(l *link, msg *protocol.Message) {
	hm, err := protocol.DecodeHostMessage(msg)
	if err != nil {
		c.logger.Warn("Ignoring invalid message from host", "type", msg.Type, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if l.closed {
		return
	}

	switch m := hm.(type) {
	case protocol.JoinAccepted:
		c.acceptLocked(l, msg.Seq, m.PlayerID, m.State, false)
		return
	case protocol.ReconnectAccepted:
		c.acceptLocked(l, msg.Seq, m.PlayerID, m.State, true)
		return
	case protocol.JoinRejected:
		c.logger.Warn("Join rejected", "reason", m.Reason)
		c.events.Publish(JoinRejected{Reason: m.Reason})
		c.closed = true
		c.cancelRetryLocked()
		signal(l, fmt.Errorf("%w: %s", ErrJoinRejected, m.Reason))
		c.teardownLocked(l, ErrJoinRejected)
		c.setStatusLocked(StatusDisconnected)
		return
	}

	if msg.Seq != 0 {
		if msg.Seq <= c.lastSeq {
			c.logger.Debug("Dropping stale frame", "type", msg.Type, "seq", msg.Seq, "last", c.lastSeq)
			return
		}
		c.lastSeq = msg.Seq
	}

	switch m := hm.(type) {
	case protocol.StateUpdate:
		c.state = m.State
		c.hasState = true
		c.events.Publish(StateUpdate{State: m.State.Clone()})
	case protocol.GameOver:
		c.events.Publish(GameOver{LoserID: m.LoserID})
	case protocol.Kick:
		c.logger.Warn("Kicked by host", "reason", m.Reason)
		c.events.Publish(Kicked{Reason: m.Reason})
		c.closed = true
		c.playerID = ""
		c.cancelRetryLocked()
		c.clearSessionLocked()
		signal(l, fmt.Errorf("%w: %s", ErrKicked, m.Reason))
		c.teardownLocked(l, ErrKicked)
		c.setQualityLocked(QualityOffline)
		c.setStatusLocked(StatusDisconnected)
	case protocol.HeartbeatAck:
		c.ackLocked()
	}
}

func (c *Client) acceptLocked(l *link, seq uint64, playerID string, st game.State, reconnected bool) {
	l.accepted = true
	c.lastSeq = seq
	c.playerID = playerID
	c.state = st
	c.hasState = true
	c.attempt = 0
	c.cancelRetryLocked()

	c.logger.Info("Joined room", "room", c.code, "player", playerID, "reconnected", reconnected)
	if c.reconnect.Reconnecting || c.reconnect.Exhausted {
		c.reconnect = ReconnectionState{MaxAttempts: c.opts.MaxAttempts}
		c.events.Publish(c.reconnect)
	}
	c.setStatusLocked(StatusConnected)
	c.events.Publish(JoinAccepted{PlayerID: playerID, State: st.Clone(), Reconnected: reconnected})
	c.events.Publish(StateUpdate{State: st.Clone()})

	if reconnected {
		if req, err := protocol.NewMessage(protocol.StateSyncRequest{}); err == nil {
			_ = c.enqueueLocked(l, req)
		}
	}

	l.heartbeat = c.clock.NewTicker(c.opts.HeartbeatInterval, "client", "heartbeat")
	go c.heartbeatLoop(l, l.heartbeat)

	c.saveSessionLocked()
	signal(l, nil)
}

func (c *Client) heartbeatLoop(l *link, t *quartz.Ticker) {
	for {
		select {
		case <-l.done:
			return
		case <-t.C:
			c.beat(l)
		}
	}
}

func (c *Client) beat(l *link) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l.closed {
		return
	}
	if c.pingSent.IsZero() {
		c.pingSent = c.clock.Now()
	} else if c.clock.Since(c.pingSent) >= poorAfter {
		c.setQualityLocked(QualityPoor)
	}
	msg, err := protocol.NewMessage(protocol.Heartbeat{})
	if err != nil {
		return
	}
	_ = c.enqueueLocked(l, msg)
}

func (c *Client) ackLocked() {
	if c.pingSent.IsZero() {
		return
	}
	c.latency = c.clock.Since(c.pingSent)
	c.pingSent = time.Time{}
	c.events.Publish(LatencyUpdate{Latency: c.latency})
	c.setQualityLocked(QualityFor(c.latency, true))
}

func (c *Client) setStatusLocked(s Status) {
	if c.status == s {
		return
	}
	c.status = s
	c.events.Publish(StatusChange{Status: s})
}

func (c *Client) setQualityLocked(q NetworkQuality) {
	if c.quality == q {
		return
	}
	c.quality = q
	c.events.Publish(NetworkQualityChange{Quality: q})
}

func (c *Client) resumeIDLocked() string {
	if c.opts.Store == nil {
		return ""
	}
	saved, ok, err := c.opts.Store.Load()
	if err != nil {
		c.logger.Warn("Failed to load saved session", "error", err)
		return ""
	}
	if !ok || !persist.Fresh(saved.Timestamp, c.clock.Now(), persist.TTL) {
		return ""
	}
	if !strings.EqualFold(saved.RoomCode, c.code) || saved.PlayerName != c.name {
		return ""
	}
	return saved.PlayerID
}

func (c *Client) saveSessionLocked() {
	if c.opts.Store == nil {
		return
	}
	err := c.opts.Store.Save(persist.SavedPlayerSession{
		RoomCode:   c.code,
		PlayerName: c.name,
		PlayerID:   c.playerID,
		Timestamp:  c.clock.Now(),
	})
	if err != nil {
		c.logger.Warn("Failed to save session", "error", err)
	}
}

func (c *Client) clearSessionLocked() {
	if c.opts.Store == nil {
		return
	}
	if err := c.opts.Store.Clear(); err != nil {
		c.logger.Warn("Failed to clear saved session", "error", err)
	}
}
