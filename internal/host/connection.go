package host

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/deathroll/internal/protocol"
)

// WebSocket keepalive. These sit under the protocol-level HEARTBEAT and
// only catch half-open sockets; pingPeriod must stay below pongWait.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192 // inbound frames are player intents only
	sendBuffer     = 256
)

// ErrConnectionClosed is returned when sending on a closed connection.
var ErrConnectionClosed = errors.New("connection closed")

// Connection is one player's WebSocket. Frames received are handed to the
// session; frames sent are queued and written by a dedicated goroutine.
type Connection struct {
	id      string
	conn    *websocket.Conn
	send    chan *protocol.Message
	session *Session
	logger  *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewConnection wraps conn. Call Start to begin pumping frames.
func NewConnection(id string, conn *websocket.Conn, session *Session, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		id:      id,
		conn:    conn,
		send:    make(chan *protocol.Message, sendBuffer),
		session: session,
		logger:  logger.WithPrefix("conn").With("conn", id),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ID returns the connection id assigned at upgrade.
func (c *Connection) ID() string { return c.id }

// Done is closed once both pumps have stopped.
func (c *Connection) Done() <-chan struct{} { return c.ctx.Done() }

// Start attaches the connection to the session and starts the pumps.
func (c *Connection) Start() {
	c.session.Attach(c)
	go c.writePump()
	go c.readPump()
}

// Send queues msg. It never blocks; a peer that cannot keep up is dropped.
func (c *Connection) Send(msg *protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		c.closeLocked()
		return ErrConnectionClosed
	}
}

// Close flushes queued frames, sends a close frame and tears the socket down.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *Connection) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Connection) readPump() {
	defer func() {
		_ = c.Close()
		c.session.Detach(c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket error", "error", err)
			}
			return
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			c.logger.Warn("Dropping malformed frame", "conn", c.id, "error", err)
			continue
		}
		c.session.Handle(c.id, msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		c.cancel()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("Failed to write message", "error", err)
				_ = c.Close()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
