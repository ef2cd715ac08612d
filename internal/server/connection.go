package server

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/lox/cardroom/internal/protocol"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("connection send buffer full")
)

// FrameHandler processes one inbound frame for a connection.
type FrameHandler interface {
	HandleFrame(c *Connection, frame []byte)
	Disconnected(c *Connection)
}

// Connection owns one websocket. The hub only ever refers to it through
// the Transport interface; the read and write pumps own the socket.
type Connection struct {
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	logger   zerolog.Logger
	clock    quartz.Clock
	limiter  *rate.Limiter
	handler  FrameHandler
	lastSeen atomic.Int64

	closeOnce   sync.Once
	closeMu     sync.Mutex
	closeReason string
}

// NewConnection wraps an upgraded websocket.
func NewConnection(conn *websocket.Conn, handler FrameHandler, cfg Config, clock quartz.Clock, logger zerolog.Logger) *Connection {
	c := &Connection{
		conn:    conn,
		send:    make(chan []byte, cfg.SendBuffer),
		done:    make(chan struct{}),
		logger:  logger.With().Str("component", "conn").Str("remote", conn.RemoteAddr().String()).Logger(),
		clock:   clock,
		limiter: rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		handler: handler,
	}
	c.touch()
	return c
}

// Start runs the pumps. It returns immediately.
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Send queues a frame. It never blocks; a full buffer means the peer is
// not keeping up and is reported as an error.
func (c *Connection) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		return ErrSendBufferFull
	}
}

// Ping writes a control ping frame.
func (c *Connection) Ping() error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, c.clock.Now().Add(writeWait))
}

// Close stops both pumps. The write pump sends a close frame carrying
// reason before the socket is closed.
func (c *Connection) Close(reason string) {
	c.closeOnce.Do(func() {
		c.closeMu.Lock()
		c.closeReason = reason
		c.closeMu.Unlock()
		close(c.done)
	})
}

// LastSeen is when the peer last sent anything, pongs included.
func (c *Connection) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

// Allow reports whether the peer is within its inbound rate limit.
func (c *Connection) Allow() bool {
	return c.limiter.Allow()
}

func (c *Connection) touch() {
	c.lastSeen.Store(c.clock.Now().UnixNano())
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() {
		c.Close("read closed")
		c.handler.Disconnected(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("Unexpected WebSocket close error")
			}
			return
		}
		c.touch()
		c.handler.HandleFrame(c, frame)
	}
}

// writePump writes queued frames until the connection is closed.
func (c *Connection) writePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(c.clock.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug().Err(err).Msg("Failed to write message")
				c.Close("write failed")
				return
			}

		case <-c.done:
			c.flush()
			c.closeMu.Lock()
			reason := c.closeReason
			c.closeMu.Unlock()
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, c.clock.Now().Add(writeWait))
			return
		}
	}
}

// flush writes whatever is still queued, so a frame sent just before
// Close (session_replaced, a final error) still reaches the peer.
func (c *Connection) flush() {
	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(c.clock.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

// sendMessage marshals and queues a message, logging failures.
func (c *Connection) sendMessage(msgType string, payload any) {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("type", msgType).Msg("Failed to encode message")
		return
	}
	if err := c.Send(data); err != nil {
		c.logger.Debug().Err(err).Str("type", msgType).Msg("Dropped outbound message")
	}
}
