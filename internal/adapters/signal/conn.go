package signal

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/jeferson-byte-ai/Orbis/internal/core"
)

// ErrBackpressure is returned by TrySend when the outbound buffer is
// full. The frame is dropped; a slow reader never stalls the server.
var ErrBackpressure = errors.New("backpressure")

const (
	writeDeadline     = 5 * time.Second
	defaultPingPeriod = 54 * time.Second
)

type wsConn struct {
	conn       *websocket.Conn
	send       chan core.Frame
	pingPeriod time.Duration

	mu     sync.RWMutex
	closed bool
}

func newWSConn(conn *websocket.Conn, sendBuffer int, pingPeriod time.Duration) *wsConn {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	if pingPeriod <= 0 {
		pingPeriod = defaultPingPeriod
	}
	return &wsConn{conn: conn, send: make(chan core.Frame, sendBuffer), pingPeriod: pingPeriod}
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// writePump drains the outbound buffer onto the socket and pings on a
// period to keep intermediaries from dropping the connection. It exits
// when the channel closes or a write fails; either way the reader
// notices through the closed socket.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
