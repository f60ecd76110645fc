// Package socket carries the WebSocket side of the server: the hub of
// live connections, the per-connection read/write pumps, the ingress
// handler that turns client frames into intent events and the egress
// subscriber that fans facts back out as wire envelopes.
package socket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mkchan/bigtwo/internal/protocol"
)

const (
	// writeWait bounds a single write to the peer.
	writeWait = 10 * time.Second

	// pongWait is how long the peer may stay silent.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound frames.
	maxMessageSize = 8192

	// sendBuffer is the per-client outbound queue. A client that
	// falls this far behind is force-closed rather than allowed to
	// stall the room.
	sendBuffer = 256
)

// Conn wraps one client's WebSocket with buffered writes.
type Conn struct {
	ws       *websocket.Conn
	send     chan []byte
	playerID string
	roomID   string
	logger   zerolog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	onFrame func(data []byte)
	onClose func()
}

func newConn(ws *websocket.Conn, roomID, playerID string, logger zerolog.Logger) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		ws:       ws,
		send:     make(chan []byte, sendBuffer),
		playerID: playerID,
		roomID:   roomID,
		logger: logger.With().
			Str("component", "conn").
			Str("room", roomID).
			Str("player", playerID).
			Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// start launches the pumps. onFrame receives every inbound frame;
// onClose fires once when the connection dies for any reason.
func (c *Conn) start(onFrame func([]byte), onClose func()) {
	c.onFrame = onFrame
	c.onClose = onClose
	go c.writePump()
	go c.readPump()
}

// Close tears the connection down. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.ws.Close()
		if c.onClose != nil {
			// Close can be reached from inside a hub broadcast;
			// running the callback inline would re-enter the hub
			// lock. A goroutine keeps teardown off the hot path.
			go c.onClose()
		}
	})
}

// Send enqueues an encoded envelope. Hub fan-out calls this inline,
// so it must not block: the send queue is the slow client's only
// grace, and a full queue closes the connection. There is no enqueue
// deadline; waiting here would hold up every other client in the room.
func (c *Conn) Send(frame []byte) {
	select {
	case c.send <- frame:
	case <-c.ctx.Done():
	default:
		c.logger.Warn().Msg("send queue full, closing slow client")
		c.Close()
	}
}

// SendEnvelope encodes and enqueues an envelope.
func (c *Conn) SendEnvelope(env protocol.Envelope) {
	frame, err := env.Encode()
	if err != nil {
		c.logger.Error().Err(err).Str("type", env.Type).Msg("failed to encode envelope")
		return
	}
	c.Send(frame)
}

func (c *Conn) readPump() {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("read error")
			}
			return
		}
		if c.onFrame != nil {
			c.onFrame(data)
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug().Err(err).Msg("write error")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
