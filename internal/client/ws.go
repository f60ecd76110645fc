package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/mkchan/bigtwo/internal/protocol"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 54 * time.Second
)

// GameConn is a live WebSocket connection to one room. Inbound
// envelopes arrive on Frames; the channel closes when the connection
// dies.
type GameConn struct {
	ws     *websocket.Conn
	send   chan protocol.Envelope
	logger *log.Logger

	// Frames carries every decoded server envelope in arrival order.
	Frames chan protocol.Envelope

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Dial connects to a room. The token rides the subprotocol header the
// same way the browser client sends it.
func Dial(ctx context.Context, serverURL, roomID, token string, logger *log.Logger) (*GameConn, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws/" + roomID

	dialer := websocket.Dialer{
		Subprotocols:     []string{"bearer", token},
		HandshakeTimeout: 10 * time.Second,
	}
	ws, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connect to %s: %s", roomID, resp.Status)
		}
		return nil, fmt.Errorf("connect to %s: %w", roomID, err)
	}

	connCtx, cancel := context.WithCancel(context.Background())
	c := &GameConn{
		ws:     ws,
		send:   make(chan protocol.Envelope, 64),
		Frames: make(chan protocol.Envelope, 256),
		logger: logger.WithPrefix("ws"),
		ctx:    connCtx,
		cancel: cancel,
	}
	go c.readPump()
	go c.writePump()

	c.logger.Info("connected", "room", roomID)
	return c, nil
}

// Close tears the connection down. Safe to call more than once.
func (c *GameConn) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.ws.Close()
	})
}

// Done is closed when the connection is gone.
func (c *GameConn) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *GameConn) readPump() {
	defer func() {
		c.Close()
		close(c.Frames)
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read error", "error", err)
			}
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			c.logger.Warn("malformed frame from server", "error", err)
			continue
		}
		select {
		case c.Frames <- env:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *GameConn) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case env := <-c.send:
			frame, err := env.Encode()
			if err != nil {
				c.logger.Error("failed to encode frame", "type", env.Type, "error", err)
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("write error", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *GameConn) sendEnvelope(msgType string, payload any) error {
	env, err := protocol.NewEnvelope(msgType, payload, time.Now())
	if err != nil {
		return err
	}
	select {
	case c.send <- env:
		return nil
	case <-c.ctx.Done():
		return fmt.Errorf("connection closed")
	default:
		return fmt.Errorf("send buffer full")
	}
}

// Chat sends a chat line to the room.
func (c *GameConn) Chat(text string) error {
	return c.sendEnvelope(protocol.TypeChat, protocol.ChatPayload{Content: text})
}

// Move plays a card set, in wire form ("3d", "Th", ...).
func (c *GameConn) Move(cards []string) error {
	return c.sendEnvelope(protocol.TypeMove, protocol.MovePayload{Cards: cards})
}

// Pass passes the turn.
func (c *GameConn) Pass() error {
	return c.sendEnvelope(protocol.TypePass, nil)
}

// Ready toggles the lobby ready mark.
func (c *GameConn) Ready(ready bool) error {
	return c.sendEnvelope(protocol.TypeReady, protocol.ReadyPayload{Ready: ready})
}

// StartGame asks the server to deal. Host only.
func (c *GameConn) StartGame() error {
	return c.sendEnvelope(protocol.TypeStartGame, nil)
}

// Leave gives up the seat and disconnects.
func (c *GameConn) Leave() error {
	return c.sendEnvelope(protocol.TypeLeave, nil)
}
