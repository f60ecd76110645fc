package socket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkchan/bigtwo/internal/protocol"
)

// newPair dials a real WebSocket against a throwaway server and wraps
// the server side in a Conn with running pumps. The client side is
// returned for the test to read from.
func newPair(t *testing.T, roomID, playerID string) (*Conn, *websocket.Conn) {
	t.Helper()

	accepted := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- ws
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	var ws *websocket.Conn
	select {
	case ws = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted the connection")
	}

	c := newConn(ws, roomID, playerID, zerolog.Nop())
	c.start(nil, nil)
	t.Cleanup(c.Close)
	return c, client
}

func readEnvelope(t *testing.T, ws *websocket.Conn) protocol.Envelope {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	env, err := protocol.Decode(data)
	require.NoError(t, err)
	return env
}

func mustEnvelope(t *testing.T, msgType string, payload any) protocol.Envelope {
	t.Helper()
	env, err := protocol.NewEnvelope(msgType, payload, time.Now())
	require.NoError(t, err)
	return env
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub(quartz.NewReal(), zerolog.Nop())
}

func TestHubBroadcast(t *testing.T) {
	t.Parallel()
	hub := newTestHub(t)

	c1, ws1 := newPair(t, "room-1", "alice")
	c2, ws2 := newPair(t, "room-1", "bob")
	c3, ws3 := newPair(t, "room-2", "carol")
	hub.Register(c1)
	hub.Register(c2)
	hub.Register(c3)

	hub.Broadcast("room-1", mustEnvelope(t, protocol.TypeTurnChange, protocol.TurnChangePayload{Player: "alice"}))

	for _, ws := range []*websocket.Conn{ws1, ws2} {
		env := readEnvelope(t, ws)
		assert.Equal(t, protocol.TypeTurnChange, env.Type)
	}

	// The other room hears nothing.
	require.NoError(t, ws3.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := ws3.ReadMessage()
	assert.Error(t, err)
}

func TestHubUnicast(t *testing.T) {
	t.Parallel()
	hub := newTestHub(t)

	c1, ws1 := newPair(t, "room-1", "alice")
	c2, ws2 := newPair(t, "room-1", "bob")
	hub.Register(c1)
	hub.Register(c2)

	hub.Unicast("room-1", "alice", mustEnvelope(t, protocol.TypeSnapshot, nil))

	env := readEnvelope(t, ws1)
	assert.Equal(t, protocol.TypeSnapshot, env.Type)

	require.NoError(t, ws2.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := ws2.ReadMessage()
	assert.Error(t, err)

	// Unknown targets are a no-op.
	hub.Unicast("room-1", "nobody", mustEnvelope(t, protocol.TypeSnapshot, nil))
}

func TestHubSendError(t *testing.T) {
	t.Parallel()
	hub := newTestHub(t)

	c1, ws1 := newPair(t, "room-1", "alice")
	hub.Register(c1)

	hub.SendError("room-1", "alice", "NOT_YOUR_TURN", "wait for your turn")

	env := readEnvelope(t, ws1)
	require.Equal(t, protocol.TypeError, env.Type)
	var p protocol.ErrorPayload
	require.NoError(t, env.DecodePayload(&p))
	assert.Equal(t, "NOT_YOUR_TURN", p.Code)
	assert.Equal(t, "wait for your turn", p.Message)
	assert.False(t, env.Meta.Timestamp.IsZero())
}

func TestHubRegisterDisplacesOldConnection(t *testing.T) {
	t.Parallel()
	hub := newTestHub(t)

	c1, ws1 := newPair(t, "room-1", "alice")
	hub.Register(c1)

	c2, ws2 := newPair(t, "room-1", "alice")
	hub.Register(c2)

	// The stale socket is closed; the new one still receives.
	require.NoError(t, ws1.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws1.ReadMessage()
	assert.Error(t, err)

	hub.Unicast("room-1", "alice", mustEnvelope(t, protocol.TypeSnapshot, nil))
	env := readEnvelope(t, ws2)
	assert.Equal(t, protocol.TypeSnapshot, env.Type)
}

func TestHubUnregisterKeepsNewerConnection(t *testing.T) {
	t.Parallel()
	hub := newTestHub(t)

	c1, _ := newPair(t, "room-1", "alice")
	hub.Register(c1)
	c2, _ := newPair(t, "room-1", "alice")
	hub.Register(c2)

	// Unregistering the displaced connection must not evict the
	// replacement.
	hub.Unregister(c1)
	assert.Equal(t, []string{"alice"}, hub.Connected("room-1"))

	hub.Unregister(c2)
	assert.Empty(t, hub.Connected("room-1"))
}

func TestHubCloseRoom(t *testing.T) {
	t.Parallel()
	hub := newTestHub(t)

	c1, ws1 := newPair(t, "room-1", "alice")
	c2, ws2 := newPair(t, "room-1", "bob")
	hub.Register(c1)
	hub.Register(c2)

	hub.CloseRoom("room-1")
	assert.Empty(t, hub.Connected("room-1"))

	for _, ws := range []*websocket.Conn{ws1, ws2} {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := ws.ReadMessage()
		assert.Error(t, err)
	}
}

func TestConnCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	c, _ := newPair(t, "room-1", "alice")
	c.Close()
	c.Close()
}

func TestConnSlowClientIsClosed(t *testing.T) {
	t.Parallel()

	// A conn whose write pump never runs simulates a reader that
	// stopped draining. Once the queue fills, Send closes the client
	// instead of blocking the room.
	accepted := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- ws
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	c := newConn(<-accepted, "room-1", "alice", zerolog.Nop())
	for i := 0; i < sendBuffer+1; i++ {
		c.Send([]byte("{}"))
	}

	select {
	case <-c.ctx.Done():
	default:
		t.Fatal("slow client was not closed")
	}
}
