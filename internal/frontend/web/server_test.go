package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/arena/internal/game/board"
	"github.com/cory-johannsen/arena/internal/game/duel"
	"github.com/cory-johannsen/arena/internal/game/room"
	"github.com/cory-johannsen/arena/internal/game/session"
	"github.com/cory-johannsen/arena/internal/gateway"
	"github.com/cory-johannsen/arena/internal/protocol"
)

func testOptions() Options {
	return Options{
		WriteWait:      time.Second,
		PongWait:       2 * time.Second,
		PingPeriod:     time.Second,
		MaxMessageSize: 4096,
	}
}

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server, *room.Registry) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	rooms := room.NewRegistry(map[room.Kind]room.Factory{
		room.KindDuel:  duel.NewState,
		room.KindBoard: board.NewState,
	})
	gw := gateway.New(rooms, session.NewManager(session.Options{}), nil, logger)
	srv := NewServer("127.0.0.1:0", gw, opts, logger)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		srv.Stop()
		ts.Close()
	})
	return srv, ts, rooms
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func dial(t *testing.T, ts *httptest.Server) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &client{t: t, conn: conn}
	env := c.read()
	require.Equal(t, protocol.EventWelcome, env.Event)
	var w protocol.Welcome
	require.NoError(t, json.Unmarshal(env.Data, &w))
	c.id = w.PlayerID
	return c
}

func (c *client) send(event string, data any) {
	c.t.Helper()
	raw, err := protocol.Encode(event, data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, raw))
}

func (c *client) read() protocol.Envelope {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	env, err := protocol.Decode(raw)
	require.NoError(c.t, err)
	return env
}

// until reads frames until one carries event.
func (c *client) until(event string) protocol.Envelope {
	c.t.Helper()
	for {
		if env := c.read(); env.Event == event {
			return env
		}
	}
}

func TestHealthz(t *testing.T) {
	_, ts, _ := newTestServer(t, testOptions())
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestDuelOverWebSocket(t *testing.T) {
	_, ts, _ := newTestServer(t, testOptions())
	a, b := dial(t, ts), dial(t, ts)
	assert.NotEqual(t, a.id, b.id)

	a.send(protocol.EventJoinRoom, "Arena")
	a.until(protocol.EventPlayers)
	b.send(protocol.EventJoinRoom, "Arena")
	b.until(protocol.EventPlayers)

	a.send(protocol.EventChoice, "Rock")
	b.send(protocol.EventChoice, "Scissors")

	var ra, rb protocol.Result
	require.NoError(t, json.Unmarshal(a.until(protocol.EventResult).Data, &ra))
	require.NoError(t, json.Unmarshal(b.until(protocol.EventResult).Data, &rb))
	assert.Equal(t, "Win", ra.Outcome)
	assert.Equal(t, "Lose", rb.Outcome)
}

func TestCloseDisconnectsAndNotifiesPartner(t *testing.T) {
	_, ts, rooms := newTestServer(t, testOptions())
	a, b := dial(t, ts), dial(t, ts)
	a.send(protocol.EventBoardJoinRoom, "T")
	a.until(protocol.EventBoardInit)
	b.send(protocol.EventBoardJoinRoom, "T")
	b.until(protocol.EventBoardInit)

	require.NoError(t, a.conn.Close())

	env := b.until(protocol.EventBoardPlayers)
	var seats []string
	require.NoError(t, json.Unmarshal(env.Data, &seats))
	assert.Equal(t, []string{b.id}, seats)
	assert.True(t, rooms.Exists(room.KindBoard, "T"))
}

func TestMalformedFrameGetsErrorEvent(t *testing.T) {
	_, ts, _ := newTestServer(t, testOptions())
	a := dial(t, ts)
	require.NoError(t, a.conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, protocol.EventError, a.read().Event)
}

func TestOriginCheck(t *testing.T) {
	opts := testOptions()
	opts.AllowedOrigins = []string{"https://arena.example"}
	_, ts, _ := newTestServer(t, opts)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://arena.example"}})
	require.NoError(t, err)
	_ = conn.Close()
}

func TestStopClosesOpenSockets(t *testing.T) {
	srv, ts, _ := newTestServer(t, testOptions())
	a := dial(t, ts)
	srv.Stop()

	require.NoError(t, a.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := a.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func TestUpgradeAfterStopIsRejected(t *testing.T) {
	srv, ts, _ := newTestServer(t, testOptions())
	srv.Stop()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	stopped := make(chan struct{})
	go func() {
		srv.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on a socket opened after shutdown began")
	}
}
