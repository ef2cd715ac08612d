package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialWS(t *testing.T, ts *httptest.Server) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(msgType string, payload any) {
	c.t.Helper()
	data, err := protocol.Marshal(msgType, payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, data))
}

func (c *wsClient) next() protocol.Envelope {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	env, err := protocol.Decode(frame)
	require.NoError(c.t, err)
	return env
}

// expect skips frames until one of msgType arrives.
func (c *wsClient) expect(msgType string) protocol.Envelope {
	c.t.Helper()
	for i := 0; i < 20; i++ {
		if env := c.next(); env.Type == msgType {
			return env
		}
	}
	c.t.Fatalf("no %s frame arrived", msgType)
	return protocol.Envelope{}
}

func (c *wsClient) expectError(code string) protocol.Error {
	c.t.Helper()
	var msg protocol.Error
	require.NoError(c.t, c.expect(protocol.TypeError).Into(&msg))
	assert.Equal(c.t, code, msg.Code, msg.Message)
	return msg
}

func (c *wsClient) expectState() *game.State {
	c.t.Helper()
	var update protocol.TurnUpdate
	require.NoError(c.t, c.expect(protocol.TypeTurnUpdate).Into(&update))
	require.NotNil(c.t, update.GameState)
	return update.GameState
}

// expectVersion reads turn updates until one reaches version.
func (c *wsClient) expectVersion(version uint64) *game.State {
	c.t.Helper()
	for i := 0; i < 20; i++ {
		if s := c.expectState(); s.Version >= version {
			return s
		}
	}
	c.t.Fatalf("version %d never arrived", version)
	return nil
}

type wsRoom struct {
	srv    *Server
	ts     *httptest.Server
	gameID string
	alice  string
	bob    string
}

func newWSRoom(t *testing.T) *wsRoom {
	t.Helper()
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	created, err := srv.Rooms().Create("Alice", 15)
	require.NoError(t, err)
	joined, err := srv.Rooms().Join(created.RoomCode, "Bob", false)
	require.NoError(t, err)
	return &wsRoom{srv: srv, ts: ts, gameID: created.GameID, alice: created.HostPlayerID, bob: joined.PlayerID}
}

func (r *wsRoom) connect(t *testing.T, playerID string) *wsClient {
	t.Helper()
	c := dialWS(t, r.ts)
	c.send(protocol.TypeConnect, protocol.Connect{GameID: r.gameID, PlayerID: playerID})
	c.expectState()
	return c
}

func (r *wsRoom) version(t *testing.T) uint64 {
	t.Helper()
	s, ok := r.srv.Rooms().Snapshot(r.gameID)
	require.True(t, ok)
	return s.Version
}

func TestWebSocketRequiresConnectFirst(t *testing.T) {
	t.Parallel()
	r := newWSRoom(t)
	c := dialWS(t, r.ts)

	c.send(protocol.TypeStartGame, nil)
	c.expectError(protocol.CodeNotIdentified)

	c.send(protocol.TypeConnect, protocol.Connect{GameID: r.gameID})
	c.expectError(protocol.CodeBadMessage)

	c.send(protocol.TypeConnect, protocol.Connect{GameID: "missing", PlayerID: r.alice})
	c.expectError("GameNotFound")

	s, _ := r.srv.Rooms().Snapshot(r.gameID)
	assert.Equal(t, game.StatusWaiting, s.Status)
}

func TestWebSocketMalformedFrames(t *testing.T) {
	t.Parallel()
	r := newWSRoom(t)
	c := r.connect(t, r.alice)

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("{nope")))
	c.expectError(protocol.CodeBadMessage)

	c.send("shuffle_everything", nil)
	c.expectError(protocol.CodeUnknownMessage)

	c.send(protocol.TypePing, nil)
	c.expect(protocol.TypePong)
}

func TestWebSocketGameFlow(t *testing.T) {
	t.Parallel()
	r := newWSRoom(t)
	alice := r.connect(t, r.alice)
	bob := r.connect(t, r.bob)

	bob.send(protocol.TypeStartGame, nil)
	bob.expectError("NotHost")

	alice.send(protocol.TypeStartGame, nil)
	started := alice.expectVersion(r.version(t))
	for started.Status != game.StatusPlaying {
		started = alice.expectState()
	}
	require.Equal(t, 0, started.CurrentTurn)
	hand := started.Players[0].Hand
	require.NotEmpty(t, hand)
	assert.False(t, hand[0].IsPlaceholder())

	bobView := bob.expectVersion(started.Version)
	for _, c := range bobView.Players[0].Hand {
		assert.True(t, c.IsPlaceholder())
	}

	alice.send(protocol.TypePlayCards, protocol.PlayCards{Cards: []string{hand[0].ID}})
	played := bob.expectVersion(started.Version + 1)
	require.Len(t, played.CurrentPlay, 1)
	assert.Equal(t, hand[0].ID, played.CurrentPlay[0].ID)
	assert.Equal(t, 1, played.CurrentTurn)

	alice.send(protocol.TypePassTurn, nil)
	alice.expectError("NotYourTurn")
}

func TestWebSocketDuplicateSession(t *testing.T) {
	t.Parallel()
	r := newWSRoom(t)
	first := r.connect(t, r.alice)
	second := r.connect(t, r.alice)

	var msg protocol.SessionReplaced
	require.NoError(t, first.expect(protocol.TypeSessionReplaced).Into(&msg))
	assert.NotEmpty(t, msg.Message)

	require.NoError(t, first.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err := first.conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
			break
		}
	}

	second.send(protocol.TypePing, nil)
	second.expect(protocol.TypePong)
	s, _ := r.srv.Rooms().Snapshot(r.gameID)
	assert.True(t, s.Player(r.alice).Connected)
}

func TestWebSocketCloseMarksDisconnected(t *testing.T) {
	t.Parallel()
	r := newWSRoom(t)
	alice := r.connect(t, r.alice)
	bob := r.connect(t, r.bob)
	connected := r.version(t)

	require.NoError(t, bob.conn.Close())

	view := alice.expectVersion(connected + 1)
	assert.False(t, view.Players[1].Connected)
	assert.Eventually(t, func() bool { return r.srv.Hub().Connections() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketRateLimit(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, func(c *Config) {
		c.RateLimit = 0.001
		c.RateBurst = 2
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	c := dialWS(t, ts)
	c.send(protocol.TypePing, nil)
	c.send(protocol.TypePing, nil)
	c.send(protocol.TypePing, nil)
	c.expect(protocol.TypePong)
	c.expect(protocol.TypePong)
	c.expectError(protocol.CodeRateLimited)
}
