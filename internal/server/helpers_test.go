package server

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/protocol"
	"github.com/lox/cardroom/internal/room"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// mockTransport records every frame it is asked to send. LastSeen is a
// plain field so tests can move it along with the mock clock.
type mockTransport struct {
	mock.Mock

	mu       sync.Mutex
	frames   [][]byte
	lastSeen time.Time
}

func newMockTransport(seen time.Time) *mockTransport {
	m := &mockTransport{lastSeen: seen}
	return m
}

// healthy sets up a transport that accepts everything.
func healthy(seen time.Time) *mockTransport {
	m := newMockTransport(seen)
	m.On("Send", mock.Anything).Return(nil)
	m.On("Ping").Return(nil).Maybe()
	m.On("Close", mock.Anything).Return().Maybe()
	return m
}

func (m *mockTransport) Send(data []byte) error {
	m.mu.Lock()
	m.frames = append(m.frames, data)
	m.mu.Unlock()
	return m.Called(data).Error(0)
}

func (m *mockTransport) Ping() error {
	return m.Called().Error(0)
}

func (m *mockTransport) Close(reason string) {
	m.Called(reason)
}

func (m *mockTransport) LastSeen() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSeen
}

func (m *mockTransport) seen(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSeen = at
}

func (m *mockTransport) envelopes(t *testing.T) []protocol.Envelope {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]protocol.Envelope, 0, len(m.frames))
	for _, f := range m.frames {
		env, err := protocol.Decode(f)
		require.NoError(t, err)
		out = append(out, env)
	}
	return out
}

func (m *mockTransport) types(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, env := range m.envelopes(t) {
		out = append(out, env.Type)
	}
	return out
}

// states decodes every turn_update the transport received.
func (m *mockTransport) states(t *testing.T) []*game.State {
	t.Helper()
	var out []*game.State
	for _, env := range m.envelopes(t) {
		if env.Type != protocol.TypeTurnUpdate {
			continue
		}
		var update protocol.TurnUpdate
		require.NoError(t, env.Into(&update))
		out = append(out, update.GameState)
	}
	return out
}

func (m *mockTransport) lastState(t *testing.T) *game.State {
	t.Helper()
	states := m.states(t)
	require.NotEmpty(t, states)
	return states[len(states)-1]
}

type hubFixture struct {
	hub    *Hub
	rooms  *room.Manager
	clock  *quartz.Mock
	gameID string
	alice  string
	bob    string
}

// newHubFixture builds a hub over a real room manager with a waiting
// room hosted by Alice with Bob seated.
func newHubFixture(t *testing.T, cfg Config) *hubFixture {
	t.Helper()
	clock := quartz.NewMock(t)
	rooms := room.NewManager(testLogger(), room.WithClock(clock), room.WithSeed(1))
	hub := NewHub(rooms, cfg, clock, testLogger())
	rooms.SetPublisher(hub)

	created, err := rooms.Create("Alice", 15)
	require.NoError(t, err)
	joined, err := rooms.Join(created.RoomCode, "Bob", false)
	require.NoError(t, err)

	return &hubFixture{
		hub:    hub,
		rooms:  rooms,
		clock:  clock,
		gameID: created.GameID,
		alice:  created.HostPlayerID,
		bob:    joined.PlayerID,
	}
}

func (f *hubFixture) state(t *testing.T) *game.State {
	t.Helper()
	s, ok := f.rooms.Snapshot(f.gameID)
	require.True(t, ok)
	return s
}
