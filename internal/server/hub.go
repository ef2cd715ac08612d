package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/protocol"
	"github.com/rs/zerolog"
)

// Transport is the hub's non-owning view of one client connection.
// Send must not block.
type Transport interface {
	Send(data []byte) error
	Ping() error
	Close(reason string)
	LastSeen() time.Time
}

// Rooms is the part of room.Manager the hub drives.
type Rooms interface {
	Snapshot(gameID string) (*game.State, bool)
	SetConnection(gameID, playerID string, connected bool) error
	FailoverHosts() int
}

type binding struct {
	gameID   string
	playerID string
}

// roomFeed serializes sends for one room so its frames leave in version
// order without holding up other rooms.
type roomFeed struct {
	mu          sync.Mutex
	lastVersion uint64
}

// Hub keeps at most one live transport per (room, player), fans accepted
// states out to them and runs the heartbeat and inactivity timers.
//
// Lock order is roomFeed.mu then Hub.mu. Neither is held while calling
// into the rooms except for Snapshot.
type Hub struct {
	logger zerolog.Logger
	clock  quartz.Clock
	rooms  Rooms
	cfg    Config

	mu     sync.Mutex
	byRoom map[string]map[string]Transport
	byConn map[Transport]binding
	feeds  map[string]*roomFeed
}

// NewHub creates a hub. Register it as the rooms' publisher.
func NewHub(rooms Rooms, cfg Config, clock quartz.Clock, logger zerolog.Logger) *Hub {
	return &Hub{
		logger: logger.With().Str("component", "hub").Logger(),
		clock:  clock,
		rooms:  rooms,
		cfg:    cfg,
		byRoom: make(map[string]map[string]Transport),
		byConn: make(map[Transport]binding),
		feeds:  make(map[string]*roomFeed),
	}
}

// Identify binds t to (gameID, playerID). A previous transport for the
// same player is told it was replaced and closed; if t was bound to
// another seat it is detached from it first. t then receives the current
// state on its own before the whole room is told the player is connected.
func (h *Hub) Identify(t Transport, gameID, playerID string) error {
	state, ok := h.rooms.Snapshot(gameID)
	if !ok {
		return game.ErrGameNotFound
	}
	if state.Player(playerID) == nil {
		return game.ErrNotInGame
	}

	feed := h.feed(gameID)
	feed.mu.Lock()

	h.mu.Lock()
	var detached *binding
	if old, ok := h.byConn[t]; ok && old != (binding{gameID, playerID}) {
		delete(h.byConn, t)
		if h.byRoom[old.gameID][old.playerID] == t {
			h.removeLocked(old)
			detached = &old
		}
	}

	evicted := h.byRoom[gameID][playerID]
	if evicted == t {
		evicted = nil
	}
	if evicted != nil {
		delete(h.byConn, evicted)
	}

	if h.byRoom[gameID] == nil {
		h.byRoom[gameID] = make(map[string]Transport)
	}
	h.byRoom[gameID][playerID] = t
	h.byConn[t] = binding{gameID, playerID}
	h.mu.Unlock()

	// The snapshot is taken under the feed lock so no older publish can
	// reach t after it.
	state, ok = h.rooms.Snapshot(gameID)
	var sendErr error
	if ok {
		if state.Version > feed.lastVersion {
			feed.lastVersion = state.Version
		}
		sendErr = h.sendState(t, state, playerID)
	}
	feed.mu.Unlock()

	if evicted != nil {
		h.logger.Info().Str("game_id", gameID).Str("player_id", playerID).Msg("Replacing duplicate session")
		if data, err := protocol.Marshal(protocol.TypeSessionReplaced, protocol.SessionReplaced{Message: "signed in from another connection"}); err == nil {
			_ = evicted.Send(data)
		}
		evicted.Close("session replaced")
	}
	if detached != nil {
		h.markDisconnected(*detached)
	}
	if sendErr != nil {
		h.logger.Warn().Err(sendErr).Str("game_id", gameID).Str("player_id", playerID).Msg("Initial state send failed")
		h.terminate(t, "send failed")
		return nil
	}

	h.logger.Info().Str("game_id", gameID).Str("player_id", playerID).Msg("Player identified")
	if err := h.rooms.SetConnection(gameID, playerID, true); err != nil {
		return err
	}
	return nil
}

// Binding returns the seat t is identified as.
func (h *Hub) Binding(t Transport) (gameID, playerID string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.byConn[t]
	return b.gameID, b.playerID, ok
}

// Unregister forgets t. The player is marked disconnected only if t was
// still their current transport.
func (h *Hub) Unregister(t Transport) {
	h.mu.Lock()
	b, ok := h.byConn[t]
	current := ok && h.byRoom[b.gameID][b.playerID] == t
	delete(h.byConn, t)
	if current {
		h.removeLocked(b)
	}
	h.mu.Unlock()

	if current {
		h.markDisconnected(b)
	}
}

// Publish delivers state to every transport in its room, each filtered
// for its player. States older than the last one delivered for the room
// are dropped. Transports that fail are closed and their players marked
// disconnected, which publishes again without them. Publishes for
// different rooms run in parallel.
func (h *Hub) Publish(state *game.State) {
	feed := h.feed(state.ID)
	feed.mu.Lock()
	if state.Version < feed.lastVersion {
		feed.mu.Unlock()
		return
	}
	feed.lastVersion = state.Version

	h.mu.Lock()
	targets := make(map[string]Transport, len(h.byRoom[state.ID]))
	for playerID, t := range h.byRoom[state.ID] {
		targets[playerID] = t
	}
	h.mu.Unlock()

	type failure struct {
		binding
		t       Transport
		current bool
	}
	var failed []failure
	for playerID, t := range targets {
		if err := h.sendState(t, state, playerID); err != nil {
			h.logger.Warn().Err(err).Str("game_id", state.ID).Str("player_id", playerID).Msg("Broadcast send failed")
			failed = append(failed, failure{binding: binding{state.ID, playerID}, t: t})
		}
	}

	h.mu.Lock()
	for i, f := range failed {
		if h.byRoom[f.gameID][f.playerID] != f.t {
			continue
		}
		delete(h.byConn, f.t)
		h.removeLocked(f.binding)
		failed[i].current = true
	}
	if state.Status == game.StatusFinished && len(h.byRoom[state.ID]) == 0 && h.feeds[state.ID] == feed {
		delete(h.feeds, state.ID)
	}
	h.mu.Unlock()
	feed.mu.Unlock()

	for _, f := range failed {
		f.t.Close("send failed")
		if f.current {
			h.markDisconnected(f.binding)
		}
	}
}

// Heartbeat pings every transport. Transports that have been quiet for
// KeepaliveAfter also get an application-level ping. A transport that
// cannot be pinged is terminated.
func (h *Hub) Heartbeat() {
	now := h.clock.Now()
	for _, t := range h.transports() {
		err := t.Ping()
		if err == nil && now.Sub(t.LastSeen()) >= h.cfg.KeepaliveAfter {
			var data []byte
			if data, err = protocol.Marshal(protocol.TypePing, nil); err == nil {
				err = t.Send(data)
			}
		}
		if err != nil {
			h.logger.Info().Err(err).Msg("Heartbeat failed, terminating connection")
			h.terminate(t, "heartbeat failed")
		}
	}
}

// Sweep closes transports that have been silent for longer than
// InactivityTimeout and marks their players disconnected, then lets the
// rooms hand on the host role where the grace period has run out.
func (h *Hub) Sweep() {
	now := h.clock.Now()
	for _, t := range h.transports() {
		if now.Sub(t.LastSeen()) > h.cfg.InactivityTimeout {
			if gameID, playerID, ok := h.Binding(t); ok {
				h.logger.Info().Str("game_id", gameID).Str("player_id", playerID).Msg("Connection timed out")
			}
			h.terminate(t, "inactive")
		}
	}
	h.rooms.FailoverHosts()
}

// Start registers the heartbeat and sweep tickers on the hub's clock.
// They stop when ctx is done.
func (h *Hub) Start(ctx context.Context) (heartbeat, sweep quartz.Waiter) {
	heartbeat = h.clock.TickerFunc(ctx, h.cfg.HeartbeatInterval, func() error {
		h.Heartbeat()
		return nil
	}, "hub", "heartbeat")
	sweep = h.clock.TickerFunc(ctx, h.cfg.SweepInterval, func() error {
		h.Sweep()
		return nil
	}, "hub", "sweep")
	return heartbeat, sweep
}

// Run starts the timers and blocks until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	heartbeat, sweep := h.Start(ctx)
	for _, w := range []quartz.Waiter{heartbeat, sweep} {
		if err := w.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

// CloseAll closes every transport without touching room state.
func (h *Hub) CloseAll(reason string) {
	for _, t := range h.transports() {
		t.Close(reason)
	}
}

// Connections returns how many transports are identified.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byConn)
}

func (h *Hub) terminate(t Transport, reason string) {
	t.Close(reason)
	h.Unregister(t)
}

func (h *Hub) markDisconnected(b binding) {
	if err := h.rooms.SetConnection(b.gameID, b.playerID, false); err != nil {
		h.logger.Debug().Err(err).Str("game_id", b.gameID).Str("player_id", b.playerID).Msg("Could not mark player disconnected")
	}
}

func (h *Hub) transports() []Transport {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Transport, 0, len(h.byConn))
	for t := range h.byConn {
		out = append(out, t)
	}
	return out
}

// feed returns the send lock for gameID, creating it on first use.
func (h *Hub) feed(gameID string) *roomFeed {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.feeds[gameID]
	if !ok {
		f = &roomFeed{}
		h.feeds[gameID] = f
	}
	return f
}

// removeLocked drops the room entry for b. Caller holds h.mu.
func (h *Hub) removeLocked(b binding) {
	players := h.byRoom[b.gameID]
	delete(players, b.playerID)
	if len(players) == 0 {
		delete(h.byRoom, b.gameID)
	}
}

// sendState queues the filtered state for playerID on t. Caller holds
// the room's feed lock, which keeps its frames in version order.
func (h *Hub) sendState(t Transport, state *game.State, playerID string) error {
	data, err := protocol.Marshal(protocol.TypeTurnUpdate, protocol.TurnUpdate{
		GameState: game.ProjectForPlayer(state, playerID),
	})
	if err != nil {
		return err
	}
	return t.Send(data)
}
