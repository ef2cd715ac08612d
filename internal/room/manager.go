// Package room keeps the registry of live rooms. Each room owns one
// game.State behind its own lock; every operation clones the state,
// applies one intent to the clone and swaps it in only on success, so a
// rejected intent never leaves a trace. Publishing and snapshotting run
// after the room lock is released.
package room

import (
	"errors"
	rand "math/rand/v2"
	"sync"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/randutil"
	"github.com/lox/cardroom/internal/roomcode"
	"github.com/rs/zerolog"
)

// Publisher receives every accepted state, unfiltered. Implementations
// must not mutate it.
type Publisher interface {
	Publish(state *game.State)
}

// Store persists room snapshots. A finished room's snapshot is deleted
// since it will never be restored.
type Store interface {
	Save(state *game.State) error
	Delete(gameID string) error
}

// codeAttempts bounds how many collisions Create tolerates before giving up.
const codeAttempts = 32

// Room is the lockable handle for one room's state.
type Room struct {
	mu    sync.Mutex
	state *game.State
	rng   *rand.Rand

	saveMu    sync.Mutex
	lastSaved uint64
}

// CreateResult is returned by Manager.Create.
type CreateResult struct {
	GameID       string `json:"gameId"`
	RoomCode     string `json:"roomCode"`
	HostPlayerID string `json:"hostPlayerId"`
}

// JoinResult is returned by Manager.Join.
type JoinResult struct {
	GameID   string `json:"gameId"`
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

// Manager tracks live rooms by id and by room code.
type Manager struct {
	logger zerolog.Logger
	clock  quartz.Clock
	rules  game.Rules
	seed   int64
	newID  func() string
	codes  *roomcode.Generator
	store  Store

	mu        sync.RWMutex
	rooms     map[string]*Room
	byCode    map[string]string
	streams   uint64
	publisher Publisher
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock used to stamp disconnects and time host failover.
func WithClock(clock quartz.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithRules sets the rules every new room starts with.
func WithRules(rules game.Rules) Option {
	return func(m *Manager) { m.rules = rules }
}

// WithSeed makes shuffles reproducible. Each room derives its own stream.
func WithSeed(seed int64) Option {
	return func(m *Manager) { m.seed = seed }
}

// WithIDFunc replaces the uuid generator used for game and player ids.
func WithIDFunc(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

// WithCodeGenerator replaces the room code generator.
func WithCodeGenerator(g *roomcode.Generator) Option {
	return func(m *Manager) { m.codes = g }
}

// WithStore enables snapshots after every accepted transition.
func WithStore(store Store) Option {
	return func(m *Manager) { m.store = store }
}

// WithPublisher sets the publisher at construction time.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// NewManager constructs an empty manager.
func NewManager(logger zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		logger: logger.With().Str("component", "rooms").Logger(),
		clock:  quartz.NewReal(),
		rules:  game.DefaultRules(),
		seed:   randutil.Seed(),
		newID:  uuid.NewString,
		codes:  roomcode.NewGenerator(nil),
		rooms:  make(map[string]*Room),
		byCode: make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetPublisher replaces the publisher. The hub and the manager refer to
// each other, so one side has to be wired after construction.
func (m *Manager) SetPublisher(p Publisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publisher = p
}

// Create opens a waiting room with the caller as host.
func (m *Manager) Create(hostName string, pointLimit int) (CreateResult, error) {
	gameID, hostID := m.newID(), m.newID()

	m.mu.Lock()
	code, ok := m.allocateCode()
	if !ok {
		m.mu.Unlock()
		return CreateResult{}, game.ErrRoomCodeExhausted
	}
	state, err := game.NewState(gameID, code, hostID, hostName, pointLimit, m.rules)
	if err != nil {
		m.mu.Unlock()
		return CreateResult{}, err
	}
	r := &Room{state: state, rng: m.nextStream()}
	m.rooms[gameID] = r
	m.byCode[code] = gameID
	m.mu.Unlock()

	m.logger.Info().
		Str("game_id", gameID).
		Str("room_code", code).
		Int("point_limit", pointLimit).
		Msg("Room created")

	m.save(r, state.Clone())
	return CreateResult{GameID: gameID, RoomCode: code, HostPlayerID: hostID}, nil
}

// Join seats a player, or adds a spectator, in the room with code.
func (m *Manager) Join(code, name string, spectator bool) (JoinResult, error) {
	code = roomcode.Normalize(code)
	if err := roomcode.Validate(code); err != nil {
		return JoinResult{}, game.ErrInvalidRoomCode.WithMessage("%s", err.Error())
	}

	m.mu.RLock()
	gameID, ok := m.byCode[code]
	m.mu.RUnlock()
	if !ok {
		return JoinResult{}, game.ErrGameNotFound.WithMessage("no room with code %s", code)
	}

	playerID := m.newID()
	err := m.apply(gameID, "join", func(s *game.State, _ *rand.Rand) (bool, error) {
		if spectator {
			return true, s.JoinSpectator(playerID, name)
		}
		return true, s.Join(playerID, name)
	})
	if err != nil {
		return JoinResult{}, err
	}

	m.logger.Info().
		Str("game_id", gameID).
		Str("player_id", playerID).
		Bool("spectator", spectator).
		Msg("Player joined")
	return JoinResult{GameID: gameID, RoomCode: code, PlayerID: playerID}, nil
}

// View returns the room as playerID may see it.
func (m *Manager) View(gameID, playerID string) (*game.State, error) {
	state, ok := m.Snapshot(gameID)
	if !ok {
		return nil, game.ErrGameNotFound
	}
	if state.Player(playerID) == nil {
		return nil, game.ErrNotInGame
	}
	return game.ProjectForPlayer(state, playerID), nil
}

// Snapshot returns an unfiltered copy of the room's state.
func (m *Manager) Snapshot(gameID string) (*game.State, bool) {
	r, ok := m.room(gameID)
	if !ok {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone(), true
}

// Start deals the first round.
func (m *Manager) Start(gameID, playerID string) error {
	err := m.apply(gameID, "start", func(s *game.State, rng *rand.Rand) (bool, error) {
		return true, s.Start(playerID, rng)
	})
	if err == nil {
		m.logger.Info().Str("game_id", gameID).Msg("Game started")
	}
	return err
}

// Play applies a play by the turn owner.
func (m *Manager) Play(gameID, playerID string, cardIDs []string) error {
	return m.apply(gameID, "play", func(s *game.State, rng *rand.Rand) (bool, error) {
		return true, s.Play(playerID, cardIDs, rng)
	})
}

// Pick collects one card of the previous play.
func (m *Manager) Pick(gameID, playerID, cardID string) error {
	return m.apply(gameID, "pick", func(s *game.State, rng *rand.Rand) (bool, error) {
		return true, s.Pick(playerID, cardID, rng)
	})
}

// Pass gives up the turn.
func (m *Manager) Pass(gameID, playerID string) error {
	return m.apply(gameID, "pass", func(s *game.State, rng *rand.Rand) (bool, error) {
		return true, s.Pass(playerID, rng)
	})
}

// NewRound re-deals once a round is over.
func (m *Manager) NewRound(gameID, playerID string) error {
	err := m.apply(gameID, "new_round", func(s *game.State, rng *rand.Rand) (bool, error) {
		return true, s.StartNewRound(playerID, rng)
	})
	if err == nil {
		m.logger.Info().Str("game_id", gameID).Msg("New round dealt")
	}
	return err
}

// SetConnection records a player's transport state. The result is
// published even when nothing changed so a reconnecting client and the
// rest of the room all receive the current state.
func (m *Manager) SetConnection(gameID, playerID string, connected bool) error {
	now := m.clock.Now()
	return m.apply(gameID, "set_connection", func(s *game.State, rng *rand.Rand) (bool, error) {
		return s.SetConnection(playerID, connected, now, rng)
	})
}

// FailoverHosts hands the host role on in every room whose host has been
// away for longer than the grace period. It returns how many rooms
// changed host.
func (m *Manager) FailoverHosts() int {
	now := m.clock.Now()
	changed := 0
	for _, id := range m.ids() {
		var moved bool
		err := m.transition(id, "failover", false, func(s *game.State, _ *rand.Rand) (bool, error) {
			moved = s.FailoverHost(now)
			return moved, nil
		})
		if err == nil && moved {
			changed++
			m.logger.Info().Str("game_id", id).Msg("Host role reassigned")
		}
	}
	return changed
}

// Restore registers previously saved rooms. Finished rooms are skipped
// and every player starts out disconnected. It returns how many rooms
// were restored.
func (m *Manager) Restore(states []*game.State) int {
	now := m.clock.Now()
	restored := 0

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range states {
		if s == nil || s.Status == game.StatusFinished {
			continue
		}
		if _, dup := m.rooms[s.ID]; dup {
			continue
		}
		if _, dup := m.byCode[s.RoomCode]; dup {
			m.logger.Warn().Str("game_id", s.ID).Str("room_code", s.RoomCode).Msg("Skipping restore: room code in use")
			continue
		}

		state := s.Clone()
		rng := m.nextStream()
		for _, p := range state.Players {
			if _, err := state.SetConnection(p.ID, false, now, rng); err != nil {
				m.logger.Warn().Err(err).Str("game_id", s.ID).Msg("Restore: marking player disconnected")
			}
		}
		m.rooms[state.ID] = &Room{state: state, rng: rng, lastSaved: state.Version}
		m.byCode[state.RoomCode] = state.ID
		restored++
	}
	return restored
}

// Count returns the number of live rooms.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

func (m *Manager) apply(gameID, op string, fn func(*game.State, *rand.Rand) (bool, error)) error {
	return m.transition(gameID, op, true, fn)
}

// transition runs fn against a clone of the room's state under the room
// lock. On success the clone replaces the state and the version is bumped
// when fn reports a change. The new state is published once the lock is
// released, and only if it changed unless publishUnchanged is set.
func (m *Manager) transition(gameID, op string, publishUnchanged bool, fn func(*game.State, *rand.Rand) (bool, error)) error {
	r, ok := m.room(gameID)
	if !ok {
		return game.ErrGameNotFound
	}

	r.mu.Lock()
	next := r.state.Clone()
	changed, err := fn(next, r.rng)
	if err != nil {
		r.mu.Unlock()
		m.logRejected(gameID, op, err)
		return err
	}
	if !changed {
		snapshot := r.state.Clone()
		r.mu.Unlock()
		if publishUnchanged {
			m.publish(snapshot)
		}
		return nil
	}
	next.Version++
	finished := next.Status == game.StatusFinished && r.state.Status != game.StatusFinished
	roundOver := next.Phase == game.PhaseRoundOver && r.state.Phase != game.PhaseRoundOver
	r.state = next
	snapshot := next.Clone()
	r.mu.Unlock()

	if roundOver && snapshot.RoundWinner != nil {
		m.logger.Info().Str("game_id", gameID).Str("winner", *snapshot.RoundWinner).Int("round", snapshot.Round).Msg("Round ended")
	}
	if finished && snapshot.GameWinner != nil {
		m.logger.Info().Str("game_id", gameID).Str("winner", *snapshot.GameWinner).Msg("Game finished")
	}

	m.publish(snapshot)
	m.save(r, snapshot)
	return nil
}

func (m *Manager) logRejected(gameID, op string, err error) {
	event := m.logger.Debug().Str("game_id", gameID).Str("op", op)
	var gameErr *game.Error
	if errors.As(err, &gameErr) {
		event = event.Str("code", string(gameErr.Code))
	}
	event.Err(err).Msg("Intent rejected")
}

func (m *Manager) publish(state *game.State) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	if p != nil {
		p.Publish(state)
	}
}

// save writes a snapshot unless a newer one was already written. Once
// the room is finished its snapshot is removed instead.
func (m *Manager) save(r *Room, state *game.State) {
	if m.store == nil {
		return
	}
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	if state.Version < r.lastSaved {
		return
	}
	if state.Status == game.StatusFinished {
		if err := m.store.Delete(state.ID); err != nil {
			m.logger.Warn().Err(err).Str("game_id", state.ID).Msg("Failed to delete room snapshot")
			return
		}
		r.lastSaved = state.Version
		return
	}
	if err := m.store.Save(state); err != nil {
		m.logger.Warn().Err(err).Str("game_id", state.ID).Msg("Failed to save room snapshot")
		return
	}
	r.lastSaved = state.Version
}

func (m *Manager) room(gameID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[gameID]
	return r, ok
}

func (m *Manager) ids() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	return ids
}

// allocateCode must be called with m.mu held.
func (m *Manager) allocateCode() (string, bool) {
	for range codeAttempts {
		code := m.codes.Generate()
		if _, taken := m.byCode[code]; !taken {
			return code, true
		}
	}
	return "", false
}

// nextStream must be called with m.mu held.
func (m *Manager) nextStream() *rand.Rand {
	m.streams++
	return randutil.Derive(m.seed, m.streams)
}
