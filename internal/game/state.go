package game

import (
	"time"

	"github.com/lox/cardroom/internal/deck"
)

// Status is the room's lifecycle stage. It only moves forward.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Phase is the turn sub-state while the game is playing.
type Phase string

const (
	PhaseAwaitingPlay Phase = "awaiting_play"
	PhaseAwaitingPick Phase = "awaiting_pick"
	PhaseRoundOver    Phase = "round_over"
)

// ActionType names the most recently applied transition.
type ActionType string

const (
	ActionJoin       ActionType = "join"
	ActionStart      ActionType = "start"
	ActionPlay       ActionType = "play"
	ActionPick       ActionType = "pick"
	ActionPass       ActionType = "pass"
	ActionRoundEnd   ActionType = "round_end"
	ActionStartRound ActionType = "start_round"
)

// LastAction records the most recent transition for clients.
type LastAction struct {
	Type     ActionType  `json:"type"`
	PlayerID *string     `json:"playerId"`
	Cards    []deck.Card `json:"cards,omitempty"`
}

// Player is one seat in a room.
type Player struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	IsHost         bool        `json:"isHost"`
	Hand           []deck.Card `json:"hand"`
	Score          int         `json:"score"`
	Connected      bool        `json:"connected"`
	IsSpectator    bool        `json:"isSpectator"`
	DisconnectedAt *time.Time  `json:"disconnectedAt,omitempty"`
}

// Active reports whether the player can hold the turn.
func (p *Player) Active() bool {
	return p.Connected && !p.IsSpectator
}

// Rules holds the per-room tunables.
type Rules struct {
	// AutoPickSingle collects a one-card previous play without an explicit pick.
	AutoPickSingle bool `json:"autoPickSingle"`
	// HostGrace is how long a disconnected host keeps the role.
	HostGrace     time.Duration `json:"hostGrace"`
	MaxHand       int           `json:"maxHand"`
	MaxPlayers    int           `json:"maxPlayers"`
	MaxSpectators int           `json:"maxSpectators"`
}

// DefaultRules returns the standard rule set.
func DefaultRules() Rules {
	return Rules{
		AutoPickSingle: true,
		HostGrace:      5 * time.Minute,
		MaxHand:        9,
		MaxPlayers:     deck.Size / 2,
		MaxSpectators:  16,
	}
}

const (
	MinPointLimit = 5
	MaxPointLimit = 50
	MaxNameLength = 32
)

// State is the authoritative aggregate for one room. It is owned by a
// single room handle; everything else works on copies.
type State struct {
	ID           string      `json:"id"`
	RoomCode     string      `json:"roomCode"`
	Status       Status      `json:"status"`
	Phase        Phase       `json:"phase,omitempty"`
	Players      []*Player   `json:"players"`
	Deck         []deck.Card `json:"deck"`
	CurrentTurn  int         `json:"currentTurn"`
	CurrentPlay  []deck.Card `json:"currentPlay"`
	PreviousPlay []deck.Card `json:"previousPlay"`
	TableOwnerID string      `json:"tableOwnerId,omitempty"`
	PickerID     string      `json:"pickerId,omitempty"`
	RoundWinner  *string     `json:"roundWinner"`
	GameWinner   *string     `json:"gameWinner"`
	PointLimit   int         `json:"pointLimit"`
	PassCount    int         `json:"passCount"`
	Round        int         `json:"round"`
	LastAction   *LastAction `json:"lastAction"`
	Rules        Rules       `json:"rules"`
	Version      uint64      `json:"version"`
}

// Clone returns a deep copy that shares no mutable memory with s.
func (s *State) Clone() *State {
	out := *s
	out.Players = make([]*Player, len(s.Players))
	for i, p := range s.Players {
		cp := *p
		cp.Hand = deck.Clone(p.Hand)
		if p.DisconnectedAt != nil {
			t := *p.DisconnectedAt
			cp.DisconnectedAt = &t
		}
		out.Players[i] = &cp
	}
	out.Deck = deck.Clone(s.Deck)
	out.CurrentPlay = deck.Clone(s.CurrentPlay)
	out.PreviousPlay = deck.Clone(s.PreviousPlay)
	out.RoundWinner = cloneString(s.RoundWinner)
	out.GameWinner = cloneString(s.GameWinner)
	if s.LastAction != nil {
		la := *s.LastAction
		la.PlayerID = cloneString(s.LastAction.PlayerID)
		if s.LastAction.Cards != nil {
			la.Cards = deck.Clone(s.LastAction.Cards)
		}
		out.LastAction = &la
	}
	return &out
}

// Player returns the player with id, or nil.
func (s *State) Player(id string) *Player {
	if i := s.playerIndex(id); i >= 0 {
		return s.Players[i]
	}
	return nil
}

// Host returns the current host, or nil during a failover gap.
func (s *State) Host() *Player {
	for _, p := range s.Players {
		if p.IsHost {
			return p
		}
	}
	return nil
}

// TurnOwner returns the player whose turn it is while playing.
func (s *State) TurnOwner() *Player {
	if s.Status != StatusPlaying || s.CurrentTurn < 0 || s.CurrentTurn >= len(s.Players) {
		return nil
	}
	return s.Players[s.CurrentTurn]
}

// Seated returns the number of non-spectator players.
func (s *State) Seated() int {
	n := 0
	for _, p := range s.Players {
		if !p.IsSpectator {
			n++
		}
	}
	return n
}

// CardCount returns every card the room currently accounts for.
func (s *State) CardCount() int {
	n := len(s.Deck) + len(s.CurrentPlay) + len(s.PreviousPlay)
	for _, p := range s.Players {
		n += len(p.Hand)
	}
	return n
}

func (s *State) playerIndex(id string) int {
	for i, p := range s.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// nextActive scans forward from just after from, wrapping around, and
// returns the first connected non-spectator. from itself is the last
// candidate.
func (s *State) nextActive(from int) (int, bool) {
	n := len(s.Players)
	for step := 1; step <= n; step++ {
		i := (from + step) % n
		if s.Players[i].Active() {
			return i, true
		}
	}
	return from, false
}

func (s *State) activeCount(excluding string) int {
	n := 0
	for _, p := range s.Players {
		if p.Active() && p.ID != excluding {
			n++
		}
	}
	return n
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func strPtr(s string) *string {
	return &s
}
