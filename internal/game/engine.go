package game

import (
	rand "math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lox/cardroom/internal/deck"
)

// Every method in this file validates completely before it mutates, so a
// returned error always leaves the state untouched.

// NewState creates a waiting room with a single connected host.
func NewState(id, roomCode, hostID, hostName string, pointLimit int, rules Rules) (*State, error) {
	name, err := normalizeName(hostName)
	if err != nil {
		return nil, err
	}
	if pointLimit < MinPointLimit || pointLimit > MaxPointLimit {
		return nil, ErrInvalidPointLimit
	}

	return &State{
		ID:           id,
		RoomCode:     roomCode,
		Status:       StatusWaiting,
		Players:      []*Player{{ID: hostID, Name: name, IsHost: true, Hand: []deck.Card{}, Connected: true}},
		Deck:         []deck.Card{},
		CurrentPlay:  []deck.Card{},
		PreviousPlay: []deck.Card{},
		PointLimit:   pointLimit,
		Rules:        rules,
	}, nil
}

// Join seats a new non-host player while the room is waiting.
func (s *State) Join(playerID, name string) error {
	switch s.Status {
	case StatusPlaying:
		return ErrGameAlreadyStarted
	case StatusFinished:
		return ErrGameFinished
	}
	name, err := normalizeName(name)
	if err != nil {
		return err
	}
	if s.Seated() >= s.Rules.MaxPlayers {
		return ErrRoomFull
	}
	if s.nameTaken(name) {
		return ErrNameTaken
	}

	s.Players = append(s.Players, &Player{ID: playerID, Name: name, Hand: []deck.Card{}, Connected: true})
	s.LastAction = &LastAction{Type: ActionJoin, PlayerID: strPtr(playerID)}
	return nil
}

// JoinSpectator adds a hand-less seat that is never dealt in and never
// holds the turn. Only legal while playing.
func (s *State) JoinSpectator(playerID, name string) error {
	switch s.Status {
	case StatusWaiting:
		return ErrGameNotInProgress.WithMessage("spectators can only join a game in progress")
	case StatusFinished:
		return ErrGameFinished
	}
	name, err := normalizeName(name)
	if err != nil {
		return err
	}
	if len(s.Players)-s.Seated() >= s.Rules.MaxSpectators {
		return ErrRoomFull.WithMessage("no spectator seats left")
	}
	if s.nameTaken(name) {
		return ErrNameTaken
	}

	s.Players = append(s.Players, &Player{ID: playerID, Name: name, Hand: []deck.Card{}, Connected: true, IsSpectator: true})
	s.LastAction = &LastAction{Type: ActionJoin, PlayerID: strPtr(playerID)}
	return nil
}

// Start deals the first round. Host only.
func (s *State) Start(requesterID string, rng *rand.Rand) error {
	p := s.Player(requesterID)
	if p == nil {
		return ErrPlayerNotFound
	}
	switch s.Status {
	case StatusPlaying:
		return ErrGameAlreadyStarted
	case StatusFinished:
		return ErrGameFinished
	}
	if !p.IsHost {
		return ErrNotHost
	}
	if s.Seated() < 2 {
		return ErrNotEnoughPlayers
	}

	s.Status = StatusPlaying
	s.deal(rng)
	s.LastAction = &LastAction{Type: ActionStart, PlayerID: strPtr(requesterID)}
	s.repairTurn(rng)
	return nil
}

// StartNewRound re-deals from a fresh deck. Host only, while playing.
func (s *State) StartNewRound(requesterID string, rng *rand.Rand) error {
	p := s.Player(requesterID)
	if p == nil {
		return ErrPlayerNotFound
	}
	if err := s.requirePlaying(); err != nil {
		return err
	}
	if !p.IsHost {
		return ErrNotHost
	}
	if s.Seated() < 2 {
		return ErrNotEnoughPlayers
	}

	s.deal(rng)
	s.LastAction = &LastAction{Type: ActionStartRound, PlayerID: strPtr(requesterID)}
	s.repairTurn(rng)
	return nil
}

// Play applies a validated play by the turn owner.
func (s *State) Play(playerID string, cardIDs []string, rng *rand.Rand) error {
	idx, err := s.requireTurn(playerID)
	if err != nil {
		return err
	}
	if s.Phase == PhaseAwaitingPick {
		return ErrMustPick
	}

	p := s.Players[idx]
	played, err := ValidatePlay(p.Hand, cardIDs, s.CurrentPlay)
	if err != nil {
		return err
	}

	p.Hand = removeCards(p.Hand, played)
	if len(s.PreviousPlay) > 0 {
		// Nothing should be left uncollected here; keep the cards in play.
		s.Deck = append(s.Deck, s.PreviousPlay...)
		deck.Shuffle(s.Deck, rng)
	}
	s.PreviousPlay = s.CurrentPlay
	s.CurrentPlay = deck.Clone(played)
	deck.SortDescending(s.CurrentPlay)
	s.TableOwnerID = playerID
	s.PassCount = 0

	if IsRoundOver(p.Hand) {
		s.endRound(playerID)
		return nil
	}

	s.LastAction = &LastAction{Type: ActionPlay, PlayerID: strPtr(playerID), Cards: deck.Clone(s.CurrentPlay)}
	switch {
	case len(s.PreviousPlay) == 0:
		s.advanceFrom(idx)
	case len(s.PreviousPlay) == 1 && s.Rules.AutoPickSingle:
		p.Hand = append(p.Hand, s.PreviousPlay[0])
		s.PreviousPlay = []deck.Card{}
		s.advanceFrom(idx)
	default:
		s.Phase = PhaseAwaitingPick
		s.PickerID = playerID
	}
	s.repairTurn(rng)
	return nil
}

// Pick collects one card from the previous play; the rest go back into
// the deck. Only the player who just played may pick.
func (s *State) Pick(playerID, cardID string, rng *rand.Rand) error {
	idx := s.playerIndex(playerID)
	if idx < 0 {
		return ErrPlayerNotFound
	}
	if err := s.requirePlaying(); err != nil {
		return err
	}
	if s.Phase != PhaseAwaitingPick || s.PickerID != playerID {
		return ErrPickNotAllowed
	}
	pos := -1
	for i, c := range s.PreviousPlay {
		if c.ID == cardID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return ErrCardNotFound.WithMessage("card %s is not in the previous play", cardID)
	}

	picked := s.collect(idx, pos, rng)
	s.LastAction = &LastAction{Type: ActionPick, PlayerID: strPtr(playerID), Cards: []deck.Card{picked}}
	s.advanceFrom(idx)
	s.repairTurn(rng)
	return nil
}

// Pass gives up the turn. When the floor would come back to whoever made
// the table play, or every other active player has passed in a row, the
// table is cleared and that player opens again.
func (s *State) Pass(playerID string, rng *rand.Rand) error {
	idx, err := s.requireTurn(playerID)
	if err != nil {
		return err
	}
	if s.Phase == PhaseAwaitingPick {
		return ErrMustPick
	}
	if len(s.CurrentPlay) == 0 {
		return ErrCannotPassFirst
	}

	s.PassCount++
	next, ok := s.nextActive(idx)
	owner := s.playerIndex(s.TableOwnerID)
	if !ok || next == owner || s.PassCount >= s.activeCount(s.TableOwnerID) {
		s.clearTable(rng)
		switch {
		case owner >= 0 && s.Players[owner].Active():
			s.CurrentTurn = owner
		case ok:
			s.CurrentTurn = next
		}
		s.LastAction = &LastAction{Type: ActionRoundEnd}
		return nil
	}

	s.CurrentTurn = next
	s.LastAction = &LastAction{Type: ActionPass, PlayerID: strPtr(playerID)}
	return nil
}

// SetConnection records a player's transport state. It is idempotent and
// reports whether anything changed. A host that drops keeps the role for
// Rules.HostGrace; see FailoverHost.
func (s *State) SetConnection(playerID string, connected bool, now time.Time, rng *rand.Rand) (bool, error) {
	p := s.Player(playerID)
	if p == nil {
		return false, ErrPlayerNotFound
	}
	if p.Connected == connected {
		return false, nil
	}

	p.Connected = connected
	if connected {
		p.DisconnectedAt = nil
	} else {
		t := now
		p.DisconnectedAt = &t
		if p.IsHost && s.Rules.HostGrace <= 0 {
			s.FailoverHost(now)
		}
	}
	if s.Status == StatusPlaying {
		s.repairTurn(rng)
	}
	return true, nil
}

// FailoverHost hands the host role to the first connected seated player
// (falling back to a connected spectator) once the host has been away
// for at least Rules.HostGrace. It reports whether the host changed.
func (s *State) FailoverHost(now time.Time) bool {
	host := s.Host()
	if host != nil && host.Connected {
		return false
	}
	if host != nil && host.DisconnectedAt != nil && now.Sub(*host.DisconnectedAt) < s.Rules.HostGrace {
		return false
	}

	var next *Player
	for _, p := range s.Players {
		if p.Active() {
			next = p
			break
		}
	}
	if next == nil {
		for _, p := range s.Players {
			if p.Connected {
				next = p
				break
			}
		}
	}
	if next == nil {
		return false
	}

	if host != nil {
		host.IsHost = false
	}
	next.IsHost = true
	return true
}

// deal builds a fresh shuffled deck and hands every seated player the
// same number of cards, at most Rules.MaxHand.
func (s *State) deal(rng *rand.Rand) {
	cards := deck.NewShuffled(rng)
	per := s.Rules.MaxHand
	if seated := s.Seated(); seated > 0 && deck.Size/seated < per {
		per = deck.Size / seated
	}

	for _, p := range s.Players {
		if p.IsSpectator {
			p.Hand = []deck.Card{}
			continue
		}
		p.Hand = deck.Clone(cards[:per])
		cards = cards[per:]
	}

	s.Deck = deck.Clone(cards)
	s.CurrentPlay = []deck.Card{}
	s.PreviousPlay = []deck.Card{}
	s.TableOwnerID = ""
	s.PickerID = ""
	s.PassCount = 0
	s.RoundWinner = nil
	s.Phase = PhaseAwaitingPlay
	s.Round++
	s.CurrentTurn = s.lowestScoring()
}

// lowestScoring picks the active player with the lowest score, earliest
// seat first. With nobody active it falls back to any seated player.
func (s *State) lowestScoring() int {
	best := -1
	for _, activeOnly := range []bool{true, false} {
		for i, p := range s.Players {
			if p.IsSpectator || (activeOnly && !p.Connected) {
				continue
			}
			if best < 0 || p.Score < s.Players[best].Score {
				best = i
			}
		}
		if best >= 0 {
			return best
		}
	}
	return 0
}

func (s *State) endRound(winnerID string) {
	ScoreRound(s.Players)
	s.RoundWinner = strPtr(winnerID)
	s.Phase = PhaseRoundOver
	s.PickerID = ""
	s.LastAction = &LastAction{Type: ActionRoundEnd, PlayerID: strPtr(winnerID), Cards: deck.Clone(s.CurrentPlay)}

	if id, ok := GameWinner(s.Players, s.PointLimit); ok {
		s.GameWinner = strPtr(id)
		s.Status = StatusFinished
	}
}

// collect moves PreviousPlay[pos] into the player's hand and reshuffles
// the rest of the previous play into the deck.
func (s *State) collect(idx, pos int, rng *rand.Rand) deck.Card {
	picked := s.PreviousPlay[pos]
	p := s.Players[idx]
	p.Hand = append(p.Hand, picked)

	for i, c := range s.PreviousPlay {
		if i != pos {
			s.Deck = append(s.Deck, c)
		}
	}
	deck.Shuffle(s.Deck, rng)
	s.PreviousPlay = []deck.Card{}
	s.Phase = PhaseAwaitingPlay
	s.PickerID = ""
	return picked
}

func (s *State) clearTable(rng *rand.Rand) {
	s.Deck = append(s.Deck, s.CurrentPlay...)
	s.Deck = append(s.Deck, s.PreviousPlay...)
	deck.Shuffle(s.Deck, rng)
	s.CurrentPlay = []deck.Card{}
	s.PreviousPlay = []deck.Card{}
	s.TableOwnerID = ""
	s.PassCount = 0
}

func (s *State) advanceFrom(idx int) {
	if next, ok := s.nextActive(idx); ok {
		s.CurrentTurn = next
	}
}

// repairTurn keeps the turn on an active player. A picker who is no
// longer active has the highest card collected for them.
func (s *State) repairTurn(rng *rand.Rand) {
	if s.Status != StatusPlaying {
		return
	}
	if s.Phase == PhaseAwaitingPick {
		idx := s.playerIndex(s.PickerID)
		if idx >= 0 && s.Players[idx].Active() {
			return
		}
		if idx >= 0 && len(s.PreviousPlay) > 0 {
			s.collect(idx, 0, rng)
			s.advanceFrom(idx)
			return
		}
		s.Phase = PhaseAwaitingPlay
		s.PickerID = ""
	}
	if s.CurrentTurn >= 0 && s.CurrentTurn < len(s.Players) && s.Players[s.CurrentTurn].Active() {
		return
	}
	s.advanceFrom(s.CurrentTurn)
}

func (s *State) requirePlaying() error {
	switch s.Status {
	case StatusWaiting:
		return ErrGameNotInProgress
	case StatusFinished:
		return ErrGameFinished
	}
	return nil
}

func (s *State) requireTurn(playerID string) (int, error) {
	idx := s.playerIndex(playerID)
	if idx < 0 {
		return -1, ErrPlayerNotFound
	}
	if err := s.requirePlaying(); err != nil {
		return -1, err
	}
	if s.Phase == PhaseRoundOver {
		return -1, ErrRoundOver
	}
	if s.CurrentTurn != idx || s.Players[idx].IsSpectator {
		return -1, ErrNotYourTurn
	}
	return idx, nil
}

func (s *State) nameTaken(name string) bool {
	for _, p := range s.Players {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}

func removeCards(hand, cards []deck.Card) []deck.Card {
	drop := make(map[string]bool, len(cards))
	for _, c := range cards {
		drop[c.ID] = true
	}
	out := make([]deck.Card, 0, len(hand))
	for _, c := range hand {
		if !drop[c.ID] {
			out = append(out, c)
		}
	}
	return out
}
