package game

import (
	"fmt"
	rand "math/rand/v2"
	"testing"
	"time"

	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/randutil"
)

var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func testRNG() *rand.Rand {
	return randutil.New(42)
}

// newWaitingState creates a room with players p0 (host), p1, ... pN-1.
func newWaitingState(t *testing.T, players int, pointLimit int) *State {
	t.Helper()
	s, err := NewState("game-1", "ABC123", "p0", "Player 0", pointLimit, DefaultRules())
	if err != nil {
		t.Fatalf("NewState failed: %v", err)
	}
	for i := 1; i < players; i++ {
		if err := s.Join(fmt.Sprintf("p%d", i), fmt.Sprintf("Player %d", i)); err != nil {
			t.Fatalf("join p%d failed: %v", i, err)
		}
	}
	return s
}

// newTable starts a game and replaces the dealt hands with the given card
// ids. Every card not in a hand goes to the deck so the full deck is still
// accounted for. The turn starts with p0.
func newTable(t *testing.T, pointLimit int, hands ...[]string) *State {
	t.Helper()
	s := newWaitingState(t, len(hands), pointLimit)
	if err := s.Start("p0", testRNG()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	used := make(map[string]bool)
	for i, ids := range hands {
		hand := make([]deck.Card, 0, len(ids))
		for _, id := range ids {
			c, err := deck.ParseCard(id)
			if err != nil {
				t.Fatalf("bad card %q: %v", id, err)
			}
			if used[id] {
				t.Fatalf("card %s used twice", id)
			}
			used[id] = true
			hand = append(hand, c)
		}
		s.Players[i].Hand = hand
	}
	s.Deck = s.Deck[:0]
	for _, c := range deck.New() {
		if !used[c.ID] {
			s.Deck = append(s.Deck, c)
		}
	}
	s.CurrentTurn = 0
	return s
}

func cardIDs(cards []deck.Card) []string {
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	return ids
}

// checkConservation verifies that, once dealt, every card of the deck sits
// in exactly one zone.
func checkConservation(t *testing.T, s *State) {
	t.Helper()
	if s.Round == 0 {
		if n := s.CardCount(); n != 0 {
			t.Fatalf("undealt room holds %d cards", n)
		}
		return
	}

	seen := make(map[string]string, deck.Size)
	mark := func(zone string, cards []deck.Card) {
		for _, c := range cards {
			if prev, dup := seen[c.ID]; dup {
				t.Fatalf("card %s is in both %s and %s", c.ID, prev, zone)
			}
			seen[c.ID] = zone
		}
	}
	for _, p := range s.Players {
		mark("hand:"+p.ID, p.Hand)
	}
	mark("deck", s.Deck)
	mark("currentPlay", s.CurrentPlay)
	mark("previousPlay", s.PreviousPlay)

	for _, c := range deck.New() {
		if _, ok := seen[c.ID]; !ok {
			t.Fatalf("card %s is missing", c.ID)
		}
	}
	if len(seen) != deck.Size {
		t.Fatalf("expected %d cards, found %d", deck.Size, len(seen))
	}
}

// checkTurn verifies the turn owner is active whenever anyone is.
func checkTurn(t *testing.T, s *State) {
	t.Helper()
	if s.Status != StatusPlaying || s.activeCount("") == 0 {
		return
	}
	owner := s.Players[s.CurrentTurn]
	if !owner.Active() {
		t.Fatalf("turn owner %s is not active (connected=%v spectator=%v)", owner.ID, owner.Connected, owner.IsSpectator)
	}
}

func checkSingleHost(t *testing.T, s *State) {
	t.Helper()
	hosts := 0
	for _, p := range s.Players {
		if p.IsHost {
			hosts++
		}
	}
	if hosts != 1 {
		t.Fatalf("expected exactly one host, found %d", hosts)
	}
}
