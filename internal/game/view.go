package game

import "github.com/lox/cardroom/internal/deck"

// ProjectForPlayer returns a deep copy of s for viewerID. Every other
// player's hand and the whole deck are replaced by placeholders of the
// same length. An unknown viewer sees no hand at all. Every state that
// leaves the server goes through here.
func ProjectForPlayer(s *State, viewerID string) *State {
	view := s.Clone()
	for _, p := range view.Players {
		if p.ID != viewerID {
			p.Hand = deck.Placeholders(len(p.Hand))
		}
	}
	view.Deck = deck.Placeholders(len(view.Deck))
	return view
}
