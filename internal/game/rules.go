package game

import (
	"sort"

	"github.com/lox/cardroom/internal/deck"
)

// ValidatePlay checks a candidate play against the hand and the table.
// It returns the resolved cards in the order the ids were given.
//
// The checks run in a fixed order and the first failure wins:
//  1. every id names a distinct card in the hand
//  2. the cards share a value or share a color
//  3. an empty table takes exactly one card
//  4. otherwise the play has as many cards as the table, or one more
//  5. the combined rank beats the table's
func ValidatePlay(hand []deck.Card, cardIDs []string, currentPlay []deck.Card) ([]deck.Card, error) {
	if len(cardIDs) == 0 {
		return nil, ErrCardNotInHand.WithMessage("no cards selected")
	}

	byID := make(map[string]deck.Card, len(hand))
	for _, c := range hand {
		byID[c.ID] = c
	}
	cards := make([]deck.Card, 0, len(cardIDs))
	used := make(map[string]bool, len(cardIDs))
	for _, id := range cardIDs {
		c, ok := byID[id]
		if !ok || used[id] {
			return nil, ErrCardNotInHand.WithMessage("card %s is not in your hand", id)
		}
		used[id] = true
		cards = append(cards, c)
	}

	if !sameValue(cards) && !sameColor(cards) {
		return nil, ErrMustPlaySameType
	}

	if len(currentPlay) == 0 {
		if len(cards) != 1 {
			return nil, ErrMustPlayFirstCard
		}
		return cards, nil
	}

	if n := len(currentPlay); len(cards) != n && len(cards) != n+1 {
		return nil, ErrMustPlayExactCount.WithMessage("play %d or %d cards", n, n+1)
	}

	// Matching and non-matching plays are held to the same strict rank
	// comparison; a match never lets an equal or lower rank through.
	rank, tableRank := CombinedRank(cards), CombinedRank(currentPlay)
	if rank <= tableRank {
		if sharesColorOrValue(cards, currentPlay) {
			return nil, ErrMustPlayHigherValue.WithMessage("%d does not beat %d", rank, tableRank)
		}
		return nil, ErrMustPlayHigherValue.WithMessage("%d does not beat %d and nothing matches the table", rank, tableRank)
	}
	return cards, nil
}

// CombinedRank concatenates the card values sorted descending, so
// [7, 7] ranks 77 and [3, 9, 1] ranks 931.
func CombinedRank(cards []deck.Card) int {
	values := make([]int, len(cards))
	for i, c := range cards {
		values[i] = int(c.Value)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(values)))

	rank := 0
	for _, v := range values {
		rank = rank*10 + v
	}
	return rank
}

// IsRoundOver reports whether a hand was emptied by a play.
func IsRoundOver(hand []deck.Card) bool {
	return len(hand) == 0
}

// ScoreRound adds each seated player's leftover card count to their score.
func ScoreRound(players []*Player) {
	for _, p := range players {
		if p.IsSpectator {
			continue
		}
		p.Score += len(p.Hand)
	}
}

// GameWinner returns the id of the lowest-scoring seated player once any
// seated player has reached pointLimit. Ties go to the earliest seat.
func GameWinner(players []*Player, pointLimit int) (string, bool) {
	reached := false
	for _, p := range players {
		if !p.IsSpectator && p.Score >= pointLimit {
			reached = true
			break
		}
	}
	if !reached {
		return "", false
	}

	var winner *Player
	for _, p := range players {
		if p.IsSpectator {
			continue
		}
		if winner == nil || p.Score < winner.Score {
			winner = p
		}
	}
	if winner == nil {
		return "", false
	}
	return winner.ID, true
}

func sameValue(cards []deck.Card) bool {
	for _, c := range cards[1:] {
		if c.Value != cards[0].Value {
			return false
		}
	}
	return true
}

func sameColor(cards []deck.Card) bool {
	for _, c := range cards[1:] {
		if c.Color != cards[0].Color {
			return false
		}
	}
	return true
}

func sharesColorOrValue(a, b []deck.Card) bool {
	for _, x := range a {
		for _, y := range b {
			if x.Color == y.Color || x.Value == y.Value {
				return true
			}
		}
	}
	return false
}
