package deck

import (
	rand "math/rand/v2"
	"sort"
)

// Size is the number of cards in a full deck: one per (color, value) pair
const Size = 54

// New returns a full, ordered 54-card deck
func New() []Card {
	cards := make([]Card, 0, Size)
	for _, color := range Colors {
		for value := MinValue; value <= MaxValue; value++ {
			cards = append(cards, NewCard(color, value))
		}
	}
	return cards
}

// NewShuffled returns a full deck shuffled with rng
func NewShuffled(rng *rand.Rand) []Card {
	cards := New()
	Shuffle(cards, rng)
	return cards
}

// Shuffle randomizes the order of cards in place (Fisher-Yates)
func Shuffle(cards []Card, rng *rand.Rand) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// SortDescending orders cards by value, highest first. Equal values keep
// deck color order so the result is deterministic.
func SortDescending(cards []Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		if cards[i].Value != cards[j].Value {
			return cards[i].Value > cards[j].Value
		}
		return colorIndex(cards[i].Color) < colorIndex(cards[j].Color)
	})
}

// Placeholders returns n redacted cards
func Placeholders(n int) []Card {
	out := make([]Card, n)
	for i := range out {
		out[i] = Placeholder(i)
	}
	return out
}

// Clone returns a copy of cards that never aliases the input. A nil or
// empty input yields an empty, non-nil slice.
func Clone(cards []Card) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
	return out
}

func colorIndex(c Color) int {
	for i, color := range Colors {
		if c == color {
			return i
		}
	}
	return len(Colors)
}
