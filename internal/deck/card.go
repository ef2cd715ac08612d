package deck

import (
	"fmt"
	"strconv"
	"strings"
)

// Color represents one of the six card colors
type Color string

const (
	Red    Color = "red"
	Orange Color = "orange"
	Yellow Color = "yellow"
	Green  Color = "green"
	Blue   Color = "blue"
	Purple Color = "purple"

	// Hidden is carried by placeholder cards in redacted views
	Hidden Color = ""
)

// Colors lists every color in deck order
var Colors = []Color{Red, Orange, Yellow, Green, Blue, Purple}

// Valid returns true for the six real colors
func (c Color) Valid() bool {
	for _, color := range Colors {
		if c == color {
			return true
		}
	}
	return false
}

// Value is a card's face value
type Value int

const (
	MinValue Value = 1
	MaxValue Value = 9
)

// Valid returns true if the value is within 1..9
func (v Value) Valid() bool {
	return v >= MinValue && v <= MaxValue
}

// Card represents a playing card. Cards are immutable values.
type Card struct {
	ID    string `json:"id"`
	Color Color  `json:"color"`
	Value Value  `json:"value"`
}

// NewCard creates a card with its canonical id (e.g. "red-3")
func NewCard(color Color, value Value) Card {
	return Card{ID: CardID(color, value), Color: color, Value: value}
}

// CardID returns the canonical id for a color/value pair
func CardID(color Color, value Value) string {
	return fmt.Sprintf("%s-%d", color, value)
}

// ParseCard parses a canonical card id back into a card
func ParseCard(id string) (Card, error) {
	color, value, ok := strings.Cut(id, "-")
	if !ok {
		return Card{}, fmt.Errorf("invalid card id %q", id)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return Card{}, fmt.Errorf("invalid card value in %q: %w", id, err)
	}
	card := NewCard(Color(color), Value(n))
	if !card.Color.Valid() || !card.Value.Valid() {
		return Card{}, fmt.Errorf("invalid card id %q", id)
	}
	return card, nil
}

// Placeholder returns the i-th redacted card. It has no color or value
// and its id does not identify the card it stands in for.
func Placeholder(i int) Card {
	return Card{ID: "hidden-" + strconv.Itoa(i)}
}

// IsPlaceholder returns true if the card carries no real color/value
func (c Card) IsPlaceholder() bool {
	return c.Color == Hidden && c.Value == 0
}

// String returns the card id
func (c Card) String() string {
	return c.ID
}
