package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/lox/cardroom/internal/deck"
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Bold(true).
			Padding(0, 1)

	PlayerInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))

	TurnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true)

	HiddenCardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

var cardColors = map[deck.Color]lipgloss.Color{
	deck.Red:    lipgloss.Color("#FF6B6B"),
	deck.Orange: lipgloss.Color("#FFA94D"),
	deck.Yellow: lipgloss.Color("#FFEAA7"),
	deck.Green:  lipgloss.Color("#96CEB4"),
	deck.Blue:   lipgloss.Color("#74C0FC"),
	deck.Purple: lipgloss.Color("#B197FC"),
}

// CardStyle returns the style a card is drawn with.
func CardStyle(c deck.Card) lipgloss.Style {
	if c.IsPlaceholder() {
		return HiddenCardStyle
	}
	return lipgloss.NewStyle().Foreground(cardColors[c.Color]).Bold(true)
}
