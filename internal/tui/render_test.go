package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/game"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestCardLabel(t *testing.T) {
	assert.Equal(t, "R3", CardLabel(deck.NewCard(deck.Red, 3)))
	assert.Equal(t, "P9", CardLabel(deck.NewCard(deck.Purple, 9)))
	assert.Equal(t, "??", CardLabel(deck.Placeholder(0)))
	assert.Equal(t, "G1 ?? O5", Cards([]deck.Card{deck.NewCard(deck.Green, 1), deck.Placeholder(1), deck.NewCard(deck.Orange, 5)}))
	assert.Equal(t, "-", Cards(nil))
}

func TestRenderShowsViewerPerspective(t *testing.T) {
	s, err := game.NewState("g1", "ABC123", "p1", "Alice", 15, game.DefaultRules())
	require.NoError(t, err)
	require.NoError(t, s.Join("p2", "Bob"))
	s.Status = game.StatusPlaying
	s.Phase = game.PhaseAwaitingPlay
	s.Round = 1
	s.Players[0].Hand = []deck.Card{deck.NewCard(deck.Red, 3), deck.NewCard(deck.Blue, 7)}
	s.Players[1].Hand = []deck.Card{deck.NewCard(deck.Green, 2)}
	s.Players[1].Connected = false
	s.CurrentPlay = []deck.Card{deck.NewCard(deck.Yellow, 4)}
	s.CurrentTurn = 0

	out := Render(game.ProjectForPlayer(s, "p1"), "p1")
	lines := strings.Split(out, "\n")

	assert.Contains(t, lines[0], "Room ABC123")
	assert.Contains(t, out, "> Alice (you, host)")
	assert.Contains(t, out, "R3 B7")
	assert.Contains(t, out, "Bob (away)")
	assert.NotContains(t, out, "G2", "bob's card is hidden from alice")
	assert.Contains(t, out, "Table:    Y4")
	assert.Contains(t, out, "Your turn")
}

func TestRenderAnnouncesWinners(t *testing.T) {
	s, err := game.NewState("g1", "ABC123", "p1", "Alice", 15, game.DefaultRules())
	require.NoError(t, err)
	require.NoError(t, s.Join("p2", "Bob"))
	winner := "p2"
	s.Status = game.StatusFinished
	s.GameWinner = &winner

	assert.Contains(t, Render(s, "p1"), "Bob wins the game")
}
