package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectForPlayer(t *testing.T) {
	t.Parallel()
	s := pickTable(t)
	before := s.Clone()

	view := ProjectForPlayer(s, "p1")

	assert.Equal(t, cardIDs(s.Players[1].Hand), cardIDs(view.Players[1].Hand))
	for _, i := range []int{0, 2} {
		require.Len(t, view.Players[i].Hand, len(s.Players[i].Hand))
		for _, c := range view.Players[i].Hand {
			assert.True(t, c.IsPlaceholder(), "player %d leaked %s", i, c.ID)
		}
	}
	require.Len(t, view.Deck, len(s.Deck))
	for _, c := range view.Deck {
		assert.True(t, c.IsPlaceholder())
	}

	assert.Equal(t, cardIDs(s.CurrentPlay), cardIDs(view.CurrentPlay), "the table is public")
	assert.Equal(t, cardIDs(s.PreviousPlay), cardIDs(view.PreviousPlay))
	assert.Equal(t, before, s, "projection must not touch the source")
}

func TestProjectForUnknownViewer(t *testing.T) {
	t.Parallel()
	s := pickTable(t)
	view := ProjectForPlayer(s, "stranger")
	for _, p := range view.Players {
		for _, c := range p.Hand {
			assert.True(t, c.IsPlaceholder())
		}
	}
}

func TestProjectionDoesNotAlias(t *testing.T) {
	t.Parallel()
	s := pickTable(t)
	view := ProjectForPlayer(s, "p0")
	view.Players[0].Hand[0].ID = "mutated"
	view.CurrentPlay[0].ID = "mutated"
	assert.NotEqual(t, "mutated", s.Players[0].Hand[0].ID)
	assert.NotEqual(t, "mutated", s.CurrentPlay[0].ID)
}
