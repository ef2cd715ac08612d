// Package tui renders a player's view of a room as styled terminal text.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/game"
)

// CardLabel is the short form of a card, e.g. "R3" for red-3. Hidden
// cards are "??".
func CardLabel(c deck.Card) string {
	if c.IsPlaceholder() {
		return "??"
	}
	return fmt.Sprintf("%s%d", strings.ToUpper(string(c.Color)[:1]), c.Value)
}

// Cards renders cards separated by spaces, or "-" for none.
func Cards(cards []deck.Card) string {
	if len(cards) == 0 {
		return InfoStyle.Render("-")
	}
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = CardStyle(c).Render(CardLabel(c))
	}
	return strings.Join(parts, " ")
}

// Render draws s as viewerID sees it. s should already be filtered for
// viewerID; Render does not hide anything itself.
func Render(s *game.State, viewerID string) string {
	var b strings.Builder

	header := fmt.Sprintf("Room %s  round %d  %s  to %d", s.RoomCode, s.Round, s.Status, s.PointLimit)
	b.WriteString(HeaderStyle.Render(header))
	b.WriteString("\n\n")

	turn := s.TurnOwner()
	for _, p := range s.Players {
		marker := "  "
		if turn != nil && turn.ID == p.ID {
			marker = TurnStyle.Render("> ")
		}

		var tags []string
		if p.ID == viewerID {
			tags = append(tags, "you")
		}
		if p.IsHost {
			tags = append(tags, "host")
		}
		if p.IsSpectator {
			tags = append(tags, "spectator")
		}
		if !p.Connected {
			tags = append(tags, "away")
		}
		name := p.Name
		if len(tags) > 0 {
			name += " (" + strings.Join(tags, ", ") + ")"
		}

		line := fmt.Sprintf("%s%-28s %3d pts  ", marker, name, p.Score)
		b.WriteString(PlayerInfoStyle.Render(line))
		if p.IsSpectator {
			b.WriteString("\n")
			continue
		}
		b.WriteString(Cards(p.Hand))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		PlayerInfoStyle.Render("Table:    "), Cards(s.CurrentPlay)))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		PlayerInfoStyle.Render("Previous: "), Cards(s.PreviousPlay)))
	b.WriteString("\n")
	b.WriteString(InfoStyle.Render(fmt.Sprintf("Deck: %d cards", len(s.Deck))))
	b.WriteString("\n")

	if status := statusLine(s, viewerID); status != "" {
		b.WriteString("\n")
		b.WriteString(status)
		b.WriteString("\n")
	}
	return b.String()
}

func statusLine(s *game.State, viewerID string) string {
	name := func(id *string) string {
		if id == nil {
			return ""
		}
		if p := s.Player(*id); p != nil {
			return p.Name
		}
		return *id
	}

	switch {
	case s.GameWinner != nil:
		return SuccessStyle.Render(name(s.GameWinner) + " wins the game")
	case s.Phase == game.PhaseRoundOver && s.RoundWinner != nil:
		return SuccessStyle.Render(name(s.RoundWinner) + " wins the round")
	case s.Phase == game.PhaseAwaitingPick && s.PickerID == viewerID:
		return TurnStyle.Render("Pick a card from the previous play")
	case s.Status == game.StatusPlaying && s.TurnOwner() != nil && s.TurnOwner().ID == viewerID:
		return TurnStyle.Render("Your turn")
	}
	return ""
}
