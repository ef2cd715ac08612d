// Package protocol defines the JSON messages exchanged over the realtime
// channel. Every frame is an Envelope whose Data depends on Type.
package protocol

import "github.com/lox/cardroom/internal/game"

const (
	// Client -> Server
	TypeConnect       = "connect"
	TypeStartGame     = "start_game"
	TypePlayCards     = "play_cards"
	TypePickCard      = "pick_card"
	TypePassTurn      = "pass_turn"
	TypeStartNewRound = "start_new_round"

	// Server -> Client
	TypeTurnUpdate      = "turn_update"
	TypeError           = "error"
	TypeSessionReplaced = "session_replaced"

	// Both directions
	TypePing = "ping"
	TypePong = "pong"
)

// Error codes for problems with the channel itself rather than the game.
const (
	CodeBadMessage     = "BadMessage"
	CodeUnknownMessage = "UnknownMessage"
	CodeNotIdentified  = "NotIdentified"
	CodeRateLimited    = "RateLimited"
)

// Client -> Server Messages

// Connect identifies the connection as a player of a room. Sending it
// again on the same connection re-identifies.
type Connect struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
}

// PlayCards plays cards from the identified player's hand.
type PlayCards struct {
	Cards []string `json:"cards"`
}

// PickCard collects one card of the previous play.
type PickCard struct {
	CardID string `json:"cardId"`
}

// Server -> Client Messages

// TurnUpdate carries the full filtered state. Clients replace whatever
// they hold with it.
type TurnUpdate struct {
	GameState *game.State `json:"gameState"`
}

// Error reports a rejected message or intent to its sender only.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SessionReplaced is sent to a connection just before it is closed
// because the same player identified on another connection.
type SessionReplaced struct {
	Message string `json:"message"`
}
