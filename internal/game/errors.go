package game

import "fmt"

// Kind classifies why an intent was rejected.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindInvalidArgument   Kind = "invalid_argument"
	KindStateConflict     Kind = "state_conflict"
	KindTurnViolation     Kind = "turn_violation"
	KindRuleViolation     Kind = "rule_violation"
	KindCapacityViolation Kind = "capacity_violation"
)

// Code is a stable identifier clients can react to programmatically.
type Code string

// Error is returned for every rejected intent. The state it was applied
// to is left unchanged.
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same code, so wrapped or re-messaged
// errors still compare equal to their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

func newError(kind Kind, code Code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrGameNotFound   = newError(KindNotFound, "GameNotFound", "game not found")
	ErrPlayerNotFound = newError(KindNotFound, "PlayerNotFound", "player not found in game")
	ErrCardNotFound   = newError(KindNotFound, "CardNotFound", "card is not available to pick")

	ErrNotInGame = newError(KindForbidden, "NotInGame", "player is not part of this game")
	ErrNotHost   = newError(KindForbidden, "NotHost", "only the host can do that")

	ErrInvalidName       = newError(KindInvalidArgument, "InvalidName", "player name must be 1-32 characters")
	ErrInvalidPointLimit = newError(KindInvalidArgument, "InvalidPointLimit", "point limit must be between 5 and 50")
	ErrInvalidRoomCode   = newError(KindInvalidArgument, "InvalidRoomCode", "room code is malformed")

	ErrGameAlreadyStarted = newError(KindStateConflict, "GameAlreadyStarted", "game has already started")
	ErrGameNotInProgress  = newError(KindStateConflict, "GameNotInProgress", "game is not in progress")
	ErrGameFinished       = newError(KindStateConflict, "GameFinished", "game is finished")
	ErrRoundOver          = newError(KindStateConflict, "RoundOver", "round is over, waiting for the host to start a new one")

	ErrNotYourTurn     = newError(KindTurnViolation, "NotYourTurn", "it is not your turn")
	ErrPickNotAllowed  = newError(KindTurnViolation, "PickNotAllowed", "you can only pick right after your own play")
	ErrMustPick        = newError(KindTurnViolation, "MustPickCard", "pick a card from the previous play first")
	ErrCannotPassFirst = newError(KindTurnViolation, "CannotPassFirst", "the first play of a round cannot be passed")

	ErrCardNotInHand       = newError(KindRuleViolation, "CardNotInHand", "card is not in your hand")
	ErrMustPlaySameType    = newError(KindRuleViolation, "MustPlaySameType", "cards must share a color or a value")
	ErrMustPlayFirstCard   = newError(KindRuleViolation, "MustPlayFirstCard", "the first play must be a single card")
	ErrMustPlayExactCount  = newError(KindRuleViolation, "MustPlayExactCount", "play as many cards as the table, or one more")
	ErrMustPlayHigherValue = newError(KindRuleViolation, "MustPlayHigherValue", "play must rank higher than the table")

	ErrRoomFull          = newError(KindCapacityViolation, "RoomFull", "room is full")
	ErrNameTaken         = newError(KindCapacityViolation, "NameTaken", "name is already taken in this room")
	ErrNotEnoughPlayers  = newError(KindCapacityViolation, "NotEnoughPlayers", "at least two players are needed")
	ErrRoomCodeExhausted = newError(KindCapacityViolation, "RoomCodeExhausted", "could not allocate a unique room code")
)
