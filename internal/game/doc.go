// Package game implements the rules and the authoritative state machine
// for a shedding card game played with a 54-card deck of six colors and
// values 1 to 9.
//
// The main type is State, which holds one room's players, deck and
// table. Rule checks are pure functions (ValidatePlay, CombinedRank,
// GameWinner); state transitions are methods on *State that either apply
// completely or return an *Error and leave the state as it was.
//
// # Basic Usage
//
//	s, _ := game.NewState(id, "ABC123", hostID, "Alice", 15, game.DefaultRules())
//	_ = s.Join(bobID, "Bob")
//	_ = s.Start(hostID, rng)
//	err := s.Play(hostID, []string{"red-3"}, rng)
//
// # Turn cycle
//
// While playing, State.Phase tracks the turn sub-state:
//   - PhaseAwaitingPlay: the turn owner plays or passes
//   - PhaseAwaitingPick: the player who just played picks one card of the
//     previous play; the rest return to the deck
//   - PhaseRoundOver: a hand was emptied; the host starts a new round
//
// # Hidden information
//
// ProjectForPlayer redacts every hand except the viewer's and the whole
// deck. Nothing should be sent to a client without going through it.
package game
