package game

import (
	"fmt"
	rand "math/rand/v2"
	"testing"
	"time"

	"github.com/lox/cardroom/internal/randutil"
	"github.com/stretchr/testify/require"
)

// TestRandomGamesKeepInvariants drives seeded random games through the
// engine and checks after every intent that rejected intents change
// nothing, every card is accounted for, the turn sits with an active
// player and there is exactly one host.
func TestRandomGamesKeepInvariants(t *testing.T) {
	t.Parallel()

	for seed := int64(1); seed <= 40; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			t.Parallel()
			runRandomGame(t, seed)
		})
	}
}

func runRandomGame(t *testing.T, seed int64) {
	pick := randutil.Derive(seed, 1)
	engine := randutil.Derive(seed, 2)
	now := testNow

	players := 2 + pick.IntN(5)
	s := newWaitingState(t, players, 5+pick.IntN(20))
	if pick.IntN(2) == 0 {
		s.Rules.AutoPickSingle = false
	}
	require.NoError(t, s.Start("p0", engine))

	for step := 0; step < 600 && s.Status == StatusPlaying; step++ {
		now = now.Add(time.Second)
		before := s.Clone()
		err := randomIntent(s, pick, engine, now)
		if err != nil {
			require.Equal(t, before, s, "step %d: rejected intent mutated state: %v", step, err)
		}
		checkConservation(t, s)
		checkTurn(t, s)
		checkSingleHost(t, s)
		if s.GameWinner != nil {
			require.Equal(t, StatusFinished, s.Status)
		}
	}
}

// randomIntent mostly makes legal moves for the turn owner and mixes in
// disconnects, reconnects and moves by the wrong player.
func randomIntent(s *State, pick, engine *rand.Rand, now time.Time) error {
	anyone := s.Players[pick.IntN(len(s.Players))].ID

	switch roll := pick.IntN(20); {
	case roll == 0:
		_, err := s.SetConnection(anyone, false, now, engine)
		return err
	case roll <= 2:
		_, err := s.SetConnection(anyone, true, now, engine)
		return err
	case roll == 3:
		return s.Pass(anyone, engine)
	case roll == 4:
		s.FailoverHost(now)
		return nil
	}

	if s.Phase == PhaseRoundOver {
		return s.StartNewRound(s.Host().ID, engine)
	}

	owner := s.TurnOwner()
	if owner == nil || !owner.Active() {
		return s.Play(anyone, []string{"red-1"}, engine)
	}
	if s.Phase == PhaseAwaitingPick {
		c := s.PreviousPlay[pick.IntN(len(s.PreviousPlay))]
		return s.Pick(owner.ID, c.ID, engine)
	}

	if len(s.CurrentPlay) > 0 && pick.IntN(4) == 0 {
		return s.Pass(owner.ID, engine)
	}
	var lastErr error
	for attempt := 0; attempt < 40; attempt++ {
		size := 1
		if n := len(s.CurrentPlay); n > 0 {
			size = n + pick.IntN(2)
		}
		if size > len(owner.Hand) {
			continue
		}
		ids := make([]string, size)
		for i, j := range pick.Perm(len(owner.Hand))[:size] {
			ids[i] = owner.Hand[j].ID
		}
		if _, err := ValidatePlay(owner.Hand, ids, s.CurrentPlay); err != nil {
			lastErr = err
			continue
		}
		return s.Play(owner.ID, ids, engine)
	}
	if len(s.CurrentPlay) > 0 {
		return s.Pass(owner.ID, engine)
	}
	return lastErr
}
