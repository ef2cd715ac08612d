package protocol

import (
	"errors"
	"sync"
	"testing"

	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalWrapsPayload(t *testing.T) {
	data, err := Marshal(TypeError, Error{Code: "NotYourTurn", Message: "it is not your turn"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","data":{"code":"NotYourTurn","message":"it is not your turn"}}`, string(data))

	data, err = Marshal(TypePing, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ping"}`, string(data))

	_, err = Marshal("", nil)
	assert.ErrorIs(t, err, ErrMissingType)
}

func TestTurnUpdateCarriesPlaceholders(t *testing.T) {
	state := &game.State{
		ID:      "g",
		Players: []*game.Player{{ID: "p", Hand: deck.Placeholders(2)}},
		Deck:    deck.Placeholders(1),
	}
	data, err := Marshal(TypeTurnUpdate, TurnUpdate{GameState: state})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"gameState"`)
	assert.Contains(t, string(data), `"id":"hidden-1"`)
	assert.NotContains(t, string(data), `"color":"red"`)
}

func TestDecode(t *testing.T) {
	env, err := Decode([]byte(`{"type":"play_cards","data":{"cards":["red-3","red-4"]}}`))
	require.NoError(t, err)
	assert.Equal(t, TypePlayCards, env.Type)

	var play PlayCards
	require.NoError(t, env.Into(&play))
	assert.Equal(t, []string{"red-3", "red-4"}, play.Cards)

	env, err = Decode([]byte(`{"type":"pass_turn"}`))
	require.NoError(t, err)
	var pick PickCard
	require.NoError(t, env.Into(&pick))
	assert.Empty(t, pick.CardID)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  error
	}{
		{name: "empty", frame: "  ", want: ErrEmptyFrame},
		{name: "missing type", frame: `{"data":{}}`, want: ErrMissingType},
		{name: "not json", frame: `hello`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.frame))
			require.Error(t, err)
			if tt.want != nil {
				assert.True(t, errors.Is(err, tt.want))
			}
		})
	}

	env, err := Decode([]byte(`{"type":"pick_card","data":{"cardId":7}}`))
	require.NoError(t, err)
	var pick PickCard
	assert.Error(t, env.Into(&pick))
}

func TestMarshalConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := Marshal(TypePickCard, PickCard{CardID: "blue-9"})
			if assert.NoError(t, err) {
				assert.JSONEq(t, `{"type":"pick_card","data":{"cardId":"blue-9"}}`, string(data))
			}
		}()
	}
	wg.Wait()
}
