package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Parth0603/CryptoPulse/internal/types"
)

func TestActionCodec(t *testing.T) {
	t.Run("every kind survives the round trip", func(t *testing.T) {
		actions := []Action{
			{Kind: ActionSelectCoin, Coin: "bitcoin"},
			{Kind: ActionSelectCondition, Condition: types.ConditionBelow},
			{Kind: ActionConfirm, Price: 30000.5},
			{Kind: ActionEdit},
			{Kind: ActionCancel},
		}

		for _, a := range actions {
			decoded, err := DecodeAction(a.Encode())
			require.NoError(t, err)
			assert.Equal(t, a, decoded)
		}
	})

	t.Run("callback data stays inside telegram's 64-byte limit", func(t *testing.T) {
		a := Action{Kind: ActionSelectCoin, Coin: "osmosis-allbtc-committee-pool"}
		assert.LessOrEqual(t, len(a.Encode()), 64)
	})

	t.Run("malformed data is rejected", func(t *testing.T) {
		for _, data := range []string{"", "coin", "cond|>=", "confirm|abc", "bogus|x"} {
			_, err := DecodeAction(data)
			assert.Error(t, err, "data %q", data)
		}
	})
}
