package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBuy(t *testing.T) {
	cmd, err := Parse("buy 3")
	require.NoError(t, err)
	assert.Equal(t, Buy{N: 3}, cmd)
}

func TestParseBuyRejectsBadQuantities(t *testing.T) {
	for _, text := range []string{"buy", "buy 0", "buy -1", "buy 1.5", "buy lots", "buy 3x"} {
		_, err := Parse(text)
		assert.ErrorIs(t, err, ErrInvalidQuantity, "input %q", text)
	}
}

func TestParsePrice(t *testing.T) {
	cmd, err := Parse("price")
	require.NoError(t, err)
	assert.Equal(t, Price{}, cmd)

	cmd, err = Parse("price 5")
	require.NoError(t, err)
	price, ok := cmd.(Price)
	require.True(t, ok)
	require.NotNil(t, price.Value)
	assert.Equal(t, int64(5), *price.Value)
}

func TestParsePriceNonNumericIsQuery(t *testing.T) {
	cmd, err := Parse("price cheap")
	require.NoError(t, err)
	price, ok := cmd.(Price)
	require.True(t, ok)
	assert.Nil(t, price.Value)
}

func TestParseSimpleCommands(t *testing.T) {
	cases := map[string]Command{
		"ping":      Ping{},
		"help":      Help{},
		"inventory": Inventory{},
	}
	for text, want := range cases {
		cmd, err := Parse(text)
		require.NoError(t, err, text)
		assert.Equal(t, want, cmd, text)
	}
}

func TestParseUnknown(t *testing.T) {
	for _, text := range []string{"sell 3", "buyy 1", "", "   "} {
		_, err := Parse(text)
		assert.ErrorIs(t, err, ErrUnknown, "input %q", text)
	}
}
