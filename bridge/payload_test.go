package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniward/omniward/types"
)

func TestPayload_EncodeDecode(t *testing.T) {
	t.Parallel()

	payload := &Payload{
		Owner:         types.StringToAddress("0x01"),
		OriginChainID: 137,
		OriginAddress: types.StringToAddress("0xc1"),
		TokenID:       42,
		Name:          "Galactic Apes",
		Symbol:        "GAPE",
		URI:           "ipfs://gape/42",
	}

	encoded, err := payload.EncodeAbi()
	require.NoError(t, err)

	decoded := &Payload{}
	require.NoError(t, decoded.DecodeAbi(encoded))

	assert.Equal(t, payload, decoded)
}

func TestPayload_DecodeGarbage(t *testing.T) {
	t.Parallel()

	payload := &Payload{}

	assert.Error(t, payload.DecodeAbi(nil))
	assert.Error(t, payload.DecodeAbi([]byte{0x01, 0x02, 0x03}))
}

func TestWrappedAddress_Deterministic(t *testing.T) {
	t.Parallel()

	origin := types.StringToAddress("0xc1")

	first := WrappedAddress(137, origin)
	second := WrappedAddress(137, origin)
	assert.Equal(t, first, second)
	assert.NotEqual(t, types.ZeroAddress, first)

	// chain and origin both contribute to the derivation
	assert.NotEqual(t, first, WrappedAddress(1, origin))
	assert.NotEqual(t, first, WrappedAddress(137, types.StringToAddress("0xc2")))
}
