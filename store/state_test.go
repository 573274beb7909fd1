package store

import (
	"path"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/omniward/omniward/types"
)

func newTestState(t *testing.T) *State {
	t.Helper()

	state, err := NewState(path.Join(t.TempDir(), "test.db"), hclog.NewNullLogger())
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		require.NoError(t, state.Close())
	})

	return state
}

func TestState_ChainSettings(t *testing.T) {
	t.Parallel()

	state := newTestState(t)

	setting := &ChainSetting{
		EvmChainID:    137,
		RouterChainID: 12532609583862916517,
		Adapter:       types.StringToAddress("0x11"),
		Ramp:          OnRamp,
		Enabled:       true,
		GasLimit:      400000,
	}

	require.NoError(t, state.BridgeStore.InsertChainSetting(setting, nil))

	t.Run("lookup by evm chain id", func(t *testing.T) {
		got, err := state.BridgeStore.GetChainSetting(137, OnRamp, nil)
		require.NoError(t, err)
		assert.Equal(t, setting, got)
	})

	t.Run("ramp directions are independent", func(t *testing.T) {
		_, err := state.BridgeStore.GetChainSetting(137, OffRamp, nil)
		assert.ErrorIs(t, err, ErrSettingNotFound)
	})

	t.Run("lookup by router chain id", func(t *testing.T) {
		got, err := state.BridgeStore.GetChainSettingByRouterChain(12532609583862916517, OnRamp, nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(137), got.EvmChainID)
	})

	t.Run("unknown chain", func(t *testing.T) {
		_, err := state.BridgeStore.GetChainSetting(9999, OnRamp, nil)
		assert.ErrorIs(t, err, ErrSettingNotFound)
	})

	t.Run("overwrite replaces the entry", func(t *testing.T) {
		updated := *setting
		updated.Enabled = false

		require.NoError(t, state.BridgeStore.InsertChainSetting(&updated, nil))

		got, err := state.BridgeStore.GetChainSetting(137, OnRamp, nil)
		require.NoError(t, err)
		assert.False(t, got.Enabled)

		settings, err := state.BridgeStore.ChainSettings()
		require.NoError(t, err)
		assert.Len(t, settings, 1)
	})
}

func TestState_WrappedAssets(t *testing.T) {
	t.Parallel()

	state := newTestState(t)

	record := &WrappedAssetRecord{
		OriginChainID:  1,
		OriginAddress:  types.StringToAddress("0xaa"),
		WrappedAddress: types.StringToAddress("0xbb"),
	}

	stored, created, err := state.BridgeStore.InsertWrappedAsset(record, nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, record, stored)

	// the second insert for the same origin keeps the first record
	conflicting := &WrappedAssetRecord{
		OriginChainID:  1,
		OriginAddress:  types.StringToAddress("0xaa"),
		WrappedAddress: types.StringToAddress("0xcc"),
	}

	stored, created, err = state.BridgeStore.InsertWrappedAsset(conflicting, nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, record.WrappedAddress, stored.WrappedAddress)

	byOrigin, err := state.BridgeStore.GetWrappedAsset(1, types.StringToAddress("0xaa"), nil)
	require.NoError(t, err)
	assert.Equal(t, record, byOrigin)

	byWrapped, err := state.BridgeStore.GetWrappedOrigin(types.StringToAddress("0xbb"), nil)
	require.NoError(t, err)
	assert.Equal(t, record, byWrapped)

	_, err = state.BridgeStore.GetWrappedOrigin(types.StringToAddress("0xdd"), nil)
	assert.ErrorIs(t, err, ErrWrappedAssetNotFound)
}

func TestState_PendingQueueOrdering(t *testing.T) {
	t.Parallel()

	state := newTestState(t)

	for i := byte(0); i < 5; i++ {
		require.NoError(t, state.AdapterStore.PushPendingMessage(&QueuedMessage{
			ID:        types.BytesToHash([]byte{i}),
			FromChain: uint64(i),
			Data:      []byte{i},
		}, nil))
	}

	count, err := state.AdapterStore.PendingMessageCount(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), count)

	messages, err := state.AdapterStore.PeekPendingMessages(3, nil)
	require.NoError(t, err)
	require.Len(t, messages, 3)

	for i, msg := range messages {
		assert.Equal(t, uint64(i), msg.FromChain)
	}

	// removing the head advances the queue
	require.NoError(t, state.AdapterStore.RemovePendingMessage(messages[0].Sequence, nil))

	messages, err = state.AdapterStore.PeekPendingMessages(1, nil)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, uint64(1), messages[0].FromChain)
}

func TestState_PendingQueueFIFOProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		state := newTestState(t)

		pushed := rapid.SliceOfN(rapid.Uint64(), 1, 30).Draw(rt, "chains")

		for _, chain := range pushed {
			require.NoError(rt, state.AdapterStore.PushPendingMessage(&QueuedMessage{
				FromChain: chain,
			}, nil))
		}

		drained := []uint64{}

		for {
			messages, err := state.AdapterStore.PeekPendingMessages(1, nil)
			require.NoError(rt, err)

			if len(messages) == 0 {
				break
			}

			drained = append(drained, messages[0].FromChain)
			require.NoError(rt, state.AdapterStore.RemovePendingMessage(messages[0].Sequence, nil))
		}

		require.Equal(rt, pushed, drained)
	})
}

func TestState_ExecutedMessageLog(t *testing.T) {
	t.Parallel()

	state := newTestState(t)

	_, err := state.AdapterStore.GetExecutedMessage(0, nil)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	first := &QueuedMessage{ID: types.StringToHash("0x01"), FromChain: 7}
	second := &QueuedMessage{ID: types.StringToHash("0x02"), FromChain: 8}

	require.NoError(t, state.AdapterStore.AppendExecutedMessage(first, nil))
	require.NoError(t, state.AdapterStore.AppendExecutedMessage(second, nil))

	got, err := state.AdapterStore.GetExecutedMessage(0, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	got, err = state.AdapterStore.GetExecutedMessage(1, nil)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestState_AutomationState(t *testing.T) {
	t.Parallel()

	state := newTestState(t)

	// unset state reads as zero values
	auto, err := state.AdapterStore.GetAutomationState(nil)
	require.NoError(t, err)
	assert.Equal(t, &AutomationState{}, auto)

	auto.UpdateInterval = 60
	auto.DefaultExecutionLimit = 5

	require.NoError(t, state.AdapterStore.SetAutomationState(auto, nil))

	got, err := state.AdapterStore.GetAutomationState(nil)
	require.NoError(t, err)
	assert.Equal(t, auto, got)
}

func TestState_Collections(t *testing.T) {
	t.Parallel()

	state := newTestState(t)

	collection := &Collection{
		Address: types.StringToAddress("0x01"),
		Name:    "Galactic Apes",
		Symbol:  "GAPE",
		Minter:  types.StringToAddress("0x02"),
	}

	require.NoError(t, state.VaultStore.InsertCollection(collection, nil))
	assert.ErrorIs(t, state.VaultStore.InsertCollection(collection, nil), ErrCollectionExists)

	got, err := state.VaultStore.GetCollection(collection.Address, nil)
	require.NoError(t, err)
	assert.Equal(t, collection, got)

	_, err = state.VaultStore.GetCollection(types.StringToAddress("0x99"), nil)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestState_Tokens(t *testing.T) {
	t.Parallel()

	state := newTestState(t)

	token := &Token{
		Collection: types.StringToAddress("0x01"),
		ID:         42,
		Owner:      types.StringToAddress("0x02"),
		URI:        "ipfs://token/42",
	}

	require.NoError(t, state.VaultStore.InsertToken(token, nil))
	assert.ErrorIs(t, state.VaultStore.InsertToken(token, nil), ErrTokenExists)

	got, err := state.VaultStore.GetToken(token.Collection, 42, nil)
	require.NoError(t, err)
	assert.Equal(t, token, got)

	newOwner := types.StringToAddress("0x03")
	require.NoError(t, state.VaultStore.UpdateTokenOwner(token.Collection, 42, newOwner, nil))

	got, err = state.VaultStore.GetToken(token.Collection, 42, nil)
	require.NoError(t, err)
	assert.Equal(t, newOwner, got.Owner)

	require.NoError(t, state.VaultStore.DeleteToken(token.Collection, 42, nil))

	_, err = state.VaultStore.GetToken(token.Collection, 42, nil)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestState_AuditEvents(t *testing.T) {
	t.Parallel()

	state := newTestState(t)

	require.NoError(t, state.AppendAuditEvent("First", map[string]uint64{"chain": 1}, nil))
	require.NoError(t, state.AppendAuditEvent("Second", map[string]uint64{"chain": 2}, nil))

	events, err := state.AuditEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "First", events[0].Name)
	assert.Equal(t, "Second", events[1].Name)
	assert.Less(t, events[0].Sequence, events[1].Sequence)
	assert.NotZero(t, events[0].Timestamp)
}
