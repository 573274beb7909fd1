package adapter

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/omniward/omniward/accessmgmt"
	"github.com/omniward/omniward/router"
	"github.com/omniward/omniward/store"
	"github.com/omniward/omniward/types"
	"github.com/omniward/omniward/vault"
)

const (
	routerRole   = accessmgmt.Role(1)
	bridgeRole   = accessmgmt.Role(2)
	executorRole = accessmgmt.Role(4)
)

var (
	adminAddr    = types.StringToAddress("0xad")
	bridgeAddr   = types.StringToAddress("0xb1")
	adapterAddr  = types.StringToAddress("0xa1")
	routerAddr   = types.StringToAddress("0xf1")
	executorAddr = types.StringToAddress("0xe1")
	aliceAddr    = types.StringToAddress("0x11")
)

// fakeTransport quotes a flat fee and records routed messages
type fakeTransport struct {
	fee    *big.Int
	routed []*router.Message
}

func (f *fakeTransport) GetFee(*router.Message) (*big.Int, error) {
	return new(big.Int).Set(f.fee), nil
}

func (f *fakeTransport) Route(msg *router.Message, _ *big.Int) error {
	f.routed = append(f.routed, msg)

	return nil
}

func (f *fakeTransport) Close() error {
	return nil
}

// fakeReceiver stands in for the bridge core, rejecting deliveries on demand
type fakeReceiver struct {
	rejectAll error
	rejects   map[string]error

	received []string
}

func (f *fakeReceiver) ReceiveERC721(_ types.Address, _ uint64,
	_ types.Address, data []byte, _ *bolt.Tx) error {
	if f.rejectAll != nil {
		return f.rejectAll
	}

	if err, ok := f.rejects[string(data)]; ok {
		return err
	}

	f.received = append(f.received, string(data))

	return nil
}

type testAdapter struct {
	adapter   *Adapter
	state     *store.State
	access    *accessmgmt.Manager
	vault     *vault.Vault
	transport *fakeTransport
	receiver  *fakeReceiver
}

func newTestAdapter(t *testing.T, feeTokenEnabled bool) *testAdapter {
	t.Helper()

	logger := hclog.NewNullLogger()

	state, err := store.NewState(filepath.Join(t.TempDir(), "omniward.db"), logger)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, state.Close())
	})

	access := accessmgmt.NewManager(logger, adminAddr)
	require.NoError(t, access.SetTargetFunctionRole(
		adminAddr, adapterAddr, accessmgmt.FuncSendMessage, bridgeRole))
	require.NoError(t, access.GrantRole(adminAddr, bridgeRole, bridgeAddr, 0))
	require.NoError(t, access.SetTargetFunctionRole(
		adminAddr, adapterAddr, accessmgmt.FuncDeliverMessage, routerRole))
	require.NoError(t, access.GrantRole(adminAddr, routerRole, routerAddr, 0))
	require.NoError(t, access.SetTargetFunctionRole(
		adminAddr, adapterAddr, accessmgmt.FuncExecuteMessages, executorRole))
	require.NoError(t, access.GrantRole(adminAddr, executorRole, executorAddr, 0))

	vlt := vault.NewVault(logger, state.VaultStore, bridgeAddr)
	vlt.Authorize(adapterAddr)

	transport := &fakeTransport{fee: big.NewInt(200000)}
	receiver := &fakeReceiver{}

	adp, err := NewAdapter(logger, state, access, vlt, transport, &Config{
		Address:         adapterAddr,
		Router:          routerAddr,
		FeeTokenEnabled: feeTokenEnabled,
	})
	require.NoError(t, err)
	adp.SetReceiver(receiver)

	t.Cleanup(adp.Close)

	return &testAdapter{
		adapter:   adp,
		state:     state,
		access:    access,
		vault:     vlt,
		transport: transport,
		receiver:  receiver,
	}
}

func newDelivery(seq byte, data string) *router.Delivery {
	return &router.Delivery{
		ID:        types.BytesToHash([]byte{seq}),
		FromChain: 5009297550715157269,
		Sender:    types.StringToAddress("0xfa"),
		Data:      []byte(data),
	}
}

func testMessage() *router.Message {
	return &router.Message{
		ToChain:  5009297550715157269,
		Receiver: types.StringToAddress("0xfa"),
		Data:     []byte("payload"),
		GasLimit: 300000,
	}
}

func TestAdapter_SendMessage(t *testing.T) {
	t.Parallel()

	t.Run("caller requires send role", func(t *testing.T) {
		t.Parallel()

		ta := newTestAdapter(t, false)

		err := ta.adapter.SendMessage(aliceAddr, testMessage(), big.NewInt(200000), nil)
		assert.ErrorIs(t, err, accessmgmt.ErrUnauthorized)
	})

	t.Run("fee below quote", func(t *testing.T) {
		t.Parallel()

		ta := newTestAdapter(t, false)

		err := ta.adapter.SendMessage(bridgeAddr, testMessage(), big.NewInt(199999), nil)
		assert.ErrorIs(t, err, ErrInsufficientFee)
		assert.Empty(t, ta.transport.routed)
	})

	t.Run("dispatches at quote", func(t *testing.T) {
		t.Parallel()

		ta := newTestAdapter(t, false)

		require.NoError(t, ta.adapter.SendMessage(
			bridgeAddr, testMessage(), big.NewInt(200000), nil))
		require.Len(t, ta.transport.routed, 1)
		assert.Equal(t, []byte("payload"), ta.transport.routed[0].Data)
	})
}

func TestAdapter_FeeModeExclusive(t *testing.T) {
	t.Parallel()

	t.Run("native adapter rejects fee token entry", func(t *testing.T) {
		t.Parallel()

		ta := newTestAdapter(t, false)

		err := ta.adapter.SendMessageUsingFeeToken(
			bridgeAddr, aliceAddr, testMessage(), big.NewInt(200000), nil)
		assert.ErrorIs(t, err, ErrOperationNotSupported)
	})

	t.Run("fee token adapter rejects native entry", func(t *testing.T) {
		t.Parallel()

		ta := newTestAdapter(t, true)

		err := ta.adapter.SendMessage(bridgeAddr, testMessage(), big.NewInt(200000), nil)
		assert.ErrorIs(t, err, ErrOperationNotSupported)
	})
}

func TestAdapter_SendMessageUsingFeeToken(t *testing.T) {
	t.Parallel()

	ta := newTestAdapter(t, true)

	// no balance credited yet
	err := ta.adapter.SendMessageUsingFeeToken(
		bridgeAddr, aliceAddr, testMessage(), big.NewInt(200000), nil)
	assert.ErrorIs(t, err, ErrInsufficientFeeTokenAmount)

	require.NoError(t, ta.vault.CreditFee(adapterAddr, aliceAddr, big.NewInt(500000), nil))

	require.NoError(t, ta.adapter.SendMessageUsingFeeToken(
		bridgeAddr, aliceAddr, testMessage(), big.NewInt(200000), nil))
	require.Len(t, ta.transport.routed, 1)

	// the fee moved from the payer to the adapter account
	balance, err := ta.vault.FeeBalanceOf(aliceAddr, nil)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(300000), balance)

	balance, err = ta.vault.FeeBalanceOf(adapterAddr, nil)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200000), balance)
}

func TestAdapter_DeliverMessage(t *testing.T) {
	t.Parallel()

	t.Run("transport identity is authorized", func(t *testing.T) {
		t.Parallel()

		ta := newTestAdapter(t, false)
		require.NoError(t, ta.access.RevokeRole(adminAddr, routerRole, routerAddr))

		err := ta.adapter.DeliverMessage(newDelivery(1, "m1"))
		assert.ErrorIs(t, err, accessmgmt.ErrUnauthorized)
	})

	t.Run("executes immediately", func(t *testing.T) {
		t.Parallel()

		ta := newTestAdapter(t, false)

		require.NoError(t, ta.adapter.DeliverMessage(newDelivery(1, "m1")))
		assert.Equal(t, []string{"m1"}, ta.receiver.received)

		count, err := ta.adapter.PendingMessageCount()
		require.NoError(t, err)
		assert.Zero(t, count)

		executed, err := ta.adapter.GetExecutedMessage(0)
		require.NoError(t, err)
		assert.Equal(t, []byte("m1"), executed.Data)
	})

	t.Run("failed execution parks the message", func(t *testing.T) {
		t.Parallel()

		ta := newTestAdapter(t, false)
		ta.receiver.rejectAll = assert.AnError

		require.NoError(t, ta.adapter.DeliverMessage(newDelivery(1, "m1")))

		count, err := ta.adapter.PendingMessageCount()
		require.NoError(t, err)
		assert.Equal(t, uint64(1), count)

		// the failed attempt left nothing in the executed log
		_, err = ta.adapter.GetExecutedMessage(0)
		assert.ErrorIs(t, err, store.ErrMessageNotFound)
	})

	t.Run("acknowledged deliveries are dropped", func(t *testing.T) {
		t.Parallel()

		ta := newTestAdapter(t, false)

		delivery := newDelivery(1, "m1")
		require.NoError(t, ta.adapter.DeliverMessage(delivery))
		require.NoError(t, ta.adapter.DeliverMessage(delivery))

		assert.Equal(t, []string{"m1"}, ta.receiver.received)

		_, err := ta.adapter.GetExecutedMessage(1)
		assert.ErrorIs(t, err, store.ErrMessageNotFound)
	})

	t.Run("acknowledged deliveries stay dropped after a restart", func(t *testing.T) {
		t.Parallel()

		ta := newTestAdapter(t, false)

		delivery := newDelivery(1, "m1")
		require.NoError(t, ta.adapter.DeliverMessage(delivery))

		// a fresh instance on the same state starts with a cold cache
		restarted, err := NewAdapter(hclog.NewNullLogger(), ta.state, ta.access,
			ta.vault, ta.transport, &Config{Address: adapterAddr, Router: routerAddr})
		require.NoError(t, err)
		restarted.SetReceiver(ta.receiver)

		t.Cleanup(restarted.Close)

		require.NoError(t, restarted.DeliverMessage(delivery))

		assert.Equal(t, []string{"m1"}, ta.receiver.received)

		count, err := restarted.PendingMessageCount()
		require.NoError(t, err)
		assert.Zero(t, count)

		_, err = restarted.GetExecutedMessage(1)
		assert.ErrorIs(t, err, store.ErrMessageNotFound)
	})
}

func TestAdapter_ExecuteMessages(t *testing.T) {
	t.Parallel()

	// queueMessages parks n deliveries by rejecting their immediate execution
	queueMessages := func(t *testing.T, ta *testAdapter, data ...string) {
		t.Helper()

		ta.receiver.rejectAll = assert.AnError

		for i, d := range data {
			require.NoError(t, ta.adapter.DeliverMessage(newDelivery(byte(i+1), d)))
		}

		ta.receiver.rejectAll = nil
	}

	t.Run("zero limit rejected", func(t *testing.T) {
		t.Parallel()

		ta := newTestAdapter(t, false)

		_, err := ta.adapter.ExecuteMessages(executorAddr, 0)
		assert.ErrorIs(t, err, ErrInvalidExecutionLimit)
	})

	t.Run("empty queue", func(t *testing.T) {
		t.Parallel()

		ta := newTestAdapter(t, false)

		_, err := ta.adapter.ExecuteMessages(executorAddr, 10)
		assert.ErrorIs(t, err, ErrNoMessagesAvailable)
	})

	t.Run("caller requires executor role", func(t *testing.T) {
		t.Parallel()

		ta := newTestAdapter(t, false)
		queueMessages(t, ta, "m1")

		_, err := ta.adapter.ExecuteMessages(aliceAddr, 10)
		assert.ErrorIs(t, err, accessmgmt.ErrUnauthorized)
	})

	t.Run("drains in arrival order up to limit", func(t *testing.T) {
		t.Parallel()

		ta := newTestAdapter(t, false)
		queueMessages(t, ta, "m1", "m2", "m3")

		executed, err := ta.adapter.ExecuteMessages(executorAddr, 2)
		require.NoError(t, err)
		require.Len(t, executed, 2)
		assert.Equal(t, []byte("m1"), executed[0].Data)
		assert.Equal(t, []byte("m2"), executed[1].Data)

		count, err := ta.adapter.PendingMessageCount()
		require.NoError(t, err)
		assert.Equal(t, uint64(1), count)

		remaining, err := ta.adapter.GetPendingMessage(0)
		require.NoError(t, err)
		assert.Equal(t, []byte("m3"), remaining.Data)
	})

	t.Run("one failing message rolls back the batch", func(t *testing.T) {
		t.Parallel()

		ta := newTestAdapter(t, false)
		queueMessages(t, ta, "m1", "m2")
		ta.receiver.rejects = map[string]error{"m2": assert.AnError}

		_, err := ta.adapter.ExecuteMessages(executorAddr, 10)
		assert.ErrorIs(t, err, assert.AnError)

		// nothing left the queue, nothing reached the executed log
		count, err := ta.adapter.PendingMessageCount()
		require.NoError(t, err)
		assert.Equal(t, uint64(2), count)

		_, err = ta.adapter.GetExecutedMessage(0)
		assert.ErrorIs(t, err, store.ErrMessageNotFound)
	})
}
