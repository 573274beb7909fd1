package adapter

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniward/omniward/accessmgmt"
	"github.com/omniward/omniward/bridge"
	"github.com/omniward/omniward/router"
	"github.com/omniward/omniward/store"
	"github.com/omniward/omniward/types"
	"github.com/omniward/omniward/vault"
)

// chainStack is a full bridge deployment for one chain, wired to a shared
// loopback transport
type chainStack struct {
	chainID       uint64
	routerChainID uint64

	bridge *bridge.Bridge
	vault  *vault.Vault
}

func newChainStack(t *testing.T, lb *router.LoopbackRouter,
	chainID uint64, routerChainID uint64) *chainStack {
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
		adminAddr, bridgeAddr, accessmgmt.FuncReceiveERC721, accessmgmt.Role(3)))
	require.NoError(t, access.GrantRole(adminAddr, accessmgmt.Role(3), adapterAddr, 0))

	vlt := vault.NewVault(logger, state.VaultStore, bridgeAddr)
	vlt.Authorize(bridgeAddr)
	vlt.Authorize(adapterAddr)

	adp, err := NewAdapter(logger, state, access, vlt, lb.Endpoint(routerChainID), &Config{
		Address: adapterAddr,
		Router:  routerAddr,
	})
	require.NoError(t, err)
	t.Cleanup(adp.Close)

	brd := bridge.NewBridge(logger, state, access, vlt, &bridge.Config{
		ChainID: chainID,
		Address: bridgeAddr,
	})

	brd.SetMessageSender(adp)
	adp.SetReceiver(brd)
	lb.Register(routerChainID, adapterAddr, adp)

	return &chainStack{
		chainID:       chainID,
		routerChainID: routerChainID,
		bridge:        brd,
		vault:         vlt,
	}
}

// connect installs enabled routes in both directions on the stack
func (cs *chainStack) connect(t *testing.T, remote *chainStack) {
	t.Helper()

	for _, ramp := range []store.RampType{store.OnRamp, store.OffRamp} {
		require.NoError(t, cs.bridge.SetChainSetting(adminAddr, &store.ChainSetting{
			EvmChainID:    remote.chainID,
			RouterChainID: remote.routerChainID,
			Adapter:       adapterAddr,
			Ramp:          ramp,
			Enabled:       true,
			GasLimit:      300000,
		}))
	}
}

// TestRoundTripOverLoopback runs a native token out to a second chain and
// back through two fully wired stacks sharing one loopback transport.
func TestRoundTripOverLoopback(t *testing.T) {
	t.Parallel()

	lb := router.NewLoopbackRouter(hclog.NewNullLogger(), big.NewInt(200000))

	home := newChainStack(t, lb, 137, 5009297550715157269)
	away := newChainStack(t, lb, 101, 17903499551081073795)
	home.connect(t, away)
	away.connect(t, home)

	apes := types.StringToAddress("0xc1")
	alice := types.StringToAddress("0x11")

	require.NoError(t, home.vault.CreateCollection(
		bridgeAddr, apes, "Galactic Apes", "GAPE", nil))
	require.NoError(t, home.vault.Mint(bridgeAddr, apes, 1, alice, "ipfs://gape/1", nil))

	// outbound leg, the delivery executes synchronously on the away stack
	result, err := home.bridge.SendERC721(alice, away.chainID, apes, 1, big.NewInt(200000))
	require.NoError(t, err)
	assert.Equal(t, home.chainID, result.Payload.OriginChainID)

	owner, err := home.vault.OwnerOf(apes, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, bridgeAddr, owner, "canonical token held in custody")

	wrapped := bridge.WrappedAddress(home.chainID, apes)

	owner, err = away.vault.OwnerOf(wrapped, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, alice, owner, "wrapped token minted to the sender")

	coll, err := away.vault.GetCollection(wrapped, nil)
	require.NoError(t, err)
	assert.Equal(t, "Wrapped Galactic Apes", coll.Name)

	// return leg, the wrapper burns and the canonical token is released
	_, err = away.bridge.SendERC721(alice, home.chainID, wrapped, 1, big.NewInt(200000))
	require.NoError(t, err)

	_, err = away.vault.OwnerOf(wrapped, 1, nil)
	assert.ErrorIs(t, err, store.ErrTokenNotFound)

	owner, err = home.vault.OwnerOf(apes, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, alice, owner, "canonical token released to the owner")
}
