package hub

import (
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniward/omniward/store"
	"github.com/omniward/omniward/types"
)

var adminAddr = types.StringToAddress("0xad")

func newTestHub(t *testing.T) *Hub {
	t.Helper()

	state, err := store.NewState(filepath.Join(t.TempDir(), "omniward.db"), hclog.NewNullLogger())
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, state.Close())
	})

	return NewHub(hclog.NewNullLogger(), state.HubStore)
}

func TestHub_CreateApp(t *testing.T) {
	t.Parallel()

	h := newTestHub(t)

	_, err := h.CreateApp(adminAddr, types.ZeroAddress, AppTypeBridge)
	assert.ErrorIs(t, err, ErrZeroAddress)

	address := types.StringToAddress("0xb1")

	app, err := h.CreateApp(adminAddr, address, AppTypeBridge)
	require.NoError(t, err)
	assert.NotEmpty(t, app.ID)
	assert.Equal(t, address, app.Address)
	assert.Equal(t, AppTypeBridge, app.Type)

	// an address registers at most once, regardless of type
	_, err = h.CreateApp(adminAddr, address, AppTypeAdapter)
	assert.ErrorIs(t, err, store.ErrAppExists)
}

func TestHub_Lookup(t *testing.T) {
	t.Parallel()

	h := newTestHub(t)

	_, err := h.Lookup("unknown")
	assert.ErrorIs(t, err, store.ErrAppNotFound)

	app, err := h.CreateApp(adminAddr, types.StringToAddress("0xa1"), AppTypeAdapter)
	require.NoError(t, err)

	got, err := h.Lookup(app.ID)
	require.NoError(t, err)
	assert.Equal(t, app, got)
}

func TestHub_Apps(t *testing.T) {
	t.Parallel()

	h := newTestHub(t)

	apps, err := h.Apps()
	require.NoError(t, err)
	assert.Empty(t, apps)

	_, err = h.CreateApp(adminAddr, types.StringToAddress("0xb1"), AppTypeBridge)
	require.NoError(t, err)
	_, err = h.CreateApp(adminAddr, types.StringToAddress("0xa1"), AppTypeAdapter)
	require.NoError(t, err)

	apps, err = h.Apps()
	require.NoError(t, err)
	assert.Len(t, apps, 2)
}
