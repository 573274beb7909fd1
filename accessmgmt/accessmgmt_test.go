package accessmgmt

import (
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniward/omniward/types"
)

var (
	admin    = types.StringToAddress("0xad")
	operator = types.StringToAddress("0x01")
	stranger = types.StringToAddress("0x02")
	target   = types.StringToAddress("0xb1")
)

const testRole = Role(5)

// testClock is a controllable time source
type testClock struct {
	current time.Time
}

func (c *testClock) now() time.Time {
	return c.current
}

func (c *testClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestManager(t *testing.T) (*Manager, *testClock) {
	t.Helper()

	clock := &testClock{current: time.Unix(1700000000, 0)}
	manager := NewManager(hclog.NewNullLogger(), admin, WithNowFunc(clock.now))

	return manager, clock
}

func TestManager_InitialAdmin(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)

	assert.True(t, manager.HasRole(admin, AdminRole))
	assert.False(t, manager.HasRole(stranger, AdminRole))
}

func TestManager_GrantWithDelay(t *testing.T) {
	t.Parallel()

	manager, clock := newTestManager(t)

	require.NoError(t, manager.GrantRole(admin, testRole, operator, time.Hour))

	// the grant exists but is not honored before the delay elapses
	assert.False(t, manager.HasRole(operator, testRole))

	clock.advance(30 * time.Minute)
	assert.False(t, manager.HasRole(operator, testRole))

	clock.advance(30 * time.Minute)
	assert.True(t, manager.HasRole(operator, testRole))
}

func TestManager_GrantRequiresAdmin(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)

	err := manager.GrantRole(stranger, testRole, operator, 0)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestManager_Revoke(t *testing.T) {
	t.Parallel()

	manager, clock := newTestManager(t)

	require.NoError(t, manager.GrantRole(admin, testRole, operator, 0))
	assert.True(t, manager.HasRole(operator, testRole))

	require.NoError(t, manager.RevokeRole(admin, testRole, operator))
	assert.False(t, manager.HasRole(operator, testRole))

	// a revoked grant never reactivates on its own
	clock.advance(1000 * time.Hour)
	assert.False(t, manager.HasRole(operator, testRole))

	// it can be granted again
	require.NoError(t, manager.GrantRole(admin, testRole, operator, 0))
	assert.True(t, manager.HasRole(operator, testRole))
}

func TestManager_RoleAdmin(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)

	const managedRole = Role(7)

	adminRole := Role(6)
	require.NoError(t, manager.GrantRole(admin, adminRole, operator, 0))
	require.NoError(t, manager.SetRoleAdmin(admin, managedRole, adminRole))

	// the dedicated admin can grant, the global admin no longer matters for it
	require.NoError(t, manager.GrantRole(operator, managedRole, stranger, 0))
	assert.True(t, manager.HasRole(stranger, managedRole))

	err := manager.SetRoleAdmin(operator, managedRole, AdminRole)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestManager_Check(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)

	t.Run("unbound function requires admin", func(t *testing.T) {
		assert.NoError(t, manager.Check(admin, target, FuncSetChainSetting))
		assert.ErrorIs(t, manager.Check(stranger, target, FuncSetChainSetting), ErrUnauthorized)
	})

	t.Run("bound function requires the bound role", func(t *testing.T) {
		require.NoError(t, manager.SetTargetFunctionRole(admin, target, FuncDeliverMessage, testRole))
		require.NoError(t, manager.GrantRole(admin, testRole, operator, 0))

		assert.NoError(t, manager.Check(operator, target, FuncDeliverMessage))
		assert.ErrorIs(t, manager.Check(stranger, target, FuncDeliverMessage), ErrUnauthorized)
	})

	t.Run("binding is per target", func(t *testing.T) {
		otherTarget := types.StringToAddress("0xb2")
		assert.ErrorIs(t, manager.Check(operator, otherTarget, FuncDeliverMessage), ErrUnauthorized)
	})

	t.Run("rebinding takes effect immediately", func(t *testing.T) {
		require.NoError(t, manager.SetTargetFunctionRole(admin, target, FuncDeliverMessage, Role(99)))
		assert.ErrorIs(t, manager.Check(operator, target, FuncDeliverMessage), ErrUnauthorized)
	})
}

func TestManager_SnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	var persisted []byte

	clock := &testClock{current: time.Unix(1700000000, 0)}
	manager := NewManager(hclog.NewNullLogger(), admin,
		WithNowFunc(clock.now),
		WithPersistence(func(raw []byte) error {
			persisted = raw

			return nil
		}))

	require.NoError(t, manager.GrantRole(admin, testRole, operator, time.Hour))
	require.NoError(t, manager.SetTargetFunctionRole(admin, target, FuncSendMessage, testRole))
	require.NotNil(t, persisted)

	restored := NewManager(hclog.NewNullLogger(), admin, WithNowFunc(clock.now))
	require.NoError(t, restored.Restore(persisted))

	// the pending delay survives the restart
	assert.False(t, restored.HasRole(operator, testRole))

	clock.advance(time.Hour)
	assert.True(t, restored.HasRole(operator, testRole))
	assert.NoError(t, restored.Check(operator, target, FuncSendMessage))
}
