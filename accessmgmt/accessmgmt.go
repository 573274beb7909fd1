package accessmgmt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"

	"github.com/omniward/omniward/types"
)

// Role is a numeric role identifier. Role ids are created implicitly by the
// first grant and are never deleted.
type Role uint64

// AdminRole administers every role that was not assigned a dedicated admin
// role, and is the fallback requirement for unbound privileged functions.
const AdminRole Role = 0

// neverActive marks a revoked grant. The grant entry is kept so that the
// revocation itself stays auditable.
const neverActive = int64(math.MaxInt64)

var (
	// ErrUnauthorized is returned when the caller misses an honored grant for the required role
	ErrUnauthorized = errors.New("unauthorized caller")
)

type bindingKey struct {
	target types.Address
	fn     FuncID
}

// Manager is the role registry consulted on every privileged cross component
// call. Reads run against in-memory maps guarded by a read lock; mutations are
// rare operator actions and additionally persist a snapshot through the
// configured persistence hook.
type Manager struct {
	logger hclog.Logger

	lock     sync.RWMutex
	grants   map[Role]map[types.Address]int64
	admins   map[Role]Role
	bindings map[bindingKey]Role

	now     func() time.Time
	persist func(raw []byte) error
}

// Option configures a Manager on construction
type Option func(*Manager)

// WithPersistence installs the snapshot hook invoked after every mutation
func WithPersistence(persist func(raw []byte) error) Option {
	return func(m *Manager) {
		m.persist = persist
	}
}

// WithNowFunc overrides the time source
func WithNowFunc(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a role registry with the given account as the initial
// admin role holder, active immediately
func NewManager(logger hclog.Logger, initialAdmin types.Address, opts ...Option) *Manager {
	m := &Manager{
		logger:   logger.Named("accessmgmt"),
		grants:   map[Role]map[types.Address]int64{},
		admins:   map[Role]Role{},
		bindings: map[bindingKey]Role{},
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.grants[AdminRole] = map[types.Address]int64{initialAdmin: 0}

	return m
}

// snapshot is the persisted wire form of the manager state
type snapshot struct {
	Grants   map[Role]map[types.Address]int64 `json:"grants"`
	Admins   map[Role]Role                    `json:"admins"`
	Bindings []bindingEntry                   `json:"bindings"`
}

type bindingEntry struct {
	Target types.Address `json:"target"`
	Fn     FuncID        `json:"fn"`
	Role   Role          `json:"role"`
}

// Restore replaces the in-memory state with a previously persisted snapshot
func (m *Manager) Restore(raw []byte) error {
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("failed to restore access snapshot: %w", err)
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	m.grants = snap.Grants
	m.admins = snap.Admins
	m.bindings = map[bindingKey]Role{}

	for _, entry := range snap.Bindings {
		m.bindings[bindingKey{target: entry.Target, fn: entry.Fn}] = entry.Role
	}

	return nil
}

// persistLocked writes the snapshot through the hook. Callers hold the write lock.
func (m *Manager) persistLocked() error {
	if m.persist == nil {
		return nil
	}

	snap := snapshot{
		Grants:   m.grants,
		Admins:   m.admins,
		Bindings: make([]bindingEntry, 0, len(m.bindings)),
	}

	for key, role := range m.bindings {
		snap.Bindings = append(snap.Bindings, bindingEntry{Target: key.target, Fn: key.fn, Role: role})
	}

	raw, err := json.Marshal(&snap)
	if err != nil {
		return err
	}

	return m.persist(raw)
}

// holdsRoleLocked reports whether the account has an honored grant for the role.
// Callers hold at least the read lock.
func (m *Manager) holdsRoleLocked(account types.Address, role Role) bool {
	accounts, ok := m.grants[role]
	if !ok {
		return false
	}

	effectiveFrom, ok := accounts[account]
	if !ok {
		return false
	}

	return m.now().Unix() >= effectiveFrom
}

// HasRole reports whether the account currently holds an honored grant for the role
func (m *Manager) HasRole(account types.Address, role Role) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return m.holdsRoleLocked(account, role)
}

// adminOfLocked returns the role administering the given role
func (m *Manager) adminOfLocked(role Role) Role {
	if admin, ok := m.admins[role]; ok {
		return admin
	}

	return AdminRole
}

// GrantRole records a grant of role to account that becomes honored once the
// delay elapses. Only holders of the role's admin role may grant.
func (m *Manager) GrantRole(caller types.Address, role Role, account types.Address, delay time.Duration) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.holdsRoleLocked(caller, m.adminOfLocked(role)) {
		return fmt.Errorf("%w: %s cannot grant role %d", ErrUnauthorized, caller, role)
	}

	effectiveFrom := m.now().Add(delay).Unix()

	accounts, ok := m.grants[role]
	if !ok {
		accounts = map[types.Address]int64{}
		m.grants[role] = accounts
	}

	previous, existed := accounts[account]
	accounts[account] = effectiveFrom

	m.logger.Info("role granted",
		"role", role, "account", account, "effectiveFrom", effectiveFrom,
		"previous", previous, "overwrite", existed)
	metrics.IncrCounter([]string{"accessmgmt", "grants"}, 1)

	return m.persistLocked()
}

// RevokeRole resets the grant so that it is never honored again. The entry
// itself is kept, roles are revoked, not deleted.
func (m *Manager) RevokeRole(caller types.Address, role Role, account types.Address) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.holdsRoleLocked(caller, m.adminOfLocked(role)) {
		return fmt.Errorf("%w: %s cannot revoke role %d", ErrUnauthorized, caller, role)
	}

	accounts, ok := m.grants[role]
	if !ok {
		accounts = map[types.Address]int64{}
		m.grants[role] = accounts
	}

	previous := accounts[account]
	accounts[account] = neverActive

	m.logger.Info("role revoked", "role", role, "account", account, "previous", previous)

	return m.persistLocked()
}

// SetRoleAdmin assigns the role that administers grants of the given role.
// Admin role holders only.
func (m *Manager) SetRoleAdmin(caller types.Address, role Role, adminRole Role) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.holdsRoleLocked(caller, AdminRole) {
		return fmt.Errorf("%w: %s cannot administer role %d", ErrUnauthorized, caller, role)
	}

	previous := m.adminOfLocked(role)
	m.admins[role] = adminRole

	m.logger.Info("role admin set", "role", role, "admin", adminRole, "previous", previous)

	return m.persistLocked()
}

// SetTargetFunctionRole binds the required role for a privileged entry point.
// Idempotent, the last write wins. Admin role holders only.
func (m *Manager) SetTargetFunctionRole(caller types.Address, target types.Address, fn FuncID, role Role) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.holdsRoleLocked(caller, AdminRole) {
		return fmt.Errorf("%w: %s cannot bind function roles", ErrUnauthorized, caller)
	}

	key := bindingKey{target: target, fn: fn}
	previous, existed := m.bindings[key]
	m.bindings[key] = role

	m.logger.Info("function role bound",
		"target", target, "function", fn, "role", role,
		"previous", previous, "overwrite", existed)

	return m.persistLocked()
}

// Check reports whether the caller may invoke the given privileged function on
// the target component. An unbound function requires the admin role, unknown
// entry points fail closed. Check never mutates state.
func (m *Manager) Check(caller types.Address, target types.Address, fn FuncID) error {
	m.lock.RLock()
	defer m.lock.RUnlock()

	required, bound := m.bindings[bindingKey{target: target, fn: fn}]
	if !bound {
		required = AdminRole
	}

	if !m.holdsRoleLocked(caller, required) {
		metrics.IncrCounter([]string{"accessmgmt", "denied"}, 1)

		return fmt.Errorf("%w: %s requires role %d for %s on %s",
			ErrUnauthorized, caller, required, fn, target)
	}

	return nil
}
