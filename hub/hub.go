package hub

import (
	"errors"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/omniward/omniward/store"
	"github.com/omniward/omniward/types"
)

// ErrZeroAddress rejects registering the zero address as an app
var ErrZeroAddress = errors.New("app address cannot be the zero address")

// known app types, free form values are allowed for external integrations
const (
	AppTypeBridge  = "bridge"
	AppTypeAdapter = "adapter"
)

// Hub is the registry of integrations deployed around the bridge core. It
// assigns stable ids to app addresses so operator tooling can reference them
// without carrying raw addresses around.
type Hub struct {
	logger hclog.Logger
	store  *store.HubStore
}

func NewHub(logger hclog.Logger, hubStore *store.HubStore) *Hub {
	return &Hub{
		logger: logger.Named("hub"),
		store:  hubStore,
	}
}

// CreateApp registers the address under a fresh id, attributed to the caller.
// An address registers at most once, re-registering returns ErrAppExists.
func (h *Hub) CreateApp(caller types.Address, address types.Address, appType string) (*store.App, error) {
	if address == types.ZeroAddress {
		return nil, ErrZeroAddress
	}

	app := &store.App{
		ID:      uuid.NewString(),
		Address: address,
		Type:    appType,
	}

	if err := h.store.InsertApp(app, nil); err != nil {
		return nil, err
	}

	h.logger.Info("app registered",
		"id", app.ID, "address", address, "type", appType, "caller", caller)

	return app, nil
}

// Lookup returns the app registered under the given id
func (h *Hub) Lookup(id string) (*store.App, error) {
	return h.store.GetApp(id)
}

// Apps returns all registered apps
func (h *Hub) Apps() ([]*store.App, error) {
	return h.store.Apps()
}
