package server

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/omniward/omniward/accessmgmt"
	"github.com/omniward/omniward/adapter"
	"github.com/omniward/omniward/bridge"
	"github.com/omniward/omniward/helper/common"
	"github.com/omniward/omniward/hub"
	"github.com/omniward/omniward/router"
	"github.com/omniward/omniward/store"
	"github.com/omniward/omniward/types"
	"github.com/omniward/omniward/vault"
)

// well known roles wired at bootstrap. Further roles are created freely
// through the operator API.
const (
	RouterRole   accessmgmt.Role = 1
	BridgeRole   accessmgmt.Role = 2
	AdapterRole  accessmgmt.Role = 3
	ExecutorRole accessmgmt.Role = 4
)

var dirPaths = []string{"store"}

// Server is the central manager of the bridge node. It wires the persistent
// state, the access manager, the vault, the bridge core, the adapter and the
// transport together and owns their lifecycle.
type Server struct {
	logger hclog.Logger
	config *Config

	state  *store.State
	access *accessmgmt.Manager
	vault  *vault.Vault
	bridge *bridge.Bridge
	adp    *adapter.Adapter
	hub    *hub.Hub

	transport router.Router
	loopback  *router.LoopbackRouter

	apiServer        *http.Server
	prometheusServer *http.Server
}

// deliveryProxy lets the transport be dialed before the adapter exists
type deliveryProxy struct {
	target router.Handler
}

func (d *deliveryProxy) DeliverMessage(delivery *router.Delivery) error {
	if d.target == nil {
		return errors.New("delivery handler not bound")
	}

	return d.target.DeliverMessage(delivery)
}

// NewServer creates and starts a new bridge node instance
func NewServer(config *Config) (*Server, error) {
	logger, err := newLoggerFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("could not setup new logger instance, %w", err)
	}

	s := &Server{
		logger: logger.Named("server"),
		config: config,
	}

	if err := s.setupTelemetry(); err != nil {
		return nil, err
	}

	if err := common.SetupDataDir(config.DataDir, dirPaths, 0770); err != nil {
		return nil, fmt.Errorf("failed to create data directories: %w", err)
	}

	state, err := store.NewState(filepath.Join(config.DataDir, "store", "omniward.db"), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	s.state = state

	snapshot, err := state.AccessStore.LoadSnapshot()
	if err != nil {
		return nil, err
	}

	s.access = accessmgmt.NewManager(logger, config.Admin,
		accessmgmt.WithPersistence(func(raw []byte) error {
			return state.AccessStore.SaveSnapshot(raw, nil)
		}))

	firstStart := snapshot == nil
	if !firstStart {
		if err := s.access.Restore(snapshot); err != nil {
			return nil, err
		}
	}

	s.vault = vault.NewVault(logger, state.VaultStore, config.BridgeAddress)
	s.vault.Authorize(config.BridgeAddress)
	s.vault.Authorize(config.AdapterAddress)

	proxy := &deliveryProxy{}

	if config.RouterURL != "" {
		transport, err := router.NewWSRouter(logger, config.RouterURL, config.RouterChainID, proxy)
		if err != nil {
			return nil, err
		}

		s.transport = transport
	} else {
		s.loopback = router.NewLoopbackRouter(logger, big.NewInt(DefaultLoopbackFee))
		s.transport = s.loopback.Endpoint(config.RouterChainID)
	}

	adp, err := adapter.NewAdapter(logger, state, s.access, s.vault, s.transport, &adapter.Config{
		Address:         config.AdapterAddress,
		Router:          config.RouterAddress,
		FeeTokenEnabled: config.FeeTokenEnabled,
	})
	if err != nil {
		return nil, err
	}

	s.adp = adp

	s.bridge = bridge.NewBridge(logger, state, s.access, s.vault, &bridge.Config{
		ChainID: config.ChainID,
		Address: config.BridgeAddress,
	})

	s.bridge.SetMessageSender(adp)
	adp.SetReceiver(s.bridge)
	proxy.target = adp

	if s.loopback != nil {
		s.loopback.Register(config.RouterChainID, config.AdapterAddress, adp)
	}

	s.hub = hub.NewHub(logger, state.HubStore)

	if firstStart {
		if err := s.bootstrap(); err != nil {
			return nil, err
		}
	}

	adp.StartAutomation()

	if err := s.setupAPI(); err != nil {
		return nil, err
	}

	if config.Telemetry != nil && config.Telemetry.PrometheusAddr != "" {
		s.prometheusServer = s.startPrometheusServer(config.Telemetry.PrometheusAddr)
	}

	s.logger.Info("bridge node started",
		"chain", config.ChainID,
		"routerChain", config.RouterChainID,
		"feeToken", config.FeeTokenEnabled,
		"dataDir", config.DataDir)

	return s, nil
}

// bootstrap seeds roles, function bindings, hub entries and fee balances on
// the very first start. Later starts restore all of it from the state store.
func (s *Server) bootstrap() error {
	admin := s.config.Admin

	grants := []struct {
		role    accessmgmt.Role
		account types.Address
	}{
		{RouterRole, s.config.RouterAddress},
		{BridgeRole, s.config.BridgeAddress},
		{AdapterRole, s.config.AdapterAddress},
		{ExecutorRole, admin},
	}

	for _, grant := range grants {
		if err := s.access.GrantRole(admin, grant.role, grant.account, 0); err != nil {
			return err
		}
	}

	bindings := []struct {
		target types.Address
		fn     accessmgmt.FuncID
		role   accessmgmt.Role
	}{
		{s.config.AdapterAddress, accessmgmt.FuncDeliverMessage, RouterRole},
		{s.config.AdapterAddress, accessmgmt.FuncSendMessage, BridgeRole},
		{s.config.AdapterAddress, accessmgmt.FuncExecuteMessages, ExecutorRole},
		{s.config.BridgeAddress, accessmgmt.FuncReceiveERC721, AdapterRole},
	}

	for _, binding := range bindings {
		if err := s.access.SetTargetFunctionRole(admin, binding.target, binding.fn, binding.role); err != nil {
			return err
		}
	}

	if _, err := s.hub.CreateApp(admin, s.config.BridgeAddress, hub.AppTypeBridge); err != nil {
		return err
	}

	if _, err := s.hub.CreateApp(admin, s.config.AdapterAddress, hub.AppTypeAdapter); err != nil {
		return err
	}

	for _, grant := range s.config.FeeGrants {
		amount, err := grant.ParseAmount()
		if err != nil {
			return err
		}

		if err := s.vault.CreditFee(s.config.BridgeAddress, grant.Address, amount, nil); err != nil {
			return err
		}
	}

	interval := s.config.AutomationInterval
	if interval == 0 {
		interval = DefaultAutomationInterval
	}

	limit := s.config.ExecutionLimit
	if limit == 0 {
		limit = DefaultExecutionLimit
	}

	return s.state.AdapterStore.SetAutomationState(&store.AutomationState{
		UpdateInterval:        int64(interval.Seconds()),
		DefaultExecutionLimit: limit,
	}, nil)
}

// Bridge returns the bridge core
func (s *Server) Bridge() *bridge.Bridge {
	return s.bridge
}

// Adapter returns the transport adapter
func (s *Server) Adapter() *adapter.Adapter {
	return s.adp
}

// Hub returns the app registry
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// Loopback returns the in-process transport, or nil when an external router
// service is configured
func (s *Server) Loopback() *router.LoopbackRouter {
	return s.loopback
}

// Close stops the node and releases all held resources
func (s *Server) Close() error {
	var result error

	if s.apiServer != nil {
		if err := s.apiServer.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if s.prometheusServer != nil {
		if err := s.prometheusServer.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	s.adp.Close()

	if err := s.transport.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	if err := s.state.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	s.logger.Info("bridge node stopped")

	return result
}

// newLoggerFromConfig creates the root logger, writing either to standard out
// or to the configured log file
func newLoggerFromConfig(config *Config) (hclog.Logger, error) {
	logLevel := hclog.LevelFromString(config.LogLevel)

	if config.LogFilePath != "" {
		logFileWriter, err := os.Create(config.LogFilePath)
		if err != nil {
			return nil, fmt.Errorf("could not create log file, %w", err)
		}

		return hclog.New(&hclog.LoggerOptions{
			Name:       "omniward",
			Level:      logLevel,
			Output:     logFileWriter,
			JSONFormat: config.JSONLogFormat,
		}), nil
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       "omniward",
		Level:      logLevel,
		JSONFormat: config.JSONLogFormat,
	}), nil
}

// helper for API handlers that resolve durations from seconds
func secondsToDuration(seconds int64) time.Duration {
	return time.Duration(seconds) * time.Second
}
