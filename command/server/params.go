package server

import (
	"errors"
	"time"

	"github.com/omniward/omniward/server"
	"github.com/omniward/omniward/types"
)

const (
	configFlag        = "config"
	dataDirFlag       = "data-dir"
	chainIDFlag       = "chain-id"
	routerChainIDFlag = "router-chain-id"
	routerURLFlag     = "router-url"
	adminFlag         = "admin"
	feeTokenFlag      = "fee-token"
	apiAddrFlag       = "api"
	prometheusFlag    = "prometheus"
	logLevelFlag      = "log-level"
	jsonLogFlag       = "json-log"
	logToFlag         = "log-to"
)

var errInvalidAdmin = errors.New("admin address is required and cannot be the zero address")

type serverParams struct {
	configPath string

	dataDir       string
	chainID       uint64
	routerChainID uint64
	routerURL     string
	rawAdmin      string
	feeToken      bool
	apiAddr       string
	prometheus    string
	logLevel      string
	jsonLog       bool
	logTo         string

	config *server.Config
}

// buildConfig layers the command flags over the optional config file and the
// defaults. Flags that were explicitly set win.
func (p *serverParams) buildConfig(changed func(name string) bool) error {
	config := server.DefaultConfig()

	if p.configPath != "" {
		fileConfig, err := server.ReadConfigFile(p.configPath)
		if err != nil {
			return err
		}

		config = fileConfig
	}

	if changed(dataDirFlag) {
		config.DataDir = p.dataDir
	}

	if changed(chainIDFlag) {
		config.ChainID = p.chainID
	}

	if changed(routerChainIDFlag) {
		config.RouterChainID = p.routerChainID
	}

	if changed(routerURLFlag) {
		config.RouterURL = p.routerURL
	}

	if changed(feeTokenFlag) {
		config.FeeTokenEnabled = p.feeToken
	}

	if changed(apiAddrFlag) {
		config.APIAddr = p.apiAddr
	}

	if changed(prometheusFlag) {
		if config.Telemetry == nil {
			config.Telemetry = &server.Telemetry{}
		}

		config.Telemetry.PrometheusAddr = p.prometheus
	}

	if changed(logLevelFlag) {
		config.LogLevel = p.logLevel
	}

	if changed(jsonLogFlag) {
		config.JSONLogFormat = p.jsonLog
	}

	if changed(logToFlag) {
		config.LogFilePath = p.logTo
	}

	if p.rawAdmin != "" {
		var admin types.Address
		if err := admin.UnmarshalText([]byte(p.rawAdmin)); err != nil {
			return err
		}

		config.Admin = admin
	}

	if config.Admin == types.ZeroAddress {
		return errInvalidAdmin
	}

	// component identities default to derived placeholder addresses when the
	// config does not pin them
	if config.BridgeAddress == types.ZeroAddress {
		config.BridgeAddress = types.StringToAddress("0x0b1")
	}

	if config.AdapterAddress == types.ZeroAddress {
		config.AdapterAddress = types.StringToAddress("0x0a1")
	}

	if config.RouterAddress == types.ZeroAddress {
		config.RouterAddress = types.StringToAddress("0x0f1")
	}

	if config.AutomationInterval == 0 {
		config.AutomationInterval = 30 * time.Second
	}

	p.config = config

	return nil
}
