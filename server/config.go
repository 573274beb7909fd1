package server

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl"
	"gopkg.in/yaml.v3"

	"github.com/omniward/omniward/types"
)

const (
	// DefaultAPIAddr is the operator API bind address
	DefaultAPIAddr = "127.0.0.1:9650"

	// DefaultAutomationInterval is the minimum spacing between automation
	// runs on a fresh install
	DefaultAutomationInterval = 30 * time.Second

	// DefaultExecutionLimit is how many queued messages an automation run
	// drains on a fresh install
	DefaultExecutionLimit uint64 = 10

	// DefaultLoopbackFee is the flat fee quoted by the in-process transport
	DefaultLoopbackFee = 200000
)

// Config defines the server configuration params
type Config struct {
	ChainID       uint64 `json:"chain_id" yaml:"chain_id"`
	RouterChainID uint64 `json:"router_chain_id" yaml:"router_chain_id"`
	DataDir       string `json:"data_dir" yaml:"data_dir"`

	// component identities, every privileged call is attributed to one of them
	Admin          types.Address `json:"admin" yaml:"admin"`
	BridgeAddress  types.Address `json:"bridge_addr" yaml:"bridge_addr"`
	AdapterAddress types.Address `json:"adapter_addr" yaml:"adapter_addr"`
	RouterAddress  types.Address `json:"router_addr" yaml:"router_addr"`

	// RouterURL points at the external router service. Empty selects the
	// in-process loopback transport.
	RouterURL string `json:"router_url" yaml:"router_url"`

	// FeeTokenEnabled selects the fee token entry points over native fees
	FeeTokenEnabled bool `json:"fee_token" yaml:"fee_token"`

	// FeeGrants seeds fee token balances on first start
	FeeGrants []FeeGrant `json:"fee_grants" yaml:"fee_grants"`

	APIAddr   string     `json:"api_addr" yaml:"api_addr"`
	Telemetry *Telemetry `json:"telemetry" yaml:"telemetry"`

	AutomationInterval time.Duration `json:"automation_interval" yaml:"automation_interval"`
	ExecutionLimit     uint64        `json:"execution_limit" yaml:"execution_limit"`

	LogLevel      string `json:"log_level" yaml:"log_level"`
	JSONLogFormat bool   `json:"json_log_format" yaml:"json_log_format"`
	LogFilePath   string `json:"log_to" yaml:"log_to"`
}

// Telemetry holds the config details for metric services
type Telemetry struct {
	PrometheusAddr string `json:"prometheus_addr" yaml:"prometheus_addr"`
}

// FeeGrant seeds a fee token balance for an account
type FeeGrant struct {
	Address types.Address `json:"address" yaml:"address"`
	Amount  string        `json:"amount" yaml:"amount"`
}

// ParseAmount returns the grant amount as an integer
func (f *FeeGrant) ParseAmount() (*big.Int, error) {
	amount, ok := new(big.Int).SetString(f.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("malformed fee grant amount %q for %s", f.Amount, f.Address)
	}

	return amount, nil
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	return &Config{
		ChainID:            1,
		RouterChainID:      1,
		DataDir:            "./omniward-data",
		APIAddr:            DefaultAPIAddr,
		Telemetry:          &Telemetry{},
		AutomationInterval: DefaultAutomationInterval,
		ExecutionLimit:     DefaultExecutionLimit,
		LogLevel:           "INFO",
	}
}

// ReadConfigFile reads the config file from the specified path, builds a
// Config object and returns it.
//
// Supported file types: .json, .hcl, .yaml, .yml
func ReadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var unmarshalFunc func([]byte, interface{}) error

	switch {
	case strings.HasSuffix(path, ".hcl"):
		unmarshalFunc = hcl.Unmarshal
	case strings.HasSuffix(path, ".json"):
		unmarshalFunc = json.Unmarshal
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		unmarshalFunc = yaml.Unmarshal
	default:
		return nil, fmt.Errorf("suffix of %s is neither hcl, json, yaml nor yml", path)
	}

	config := DefaultConfig()
	if err := unmarshalFunc(data, config); err != nil {
		return nil, err
	}

	return config, nil
}
