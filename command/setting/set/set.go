package set

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omniward/omniward/command"
	"github.com/omniward/omniward/command/helper"
)

var params struct {
	evmChainID    uint64
	routerChainID uint64
	adapter       string
	ramp          string
	enabled       bool
	gasLimit      uint64
}

func GetCommand() *cobra.Command {
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Creates or replaces the route entry for a remote chain and ramp direction",
		Args:  cobra.NoArgs,
		Run:   runCommand,
	}

	helper.RegisterAPIFlags(setCmd)

	setCmd.Flags().Uint64Var(&params.evmChainID, "chain", 0,
		"the EVM chain id of the remote chain")
	setCmd.Flags().Uint64Var(&params.routerChainID, "router-chain", 0,
		"the chain id the router transport knows the remote chain by")
	setCmd.Flags().StringVar(&params.adapter, "adapter", "",
		"the adapter address on the remote chain")
	setCmd.Flags().StringVar(&params.ramp, "ramp", "onramp",
		"the route direction, onramp or offramp")
	setCmd.Flags().BoolVar(&params.enabled, "enabled", true,
		"whether the route accepts transfers")
	setCmd.Flags().Uint64Var(&params.gasLimit, "gas-limit", 400000,
		"the execution gas limit carried with outbound messages")

	_ = setCmd.MarkFlagRequired("chain")
	_ = setCmd.MarkFlagRequired("router-chain")
	_ = setCmd.MarkFlagRequired("adapter")

	return setCmd
}

func runCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	body := map[string]interface{}{
		"evmChainId":    params.evmChainID,
		"routerChainId": params.routerChainID,
		"adapter":       params.adapter,
		"ramp":          params.ramp,
		"enabled":       params.enabled,
		"gasLimit":      params.gasLimit,
	}

	err := helper.APIPost(helper.GetAPIAddress(cmd), "/settings", helper.GetCaller(cmd), body, nil)
	if err != nil {
		outputter.SetError(err)

		return
	}

	outputter.SetCommandResult(&SetResult{
		EvmChainID: params.evmChainID,
		Ramp:       params.ramp,
		Enabled:    params.enabled,
	})
}

type SetResult struct {
	EvmChainID uint64 `json:"evmChainId"`
	Ramp       string `json:"ramp"`
	Enabled    bool   `json:"enabled"`
}

func (r *SetResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[CHAIN SETTING SET]\n")
	buffer.WriteString(helper.FormatKV([]string{
		fmt.Sprintf("Chain|%d", r.EvmChainID),
		fmt.Sprintf("Ramp|%s", r.Ramp),
		fmt.Sprintf("Enabled|%t", r.Enabled),
	}))

	return buffer.String()
}
