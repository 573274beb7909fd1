package get

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omniward/omniward/command"
	"github.com/omniward/omniward/command/helper"
	"github.com/omniward/omniward/store"
)

var params struct {
	chain uint64
	ramp  string
}

func GetCommand() *cobra.Command {
	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Returns route entries, either all of them or a single (chain, ramp) entry",
		Args:  cobra.NoArgs,
		Run:   runCommand,
	}

	helper.RegisterAPIFlags(getCmd)

	getCmd.Flags().Uint64Var(&params.chain, "chain", 0,
		"the EVM chain id of the remote chain (omit to list every entry)")
	getCmd.Flags().StringVar(&params.ramp, "ramp", "onramp",
		"the route direction, onramp or offramp")

	return getCmd
}

func runCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	api := helper.GetAPIAddress(cmd)
	caller := helper.GetCaller(cmd)

	if cmd.Flags().Changed("chain") {
		var setting store.ChainSetting

		path := fmt.Sprintf("/settings?chain=%d&ramp=%s", params.chain, params.ramp)
		if err := helper.APIGet(api, path, caller, &setting); err != nil {
			outputter.SetError(err)

			return
		}

		outputter.SetCommandResult(&GetResult{Settings: []*store.ChainSetting{&setting}})

		return
	}

	var settings []*store.ChainSetting
	if err := helper.APIGet(api, "/settings", caller, &settings); err != nil {
		outputter.SetError(err)

		return
	}

	outputter.SetCommandResult(&GetResult{Settings: settings})
}

type GetResult struct {
	Settings []*store.ChainSetting `json:"settings"`
}

func (r *GetResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[CHAIN SETTINGS]\n")

	rows := make([]string, 0, len(r.Settings)+1)
	rows = append(rows, "CHAIN|ROUTER CHAIN|RAMP|ADAPTER|ENABLED|GAS LIMIT")

	for _, setting := range r.Settings {
		rows = append(rows, fmt.Sprintf("%d|%d|%s|%s|%t|%d",
			setting.EvmChainID,
			setting.RouterChainID,
			setting.Ramp,
			setting.Adapter,
			setting.Enabled,
			setting.GasLimit,
		))
	}

	buffer.WriteString(helper.FormatList(rows))

	return buffer.String()
}
