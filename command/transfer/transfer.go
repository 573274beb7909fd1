package transfer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omniward/omniward/command"
	"github.com/omniward/omniward/command/helper"
)

var params struct {
	toChainID  uint64
	collection string
	tokenID    uint64
	fee        string
}

func GetCommand() *cobra.Command {
	transferCmd := &cobra.Command{
		Use:   "transfer",
		Short: "Bridges a token to a remote chain",
		Args:  cobra.NoArgs,
		Run:   runCommand,
	}

	helper.RegisterAPIFlags(transferCmd)

	transferCmd.Flags().Uint64Var(&params.toChainID, "to-chain", 0,
		"the EVM chain id of the destination chain")
	transferCmd.Flags().StringVar(&params.collection, "collection", "",
		"the local collection address holding the token")
	transferCmd.Flags().Uint64Var(&params.tokenID, "token", 0,
		"the token id to bridge")
	transferCmd.Flags().StringVar(&params.fee, "fee", "0",
		"the native fee amount (ignored on fee token deployments)")

	_ = transferCmd.MarkFlagRequired("to-chain")
	_ = transferCmd.MarkFlagRequired("collection")
	_ = transferCmd.MarkFlagRequired("token")

	return transferCmd
}

func runCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	body := map[string]interface{}{
		"toChainId":  params.toChainID,
		"collection": params.collection,
		"tokenId":    params.tokenID,
		"fee":        params.fee,
	}

	var result TransferResult

	err := helper.APIPost(helper.GetAPIAddress(cmd), "/transfers",
		helper.GetCaller(cmd), body, &result)
	if err != nil {
		outputter.SetError(err)

		return
	}

	outputter.SetCommandResult(&result)
}

type TransferResult struct {
	ToChainID uint64      `json:"toChainId"`
	Adapter   string      `json:"adapter"`
	Fee       json.Number `json:"fee"`
}

func (r *TransferResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[TOKEN BRIDGED]\n")
	buffer.WriteString(helper.FormatKV([]string{
		fmt.Sprintf("Destination chain|%d", r.ToChainID),
		fmt.Sprintf("Remote adapter|%s", r.Adapter),
		fmt.Sprintf("Fee paid|%s", r.Fee),
	}))

	return buffer.String()
}
