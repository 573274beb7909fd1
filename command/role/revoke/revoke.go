package revoke

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omniward/omniward/command"
	"github.com/omniward/omniward/command/helper"
)

var params struct {
	role    uint64
	account string
}

func GetCommand() *cobra.Command {
	revokeCmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revokes a role from an account",
		Args:  cobra.NoArgs,
		Run:   runCommand,
	}

	helper.RegisterAPIFlags(revokeCmd)

	revokeCmd.Flags().Uint64Var(&params.role, "role", 0,
		"the numeric role id to revoke")
	revokeCmd.Flags().StringVar(&params.account, "account", "",
		"the account address losing the role")

	_ = revokeCmd.MarkFlagRequired("account")

	return revokeCmd
}

func runCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	body := map[string]interface{}{
		"role":    params.role,
		"account": params.account,
	}

	err := helper.APIPost(helper.GetAPIAddress(cmd), "/roles/revoke", helper.GetCaller(cmd), body, nil)
	if err != nil {
		outputter.SetError(err)

		return
	}

	outputter.SetCommandResult(&RevokeResult{
		Role:    params.role,
		Account: params.account,
	})
}

type RevokeResult struct {
	Role    uint64 `json:"role"`
	Account string `json:"account"`
}

func (r *RevokeResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[ROLE REVOKED]\n")
	buffer.WriteString(helper.FormatKV([]string{
		fmt.Sprintf("Role|%d", r.Role),
		fmt.Sprintf("Account|%s", r.Account),
	}))

	return buffer.String()
}
