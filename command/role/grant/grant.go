package grant

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omniward/omniward/command"
	"github.com/omniward/omniward/command/helper"
)

var params struct {
	role         uint64
	account      string
	delaySeconds int64
}

func GetCommand() *cobra.Command {
	grantCmd := &cobra.Command{
		Use:   "grant",
		Short: "Grants a role to an account, honored after the optional activation delay",
		Args:  cobra.NoArgs,
		Run:   runCommand,
	}

	helper.RegisterAPIFlags(grantCmd)

	grantCmd.Flags().Uint64Var(&params.role, "role", 0,
		"the numeric role id to grant")
	grantCmd.Flags().StringVar(&params.account, "account", "",
		"the account address receiving the role")
	grantCmd.Flags().Int64Var(&params.delaySeconds, "delay", 0,
		"seconds until the grant becomes honored")

	_ = grantCmd.MarkFlagRequired("account")

	return grantCmd
}

func runCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	body := map[string]interface{}{
		"role":         params.role,
		"account":      params.account,
		"delaySeconds": params.delaySeconds,
	}

	err := helper.APIPost(helper.GetAPIAddress(cmd), "/roles/grant", helper.GetCaller(cmd), body, nil)
	if err != nil {
		outputter.SetError(err)

		return
	}

	outputter.SetCommandResult(&GrantResult{
		Role:         params.role,
		Account:      params.account,
		DelaySeconds: params.delaySeconds,
	})
}

type GrantResult struct {
	Role         uint64 `json:"role"`
	Account      string `json:"account"`
	DelaySeconds int64  `json:"delaySeconds"`
}

func (r *GrantResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[ROLE GRANTED]\n")
	buffer.WriteString(helper.FormatKV([]string{
		fmt.Sprintf("Role|%d", r.Role),
		fmt.Sprintf("Account|%s", r.Account),
		fmt.Sprintf("Activation delay (s)|%d", r.DelaySeconds),
	}))

	return buffer.String()
}
