package role

import (
	"github.com/spf13/cobra"

	"github.com/omniward/omniward/command/role/bind"
	"github.com/omniward/omniward/command/role/grant"
	"github.com/omniward/omniward/command/role/revoke"
)

func GetCommand() *cobra.Command {
	roleCmd := &cobra.Command{
		Use:   "role",
		Short: "Top level command for managing roles and function bindings. Only accepts subcommands.",
	}

	roleCmd.AddCommand(
		grant.GetCommand(),
		revoke.GetCommand(),
		bind.GetCommand(),
	)

	return roleCmd
}
