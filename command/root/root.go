package root

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/omniward/omniward/command"
	"github.com/omniward/omniward/command/app"
	"github.com/omniward/omniward/command/automation"
	"github.com/omniward/omniward/command/message"
	"github.com/omniward/omniward/command/role"
	"github.com/omniward/omniward/command/server"
	"github.com/omniward/omniward/command/setting"
	"github.com/omniward/omniward/command/status"
	"github.com/omniward/omniward/command/transfer"
	"github.com/omniward/omniward/command/version"
)

type RootCommand struct {
	baseCmd *cobra.Command
}

func NewRootCommand() *RootCommand {
	rootCommand := &RootCommand{
		baseCmd: &cobra.Command{
			Short: "Omniward is a cross-chain NFT bridge coordinator",
		},
	}

	command.RegisterJSONOutputFlag(rootCommand.baseCmd)

	rootCommand.registerSubCommands()

	return rootCommand
}

func (rc *RootCommand) registerSubCommands() {
	rc.baseCmd.AddCommand(
		version.GetCommand(),
		server.GetCommand(),
		status.GetCommand(),
		setting.GetCommand(),
		role.GetCommand(),
		message.GetCommand(),
		automation.GetCommand(),
		transfer.GetCommand(),
		app.GetCommand(),
	)
}

func (rc *RootCommand) Execute() {
	if err := rc.baseCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)

		os.Exit(1)
	}
}
