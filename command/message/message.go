package message

import (
	"github.com/spf13/cobra"

	"github.com/omniward/omniward/command/message/execute"
	"github.com/omniward/omniward/command/message/pending"
)

func GetCommand() *cobra.Command {
	messageCmd := &cobra.Command{
		Use:   "message",
		Short: "Top level command for inspecting and executing queued messages. Only accepts subcommands.",
	}

	messageCmd.AddCommand(
		pending.GetCommand(),
		execute.GetCommand(),
	)

	return messageCmd
}
