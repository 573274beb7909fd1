package setting

import (
	"github.com/spf13/cobra"

	"github.com/omniward/omniward/command/setting/get"
	"github.com/omniward/omniward/command/setting/set"
)

func GetCommand() *cobra.Command {
	settingCmd := &cobra.Command{
		Use:   "setting",
		Short: "Top level command for managing bridge chain settings. Only accepts subcommands.",
	}

	settingCmd.AddCommand(
		set.GetCommand(),
		get.GetCommand(),
	)

	return settingCmd
}
