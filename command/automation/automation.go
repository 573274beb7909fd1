package automation

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omniward/omniward/command"
	"github.com/omniward/omniward/command/helper"
	"github.com/omniward/omniward/store"
)

var params struct {
	interval int64
	limit    uint64
}

func GetCommand() *cobra.Command {
	automationCmd := &cobra.Command{
		Use:   "automation",
		Short: "Shows or tunes the automated queue drain",
		Args:  cobra.NoArgs,
		Run:   runCommand,
	}

	helper.RegisterAPIFlags(automationCmd)

	automationCmd.Flags().Int64Var(&params.interval, "interval", 0,
		"set the minimum spacing between automation runs, in seconds")
	automationCmd.Flags().Uint64Var(&params.limit, "limit", 0,
		"set how many messages an automation run drains")

	return automationCmd
}

func runCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	api := helper.GetAPIAddress(cmd)
	caller := helper.GetCaller(cmd)

	if cmd.Flags().Changed("interval") {
		body := map[string]interface{}{"seconds": params.interval}
		if err := helper.APIPost(api, "/automation/interval", caller, body, nil); err != nil {
			outputter.SetError(err)

			return
		}
	}

	if cmd.Flags().Changed("limit") {
		body := map[string]interface{}{"limit": params.limit}
		if err := helper.APIPost(api, "/automation/limit", caller, body, nil); err != nil {
			outputter.SetError(err)

			return
		}
	}

	var state store.AutomationState
	if err := helper.APIGet(api, "/automation", caller, &state); err != nil {
		outputter.SetError(err)

		return
	}

	outputter.SetCommandResult(&AutomationResult{State: &state})
}

type AutomationResult struct {
	State *store.AutomationState `json:"state"`
}

func (r *AutomationResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[AUTOMATION]\n")
	buffer.WriteString(helper.FormatKV([]string{
		fmt.Sprintf("Last run|%d", r.State.LastRunTimestamp),
		fmt.Sprintf("Interval (s)|%d", r.State.UpdateInterval),
		fmt.Sprintf("Execution limit|%d", r.State.DefaultExecutionLimit),
	}))

	return buffer.String()
}
