package status

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/omniward/omniward/command"
	"github.com/omniward/omniward/command/helper"
	"github.com/omniward/omniward/store"
)

func GetCommand() *cobra.Command {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Returns the status of the Omniward bridge node",
		Args:  cobra.NoArgs,
		Run:   runCommand,
	}

	helper.RegisterAPIFlags(statusCmd)

	return statusCmd
}

func runCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	var (
		addr   = helper.GetAPIAddress(cmd)
		caller = helper.GetCaller(cmd)

		result StatusResult
	)

	var g errgroup.Group

	g.Go(func() error {
		return helper.APIGet(addr, "/status", caller, &result)
	})
	g.Go(func() error {
		return helper.APIGet(addr, "/settings", caller, &result.Settings)
	})

	if err := g.Wait(); err != nil {
		outputter.SetError(err)

		return
	}

	outputter.SetCommandResult(&result)
}

type StatusResult struct {
	ChainID         uint64                 `json:"chainId"`
	RouterChainID   uint64                 `json:"routerChainId"`
	FeeTokenEnabled bool                   `json:"feeTokenEnabled"`
	PendingMessages uint64                 `json:"pendingMessages"`
	Automation      *store.AutomationState `json:"automation"`
	Settings        []*store.ChainSetting  `json:"settings"`
}

func (r *StatusResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[BRIDGE NODE STATUS]\n")
	buffer.WriteString(helper.FormatKV([]string{
		fmt.Sprintf("Chain ID|%d", r.ChainID),
		fmt.Sprintf("Router chain ID|%d", r.RouterChainID),
		fmt.Sprintf("Fee token enabled|%t", r.FeeTokenEnabled),
		fmt.Sprintf("Pending messages|%d", r.PendingMessages),
	}))

	if r.Automation != nil {
		buffer.WriteString("\n\n[AUTOMATION]\n")
		buffer.WriteString(helper.FormatKV([]string{
			fmt.Sprintf("Last run|%d", r.Automation.LastRunTimestamp),
			fmt.Sprintf("Interval (s)|%d", r.Automation.UpdateInterval),
			fmt.Sprintf("Execution limit|%d", r.Automation.DefaultExecutionLimit),
		}))
	}

	if len(r.Settings) > 0 {
		buffer.WriteString("\n\n[CHAIN SETTINGS]\n")

		rows := make([]string, 0, len(r.Settings)+1)
		rows = append(rows, "Chain|Router chain|Adapter|Ramp|Enabled")

		for _, s := range r.Settings {
			rows = append(rows, fmt.Sprintf("%d|%d|%s|%s|%t",
				s.EvmChainID, s.RouterChainID, s.Adapter, s.Ramp, s.Enabled))
		}

		buffer.WriteString(helper.FormatList(rows))
	}

	return buffer.String()
}
