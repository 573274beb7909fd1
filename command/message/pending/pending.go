package pending

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omniward/omniward/command"
	"github.com/omniward/omniward/command/helper"
	"github.com/omniward/omniward/store"
)

var params struct {
	limit uint64
}

func GetCommand() *cobra.Command {
	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "Lists the messages parked in the pending queue",
		Args:  cobra.NoArgs,
		Run:   runCommand,
	}

	helper.RegisterAPIFlags(pendingCmd)

	pendingCmd.Flags().Uint64Var(&params.limit, "limit", 20,
		"the maximum number of queue entries to list")

	return pendingCmd
}

func runCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	var result PendingResult

	path := fmt.Sprintf("/messages/pending?limit=%d", params.limit)
	if err := helper.APIGet(helper.GetAPIAddress(cmd), path, helper.GetCaller(cmd), &result); err != nil {
		outputter.SetError(err)

		return
	}

	outputter.SetCommandResult(&result)
}

type PendingResult struct {
	Count    uint64                 `json:"count"`
	Messages []*store.QueuedMessage `json:"messages"`
}

func (r *PendingResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString(fmt.Sprintf("\n[PENDING MESSAGES] (%d queued)\n", r.Count))

	rows := make([]string, 0, len(r.Messages)+1)
	rows = append(rows, "SEQ|ID|FROM CHAIN|SENDER|SIZE")

	for _, msg := range r.Messages {
		rows = append(rows, fmt.Sprintf("%d|%s|%d|%s|%d",
			msg.Sequence,
			msg.ID,
			msg.FromChain,
			msg.Sender,
			len(msg.Data),
		))
	}

	buffer.WriteString(helper.FormatList(rows))

	return buffer.String()
}
