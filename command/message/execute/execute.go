package execute

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
	executeCmd := &cobra.Command{
		Use:   "execute",
		Short: "Executes queued messages from the head of the pending queue",
		Args:  cobra.NoArgs,
		Run:   runCommand,
	}

	helper.RegisterAPIFlags(executeCmd)

	executeCmd.Flags().Uint64Var(&params.limit, "limit", 10,
		"the maximum number of messages to execute")

	return executeCmd
}

func runCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	var result ExecuteResult

	body := map[string]interface{}{"limit": params.limit}

	err := helper.APIPost(helper.GetAPIAddress(cmd), "/messages/execute",
		helper.GetCaller(cmd), body, &result)
	if err != nil {
		outputter.SetError(err)

		return
	}

	outputter.SetCommandResult(&result)
}

type ExecuteResult struct {
	Executed int                    `json:"executed"`
	Messages []*store.QueuedMessage `json:"messages"`
}

func (r *ExecuteResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString(fmt.Sprintf("\n[MESSAGES EXECUTED] (%d)\n", r.Executed))

	rows := make([]string, 0, len(r.Messages)+1)
	rows = append(rows, "SEQ|ID|FROM CHAIN|SENDER")

	for _, msg := range r.Messages {
		rows = append(rows, fmt.Sprintf("%d|%s|%d|%s",
			msg.Sequence,
			msg.ID,
			msg.FromChain,
			msg.Sender,
		))
	}

	buffer.WriteString(helper.FormatList(rows))

	return buffer.String()
}
