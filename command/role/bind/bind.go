package bind

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omniward/omniward/command"
	"github.com/omniward/omniward/command/helper"
)

var params struct {
	target string
	fn     uint8
	role   uint64
}

func GetCommand() *cobra.Command {
	bindCmd := &cobra.Command{
		Use:   "bind",
		Short: "Binds the role required to invoke a privileged function on a component",
		Args:  cobra.NoArgs,
		Run:   runCommand,
	}

	helper.RegisterAPIFlags(bindCmd)

	bindCmd.Flags().StringVar(&params.target, "target", "",
		"the component address the function belongs to")
	bindCmd.Flags().Uint8Var(&params.fn, "func", 0,
		"the numeric function id to bind")
	bindCmd.Flags().Uint64Var(&params.role, "role", 0,
		"the role required to invoke the function")

	_ = bindCmd.MarkFlagRequired("target")
	_ = bindCmd.MarkFlagRequired("func")

	return bindCmd
}

func runCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	body := map[string]interface{}{
		"target": params.target,
		"func":   params.fn,
		"role":   params.role,
	}

	err := helper.APIPost(helper.GetAPIAddress(cmd), "/roles/bind", helper.GetCaller(cmd), body, nil)
	if err != nil {
		outputter.SetError(err)

		return
	}

	outputter.SetCommandResult(&BindResult{
		Target: params.target,
		Func:   params.fn,
		Role:   params.role,
	})
}

type BindResult struct {
	Target string `json:"target"`
	Func   uint8  `json:"func"`
	Role   uint64 `json:"role"`
}

func (r *BindResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[FUNCTION ROLE BOUND]\n")
	buffer.WriteString(helper.FormatKV([]string{
		fmt.Sprintf("Target|%s", r.Target),
		fmt.Sprintf("Function|%d", r.Func),
		fmt.Sprintf("Role|%d", r.Role),
	}))

	return buffer.String()
}
