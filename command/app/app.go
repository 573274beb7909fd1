package app

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omniward/omniward/command"
	"github.com/omniward/omniward/command/helper"
	"github.com/omniward/omniward/store"
)

var params struct {
	register string
	appType  string
	lookup   string
}

func GetCommand() *cobra.Command {
	appCmd := &cobra.Command{
		Use:   "app",
		Short: "Lists, looks up or registers hub apps",
		Args:  cobra.NoArgs,
		Run:   runCommand,
	}

	helper.RegisterAPIFlags(appCmd)

	appCmd.Flags().StringVar(&params.register, "register", "",
		"register the given address as a new app")
	appCmd.Flags().StringVar(&params.appType, "type", "",
		"the app type recorded on registration")
	appCmd.Flags().StringVar(&params.lookup, "id", "",
		"look up a single app by id")

	return appCmd
}

func runCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	api := helper.GetAPIAddress(cmd)
	caller := helper.GetCaller(cmd)

	if params.register != "" {
		var created store.App

		body := map[string]interface{}{
			"address": params.register,
			"type":    params.appType,
		}

		if err := helper.APIPost(api, "/apps", caller, body, &created); err != nil {
			outputter.SetError(err)

			return
		}

		outputter.SetCommandResult(&AppsResult{Apps: []*store.App{&created}})

		return
	}

	if params.lookup != "" {
		var app store.App

		if err := helper.APIGet(api, "/apps?id="+params.lookup, caller, &app); err != nil {
			outputter.SetError(err)

			return
		}

		outputter.SetCommandResult(&AppsResult{Apps: []*store.App{&app}})

		return
	}

	var apps []*store.App
	if err := helper.APIGet(api, "/apps", caller, &apps); err != nil {
		outputter.SetError(err)

		return
	}

	outputter.SetCommandResult(&AppsResult{Apps: apps})
}

type AppsResult struct {
	Apps []*store.App `json:"apps"`
}

func (r *AppsResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[HUB APPS]\n")

	rows := make([]string, 0, len(r.Apps)+1)
	rows = append(rows, "ID|ADDRESS|TYPE")

	for _, app := range r.Apps {
		rows = append(rows, fmt.Sprintf("%s|%s|%s", app.ID, app.Address, app.Type))
	}

	buffer.WriteString(helper.FormatList(rows))

	return buffer.String()
}
