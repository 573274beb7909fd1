package server

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/omniward/omniward/command"
	"github.com/omniward/omniward/server"
)

var params = &serverParams{}

func GetCommand() *cobra.Command {
	serverCmd := &cobra.Command{
		Use:     "server",
		Short:   "The default command that starts the Omniward bridge node, by parsing the passed in flags",
		PreRunE: runPreRun,
		Run:     runCommand,
	}

	setFlags(serverCmd)

	return serverCmd
}

func setFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&params.configPath, configFlag, "",
		"the path to the node configuration file (json, yaml or hcl)")
	cmd.Flags().StringVar(&params.dataDir, dataDirFlag, "./omniward-data",
		"the data directory used for storing node state")
	cmd.Flags().Uint64Var(&params.chainID, chainIDFlag, 1,
		"the EVM chain id of the local chain")
	cmd.Flags().Uint64Var(&params.routerChainID, routerChainIDFlag, 1,
		"the chain id the router transport knows this chain by")
	cmd.Flags().StringVar(&params.routerURL, routerURLFlag, "",
		"the websocket URL of the router service (empty runs the in-process loopback transport)")
	cmd.Flags().StringVar(&params.rawAdmin, adminFlag, "",
		"the account that administers roles and routes")
	cmd.Flags().BoolVar(&params.feeToken, feeTokenFlag, false,
		"pay delivery fees from fee token balances instead of native value")
	cmd.Flags().StringVar(&params.apiAddr, apiAddrFlag, server.DefaultAPIAddr,
		"the address the operator API binds to")
	cmd.Flags().StringVar(&params.prometheus, prometheusFlag, "",
		"the address the prometheus metrics endpoint binds to (disabled when empty)")
	cmd.Flags().StringVar(&params.logLevel, logLevelFlag, "INFO",
		"the log level for console output")
	cmd.Flags().BoolVar(&params.jsonLog, jsonLogFlag, false,
		"write logs in JSON format")
	cmd.Flags().StringVar(&params.logTo, logToFlag, "",
		"write all logs to the given file instead of standard output")
}

func runPreRun(cmd *cobra.Command, _ []string) error {
	return params.buildConfig(func(name string) bool {
		return cmd.Flags().Changed(name)
	})
}

func runCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)

	if err := runServerLoop(params.config); err != nil {
		outputter.SetError(err)
		outputter.WriteOutput()

		return
	}
}

func runServerLoop(config *server.Config) error {
	serverInstance, err := server.NewServer(config)
	if err != nil {
		return err
	}

	return helperHandleSignals(serverInstance)
}

// helperHandleSignals blocks until an exit signal arrives, then closes the node
func helperHandleSignals(serverInstance *server.Server) error {
	signalCh := make(chan os.Signal, 4)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	<-signalCh

	return serverInstance.Close()
}
