package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ledgerd",
		Short:        "Loan ledger and collateral verification service",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("store", "", "journal store: memory, mysql or sqlite (overrides STORE_DRIVER)")
	root.PersistentFlags().String("log-level", "", "log level (overrides LOG_LEVEL)")
	root.AddCommand(newServeCmd(), newReplayCmd())
	return root
}
