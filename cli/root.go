package cli

import (
	"github.com/spf13/cobra"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "memgate",
		Short: "Cache and timestamp-synchronization layer for distributed memory services",
	}

	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("log-json", false, "Emit logs as JSON")
	root.PersistentFlags().Bool("log-source", false, "Include caller locations in logs")

	root.AddCommand(
		ServeCmd(),
	)

	return root
}
