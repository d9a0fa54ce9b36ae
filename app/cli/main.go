package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "cvitapilot",
		Short:         "Operational commands for the CVitaPilot backend",
		SilenceUsage: true,
	}
	root.AddCommand(migrateCmd(), cleanupCmd(), renderCmd(), promoteCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
