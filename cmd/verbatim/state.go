package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/verbatim"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the vault configuration and component state as JSON",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		vault := mustOpenVault(verbatim.WithMustExist(true), verbatim.WithReadOnly(true))
		defer vault.Close()

		out := map[string]any{
			"config": vault.Config,
			"state":  vault.State(),
		}
		if err := writeJSON(os.Stdout, out); err != nil {
			fatal("Error encoding JSON", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(stateCmd)
}
