package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/verbatim"
)

var checkJSON bool

var checkCmd = &cobra.Command{
	Use:   "check <id>",
	Short: "Check a report against every other report",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		vault := mustOpenVault(verbatim.WithMustExist(true))
		defer vault.Close()

		check, err := vault.Service.RunCheck(context.Background(), args[0])
		if err != nil {
			fatal("Error checking report", err)
		}

		if checkJSON {
			if err := writeJSON(os.Stdout, check); err != nil {
				fatal("Error encoding JSON", err)
			}
			return
		}
		writeCheck(os.Stdout, check)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Output in JSON format")
}
