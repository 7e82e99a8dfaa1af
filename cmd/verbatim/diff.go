package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/verbatim"
)

var diffJSON bool

var diffCmd = &cobra.Command{
	Use:   "diff <source> <target>",
	Short: "Show the full difference between two reports",
	Long: `Diff prints the target report with text only in the source marked [-like this-]
and text only in the target marked {+like this+}.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		vault := mustOpenVault(verbatim.WithMustExist(true))
		defer vault.Close()

		source, target, segments, err := vault.Service.Diff(context.Background(), args[0], args[1])
		if err != nil {
			fatal("Error computing diff", err)
		}

		if diffJSON {
			out := map[string]any{"source": source.ID, "target": target.ID, "diff": segments}
			if err := writeJSON(os.Stdout, out); err != nil {
				fatal("Error encoding JSON", err)
			}
			return
		}
		fmt.Printf("--- %s (%s)\n+++ %s (%s)\n", source.Name, source.ID, target.Name, target.ID)
		writeSegments(os.Stdout, segments)
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().BoolVar(&diffJSON, "json", false, "Output in JSON format")
}
