package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/verbatim"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of verbatim",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("verbatim version %s\n", strings.TrimSpace(verbatim.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
