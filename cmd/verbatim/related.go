package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/verbatim"
)

var relatedCmd = &cobra.Command{
	Use:   "related <id>",
	Short: "List reports previously matched with a report",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		vault := mustOpenVault(verbatim.WithMustExist(true))
		defer vault.Close()

		docs, err := vault.Service.Related(context.Background(), args[0])
		if err != nil {
			fatal("Error reading related reports", err)
		}
		if len(docs) == 0 {
			fmt.Println("No related reports")
			return
		}
		for _, doc := range docs {
			fmt.Printf("%s %s\n", doc.ID, doc.Name)
		}
	},
}

func init() {
	rootCmd.AddCommand(relatedCmd)
}
