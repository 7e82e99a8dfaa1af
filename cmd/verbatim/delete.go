package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/verbatim"
)

var deleteAll bool

var deleteCmd = &cobra.Command{
	Use:   "delete <id> | --all",
	Short: "Delete a report, or every report",
	Long:  `Delete removes a report together with its checks, its peer-index entries and its original file.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if deleteAll && len(args) > 0 {
			return fmt.Errorf("%w: --all takes no report id", errUsage)
		}
		if !deleteAll && len(args) != 1 {
			return fmt.Errorf("%w: expected a report id or --all", errUsage)
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		vault := mustOpenVault(verbatim.WithMustExist(true))
		defer vault.Close()
		ctx := context.Background()

		if deleteAll {
			n, err := vault.Service.DeleteAll(ctx)
			if err != nil {
				fatal("Error deleting reports", err)
			}
			fmt.Printf("Deleted %d reports\n", n)
			return
		}

		if err := vault.Service.DeleteDocument(ctx, args[0]); err != nil {
			fatal("Error deleting report", err)
		}
		fmt.Printf("Report deleted: %s\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolVar(&deleteAll, "all", false, "Delete every report")
}
