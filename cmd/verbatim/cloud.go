package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/verbatim"
	"github.com/aretw0/verbatim/pkg/core"
)

var cloudJSON bool

var cloudCmd = &cobra.Command{
	Use:   "cloud",
	Short: "Work with shared cloud folders",
}

var cloudLinkCmd = &cobra.Command{
	Use:   "link <id> <link>",
	Short: "Record that a report was added to a cloud folder",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		vault := mustOpenVault(verbatim.WithMustExist(true))
		defer vault.Close()

		doc, err := vault.Service.MarkCloud(context.Background(), args[0], args[1])
		if err != nil {
			fatal("Error recording cloud link", err)
		}
		fmt.Printf("Report %s linked to %s\n", doc.ID, doc.CloudLink())
	},
}

var cloudScanCmd = &cobra.Command{
	Use:   "scan <link>",
	Short: "List the PDFs of a shared folder and how they relate to stored reports",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		vault := mustOpenVault(verbatim.WithMustExist(true))
		defer vault.Close()

		items, err := vault.Service.InspectCloud(context.Background(), args[0])
		if err != nil {
			fatal("Error scanning cloud folder", err)
		}
		if cloudJSON {
			if err := writeJSON(os.Stdout, items); err != nil {
				fatal("Error encoding JSON", err)
			}
			return
		}
		writeCloudItems(os.Stdout, items)
	},
}

var cloudSyncCmd = &cobra.Command{
	Use:   "sync <link>",
	Short: "Import the PDFs of a shared folder that have no report yet",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		vault := mustOpenVault(verbatim.WithMustExist(true))
		defer vault.Close()

		result, err := vault.Service.SyncCloud(context.Background(), args[0])
		if err != nil {
			writeCloudSync(os.Stderr, result)
			fatal("Error syncing cloud folder", err)
		}
		if cloudJSON {
			if err := writeJSON(os.Stdout, result); err != nil {
				fatal("Error encoding JSON", err)
			}
			return
		}
		writeCloudSync(os.Stdout, result)
	},
}

func writeCloudItems(w io.Writer, items []core.CloudPreviewItem) {
	for _, item := range items {
		fmt.Fprintf(w, "%-9s %s\n", item.Status, item.Name)
	}
	fmt.Fprintf(w, "%d files\n", len(items))
}

func writeCloudSync(w io.Writer, result core.CloudSyncResult) {
	fmt.Fprintf(w, "Imported %d, marked %d, skipped %d\n", result.Imported, result.Activated, result.Skipped)
	for _, msg := range result.Errors {
		fmt.Fprintf(w, "  error: %s\n", msg)
	}
}

func init() {
	rootCmd.AddCommand(cloudCmd)
	cloudCmd.AddCommand(cloudLinkCmd, cloudScanCmd, cloudSyncCmd)
	cloudCmd.PersistentFlags().BoolVar(&cloudJSON, "json", false, "Output in JSON format")
}
