package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/verbatim"
	"github.com/aretw0/verbatim/pkg/core"
)

var listJSON bool

// listItem is a document with the outcome of its latest check.
type listItem struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	CloudLink    string    `json:"cloud_link,omitempty"`
	AddedToCloud bool      `json:"added_to_cloud"`
	Status       string    `json:"status,omitempty"`
	Similarity   *float64  `json:"similarity,omitempty"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List reports, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		vault := mustOpenVault(verbatim.WithMustExist(true))
		defer vault.Close()
		ctx := context.Background()

		docs, err := vault.Service.ListDocuments(ctx)
		if err != nil {
			fatal("Error listing reports", err)
		}

		items := make([]listItem, 0, len(docs))
		for _, doc := range docs {
			item := listItem{
				ID:           doc.ID,
				Name:         doc.Name,
				CreatedAt:    doc.CreatedAt,
				CloudLink:    doc.CloudLink(),
				AddedToCloud: doc.AddedToCloud(),
			}
			check, err := vault.Service.LatestCheck(ctx, doc.ID)
			switch {
			case err == nil:
				item.Status = string(check.Status)
				if check.Status == core.CheckCompleted {
					item.Similarity = check.Similarity
				}
			case !errors.Is(err, core.ErrNotFound):
				fatal("Error reading checks", err)
			}
			items = append(items, item)
		}

		if listJSON {
			if err := writeJSON(os.Stdout, items); err != nil {
				fatal("Error encoding JSON", err)
			}
			return
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCREATED\tCHECK\tCLOUD")
		for _, item := range items {
			check := "-"
			if item.Similarity != nil {
				check = core.FormatSimilarity(item.Similarity) + "%"
			} else if item.Status != "" {
				check = item.Status
			}
			cloud := ""
			if item.AddedToCloud {
				cloud = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", item.ID, item.Name, item.CreatedAt.Local().Format("2006-01-02 15:04"), check, cloud)
		}
		_ = tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
}
