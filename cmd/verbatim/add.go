package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/verbatim/pkg/core"
	"github.com/aretw0/verbatim/pkg/inbox"
)

var addCheck bool

var addCmd = &cobra.Command{
	Use:   "add <files...>",
	Short: "Add reports to the vault",
	Long: `Add stores each file as a document. PDF files go through text extraction and
their original bytes are kept; any other file is read as plain text.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		vault := mustOpenVault()
		defer vault.Close()
		ctx := context.Background()

		failed := 0
		for _, path := range args {
			doc, err := addFile(ctx, vault.Service, path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error adding %s: %v\n", path, err)
				failed++
				continue
			}
			fmt.Printf("Added %s (%s)\n", doc.ID, doc.Name)

			if addCheck {
				check, err := vault.Service.RunCheck(ctx, doc.ID)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error checking %s: %v\n", doc.ID, err)
					failed++
					continue
				}
				writeCheck(os.Stdout, check)
			}
		}
		if failed > 0 {
			os.Exit(1)
		}
	},
}

func addFile(ctx context.Context, svc *core.Service, path string) (core.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Document{}, err
	}
	name := filepath.Base(path)
	meta := core.Metadata{inbox.MetaSource: path}
	ext := filepath.Ext(name)
	if strings.EqualFold(ext, ".pdf") {
		return svc.IngestPDF(ctx, name, data, meta)
	}
	slog.Debug("adding as plain text", "path", path)
	return svc.Ingest(ctx, strings.TrimSuffix(name, ext), string(data), meta)
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().BoolVar(&addCheck, "check", false, "Run a check for each added report")
}
