package main

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/verbatim"
	"github.com/aretw0/verbatim/pkg/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the vault as Model Context Protocol tools over stdio",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		vault := mustOpenVault(verbatim.WithMustExist(true))
		defer vault.Close()

		srv := mcpserver.New(vault.Service, strings.TrimSpace(verbatim.Version), mcpserver.WithLogger(slog.Default()))
		if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
			fatal("Error running mcp server", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
