package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aretw0/verbatim/pkg/httpapi"
)

var (
	serveAddr    string
	serveInbox   string
	serveWorkers int
)

// serveState is the payload of GET /api/state.
type serveState struct {
	Vault     any `json:"vault"`
	Processor any `json:"processor"`
	Inbox     any `json:"inbox,omitempty"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve starts the JSON API, the asynchronous check queue and, when an inbox
directory is configured, a watcher that ingests files dropped into it.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		vault := mustOpenVault()
		defer vault.Close()
		cfg := vault.Config

		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		inboxDir := cfg.Inbox.Dir
		if serveInbox != "" {
			inboxDir = serveInbox
		}

		proc, err := startProcessor(ctx, vault, serveWorkers)
		if err != nil {
			fatal("Error starting processor", err)
		}
		stoppers := []func(context.Context) error{proc.Stop}

		var watcher *inboxRunner
		if inboxDir != "" {
			watcher, err = startInbox(ctx, vault, inboxDir, proc)
			if err != nil {
				stopAll(stoppers...)
				fatal("Error starting inbox", err)
			}
			stoppers = append([]func(context.Context) error{watcher.Stop}, stoppers...)
		}

		srv := httpapi.New(vault.Service,
			httpapi.WithQueue(proc),
			httpapi.WithLogger(slog.Default()),
			httpapi.WithUploadLimit(cfg.Server.UploadsPerSec, cfg.Server.UploadBurst),
			httpapi.WithMaxUploadSize(cfg.Server.MaxUploadMB<<20),
			httpapi.WithState(func() any {
				st := serveState{Vault: vault.State(), Processor: proc.State()}
				if watcher != nil {
					if stats := watcher.Stats(); stats != nil {
						st.Inbox = stats
					}
				}
				return st
			}),
		)

		err = srv.ListenAndServe(ctx, addr)
		stopAll(stoppers...)
		if err != nil {
			fatal("Error serving", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config: 127.0.0.1:8080)")
	serveCmd.Flags().StringVar(&serveInbox, "inbox", "", "Directory to watch for new reports")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 0, "Check workers (default from config)")
}
