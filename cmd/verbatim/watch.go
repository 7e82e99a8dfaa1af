package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var watchWorkers int

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Ingest and check files dropped into a directory",
	Long: `Watch ingests every file matching the inbox pattern (default **/*.pdf) once it
stops changing, then queues a check for it. It runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		vault := mustOpenVault()
		defer vault.Close()

		proc, err := startProcessor(ctx, vault, watchWorkers)
		if err != nil {
			fatal("Error starting processor", err)
		}
		watcher, err := startInbox(ctx, vault, args[0], proc)
		if err != nil {
			stopAll(proc.Stop)
			fatal("Error starting inbox", err)
		}

		<-ctx.Done()
		stopAll(watcher.Stop, func(ctx context.Context) error {
			if err := proc.Wait(ctx); err != nil {
				return err
			}
			return proc.Stop(ctx)
		})
		if stats := watcher.Stats(); stats != nil {
			fmt.Printf("Handled %d files (%d failed)\n", stats.Handled, stats.Failed)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().IntVar(&watchWorkers, "workers", 0, "Check workers (default from config)")
}
