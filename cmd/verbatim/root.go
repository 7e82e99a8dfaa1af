package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/verbatim"
)

var (
	verbose    bool
	vaultPath  string
	adapter    string
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "verbatim",
	Short: "Find overlapping text across a collection of reports",
	Long: `Verbatim stores reports (PDF or plain text) in a vault and checks each one
against the rest, scoring word and character n-gram similarity and showing
the shared passages.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&vaultPath, "vault", "", "Vault directory or database (default: nearest vault above the working directory)")
	rootCmd.PersistentFlags().StringVar(&adapter, "adapter", verbatim.AdapterFS, "Storage adapter: fs or sqlite")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a verbatim.yaml config file")
}

// resolveVault picks the vault location: the --vault flag, else the nearest
// vault root above the working directory, else the working directory itself.
func resolveVault() (string, error) {
	if vaultPath != "" {
		return vaultPath, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	root, err := verbatim.FindVaultRoot(wd)
	if err != nil {
		slog.Debug("no vault root found, using working directory", "dir", wd)
		return wd, nil
	}
	return root, nil
}

// openVault opens the vault selected by the persistent flags.
// The CLI always works on the path it is given, so the dev sandbox is off.
func openVault(extra ...verbatim.Option) (*verbatim.Vault, error) {
	path, err := resolveVault()
	if err != nil {
		return nil, err
	}
	opts := []verbatim.Option{
		verbatim.WithAdapter(adapter),
		verbatim.WithLogger(slog.Default()),
		verbatim.WithConfigFile(configPath),
		verbatim.WithDevSafety(false),
	}
	return verbatim.New(path, append(opts, extra...)...)
}

// mustOpenVault is openVault for commands that cannot continue without a vault.
func mustOpenVault(extra ...verbatim.Option) *verbatim.Vault {
	vault, err := openVault(extra...)
	if err != nil {
		fatal("Error opening vault", err)
	}
	return vault
}

var errUsage = errors.New("invalid arguments")
