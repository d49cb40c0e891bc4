// Package cmd wires the wikiexport CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quartzlabs/wikiexport/internal/config"
	"github.com/quartzlabs/wikiexport/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:   "wikiexport",
	Short: "Bulk export job pipeline",
	Long: `wikiexport runs the bulk export job pipeline: crash-resilient,
multi-stage export of page trees and activity logs to an object store.

The serve command runs the scheduler and the ops API; the jobs commands
manage export jobs against a running store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Context(), configPath)
		if err != nil {
			return exitError(exitInvalidArgument, "Invalid configuration", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := observability.InitCLILogger(cfg.Logging.Level, cfg.Logging.Structured); err != nil {
			return exitError(exitInvalidArgument, "Invalid logging configuration", err)
		}
		loadedConfig = cfg
		return nil
	},
}

var (
	configPath string
	logLevel   string

	// loadedConfig is populated by the persistent pre-run for
	// subcommands.
	loadedConfig *config.Config
)

// versionInfo is injected at build time through SetVersionInfo.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug|info|warn|error)")
}

// Execute runs the CLI and exits the process with the embedded code on
// failure.
func Execute() {
	defer observability.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(codeOf(err))
	}
}
