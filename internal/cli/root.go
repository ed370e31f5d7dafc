// Package cli provides the command-line interface for pharmsync.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	configPath string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pharmsync",
	Short: "Pharmacy license-search result importer",
	Long: `Pharmsync ingests pharmacy license-search result files (JSON plus
screenshot pairs) into a remote record store, deduplicating screenshot
binaries by content hash and surviving crashes via a local checkpoint.

The import runs in four phases - plan, hash, upload, import - and a
crashed run resumes from its last completed phase with --resume.`,
	Version: Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides environment)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(statusCmd)
}
