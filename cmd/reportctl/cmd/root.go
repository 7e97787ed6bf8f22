// Package cmd implements reportctl, the operator CLI for the report engine.
package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version string

	// Global flags
	flagOutput  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "reportctl",
	Short: "Report engine operator CLI",
	Long: `reportctl inspects and runs reports against the reporting database.

It reads the same environment as the server (DB_*, REDIS_*, REPORT_*,
AUTH_*). Commands that act on behalf of a caller take either --token or
an explicit --role/--user/--tenant/--tracker identity.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the CLI version from build flags.
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(savedCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(cacheCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("reportctl version %s\n", version)
		fmt.Printf("  Go:       %s\n", runtime.Version())
		fmt.Printf("  OS/Arch:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}
