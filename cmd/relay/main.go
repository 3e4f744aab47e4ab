// Command relay serves static files from a local directory or an S3 bucket
// through the relay route table, with an optional admin listener for
// metrics and health checks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vitalvas/relay/internal/config"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "relay",
		Short: "HTTP server built on an ordered route table",
		Long: `relay serves static files from a directory or an S3 bucket.

Requests pass through a configurable middleware chain (request ids,
access log, metrics, tracing, compression, CORS) before reaching the
static file responder.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the YAML configuration file")

	rootCmd.AddCommand(
		serveCmd(),
		routesCmd(),
		versionCmd(),
	)

	return rootCmd
}

// loadConfig reads the file named by --config, or the defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	if path == "" {
		return config.Default(), nil
	}

	return config.Load(path)
}
