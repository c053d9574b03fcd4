// Package cmd implements gatewayd's command-line surface: a root command
// with a default serve action and a version subcommand.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gatewayd",
	Short: "Host-routed HTTPS reverse proxy with per-host TLS and process supervision",
	Long: `gatewayd terminates TLS on a configurable port, selects a backend by the
request's Host header, forwards HTTP/1.1 and WebSocket traffic, and
supervises the local processes that back those hosts.`,
	RunE: runServe,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default is $GATEWAY_CONFIG_PATH or ./gatewayd.json)")
}
