// Package cmd provides the CLI commands for goldengate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/goldengate/goldengate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "goldengate",
	Short: "goldengate - policy-driven signing proxy for AWS-style APIs",
	Long: `goldengate is a reverse proxy that sits between your users and an
AWS-style query API. Users sign requests with their own credentials; the
gateway verifies them, applies policy (including time-locked deferred
grants), re-signs the request with the shared upstream secret, and proxies
it on. The upstream secret never leaves the gateway.

Configuration:
  Gateway settings load from goldengate.yaml in the current directory,
  $HOME/.goldengate/, or /etc/goldengate/; override any key with the
  GOLDENGATE_ environment prefix (e.g. GOLDENGATE_SERVER_ADDR=:9090).

  Rulesets load from goldengate.conf, looked up via $GOLDENGATE_CONFIG,
  the current directory, $HOME/.goldengate/, then /etc/goldengate/.

Commands:
  start            Start the gateway
  cancel           Cancel a pending time-locked request
  gen-credentials  Generate a key/secret pair for a new user
  version          Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "gateway config file (default: ./goldengate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
