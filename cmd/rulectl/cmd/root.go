// Package cmd provides the CLI commands for rulectl.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rulectl/rulectl/internal/config"
)

var cfgFile string
var stateFlag string

var rootCmd = &cobra.Command{
	Use:   "rulectl",
	Short: "rulectl - a terraform-style reconciler for security rule configuration",
	Long: `rulectl mirrors a security platform's organizations, rulesets, rules,
and tags to a local directory, lets you edit them offline, and reconciles
your edits back to the platform through a state ledger.

Quick start:
  1. Select an organization: rulectl workspace my-org
  2. Pull its current state: rulectl refresh
  3. Edit rules locally, or use the mutation verbs below.
  4. Inspect pending changes: rulectl plan
  5. Apply them: rulectl push

Configuration:
  Config is loaded from rulectl.yaml in the current directory,
  $HOME/.rulectl/, or /etc/rulectl/.

  Environment variables override config values with the RULECTL_ prefix
  (e.g. RULECTL_STATE_DIR=/srv/rulectl), and the credentials are also
  accepted as bare USER_ID and API_KEY.`,
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	shutdownTracers(context.Background())
	closeReceipts()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: rulectl.yaml in ./, $HOME/.rulectl/ or /etc/rulectl/)")
	rootCmd.PersistentFlags().StringVar(&stateFlag, "state", "", "override state_dir for this invocation")
}

func initConfig() {
	config.InitViper(cfgFile)
}
