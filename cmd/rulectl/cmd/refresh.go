package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var refreshOrg string

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Replace the local mirror with the organization's current remote state",
	Long: `Refresh fetches every ruleset, rule, and tag set from the remote platform
and replaces the organization's local mirror with it, discarding any
pending ledger entries for that organization.

Refresh is cancellation-safe: interrupting it (Ctrl-C) restores the
mirror to its pre-refresh state instead of leaving a half-written tree.`,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().StringVar(&refreshOrg, "org", "", orgFlagUsage)
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	reg, _, err := buildRegistry()
	if err != nil {
		return err
	}

	org, err := resolveOrg(refreshOrg, reg)
	if err != nil {
		return err
	}

	facade, err := reg.Get(org)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := facade.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh %s: %w", org, err)
	}
	fmt.Printf("refreshed %s\n", org)
	return nil
}
