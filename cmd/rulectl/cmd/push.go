package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pushOrg string

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Apply pending local mutations to the remote platform",
	Long: `Push walks the state ledger for the organization and applies every
pending ruleset and rule mutation to the remote platform, in
dependency order (rulesets before their rules, creates before the ids
they're referenced by). Each remote call is checked against the
idempotency log before it is issued and recorded there once it
succeeds, so a crash mid-push can resume without double-applying a
mutation that already reached the platform.`,
	RunE: runPush,
}

func init() {
	pushCmd.Flags().StringVar(&pushOrg, "org", "", orgFlagUsage)
	rootCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	reg, _, err := buildRegistry()
	if err != nil {
		return err
	}

	org, err := resolveOrg(pushOrg, reg)
	if err != nil {
		return err
	}

	facade, err := reg.Get(org)
	if err != nil {
		return err
	}

	if err := facade.Push(cmd.Context()); err != nil {
		return fmt.Errorf("push %s: %w", org, err)
	}
	fmt.Printf("pushed %s\n", org)
	return nil
}
