package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteRulesetOrg string

var deleteRulesetCmd = &cobra.Command{
	Use:   "delete-ruleset [ruleset_id]",
	Short: "Delete a ruleset and every rule under it",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteRuleset,
}

func init() {
	deleteRulesetCmd.Flags().StringVar(&deleteRulesetOrg, "org", "", orgFlagUsage)
	rootCmd.AddCommand(deleteRulesetCmd)
}

func runDeleteRuleset(cmd *cobra.Command, args []string) error {
	reg, _, err := buildRegistry()
	if err != nil {
		return err
	}
	org, err := resolveOrg(deleteRulesetOrg, reg)
	if err != nil {
		return err
	}
	facade, err := reg.Get(org)
	if err != nil {
		return err
	}
	if err := facade.DeleteRuleset(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete ruleset %s: %w", args[0], err)
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}
