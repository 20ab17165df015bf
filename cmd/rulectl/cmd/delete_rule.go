package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteRuleOrg string

var deleteRuleCmd = &cobra.Command{
	Use:   "delete-rule [rule_id]",
	Short: "Delete a single rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteRule,
}

func init() {
	deleteRuleCmd.Flags().StringVar(&deleteRuleOrg, "org", "", orgFlagUsage)
	rootCmd.AddCommand(deleteRuleCmd)
}

func runDeleteRule(cmd *cobra.Command, args []string) error {
	reg, _, err := buildRegistry()
	if err != nil {
		return err
	}
	org, err := resolveOrg(deleteRuleOrg, reg)
	if err != nil {
		return err
	}
	facade, err := reg.Get(org)
	if err != nil {
		return err
	}
	if err := facade.DeleteRule(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete rule %s: %w", args[0], err)
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}
