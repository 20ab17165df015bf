package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var updateRuleOrg, updateRuleFile string

var updateRuleCmd = &cobra.Command{
	Use:   "update-rule [rule_id]",
	Short: "Overwrite a rule's body, leaving its tags untouched",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpdateRule,
}

func init() {
	updateRuleCmd.Flags().StringVar(&updateRuleOrg, "org", "", orgFlagUsage)
	updateRuleCmd.Flags().StringVar(&updateRuleFile, "file", "-", "path to a JSON rule body, or - for stdin")
	rootCmd.AddCommand(updateRuleCmd)
}

func runUpdateRule(cmd *cobra.Command, args []string) error {
	reg, _, err := buildRegistry()
	if err != nil {
		return err
	}
	org, err := resolveOrg(updateRuleOrg, reg)
	if err != nil {
		return err
	}
	facade, err := reg.Get(org)
	if err != nil {
		return err
	}
	payload, err := readJSONPayload(updateRuleFile)
	if err != nil {
		return err
	}
	if err := facade.UpdateRule(cmd.Context(), args[0], payload); err != nil {
		return fmt.Errorf("update rule %s: %w", args[0], err)
	}
	fmt.Printf("updated %s\n", args[0])
	return nil
}
