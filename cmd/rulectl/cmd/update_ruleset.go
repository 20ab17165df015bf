package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var updateRulesetOrg, updateRulesetFile string

var updateRulesetCmd = &cobra.Command{
	Use:   "update-ruleset [ruleset_id]",
	Short: "Overwrite an existing ruleset's body",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpdateRuleset,
}

func init() {
	updateRulesetCmd.Flags().StringVar(&updateRulesetOrg, "org", "", orgFlagUsage)
	updateRulesetCmd.Flags().StringVar(&updateRulesetFile, "file", "-", "path to a JSON ruleset body, or - for stdin")
	rootCmd.AddCommand(updateRulesetCmd)
}

func runUpdateRuleset(cmd *cobra.Command, args []string) error {
	reg, _, err := buildRegistry()
	if err != nil {
		return err
	}
	org, err := resolveOrg(updateRulesetOrg, reg)
	if err != nil {
		return err
	}
	facade, err := reg.Get(org)
	if err != nil {
		return err
	}
	payload, err := readJSONPayload(updateRulesetFile)
	if err != nil {
		return err
	}
	if err := facade.UpdateRuleset(cmd.Context(), args[0], payload); err != nil {
		return fmt.Errorf("update ruleset %s: %w", args[0], err)
	}
	fmt.Printf("updated %s\n", args[0])
	return nil
}
