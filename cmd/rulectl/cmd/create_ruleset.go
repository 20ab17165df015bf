package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var createRulesetOrg, createRulesetFile string

var createRulesetCmd = &cobra.Command{
	Use:   "create-ruleset",
	Short: "Create a new ruleset from a JSON payload",
	Long:  `Reads a ruleset body (JSON object) from --file, or stdin if omitted, mints a local id, and records the creation in the state ledger.`,
	RunE:  runCreateRuleset,
}

func init() {
	createRulesetCmd.Flags().StringVar(&createRulesetOrg, "org", "", orgFlagUsage)
	createRulesetCmd.Flags().StringVar(&createRulesetFile, "file", "-", "path to a JSON ruleset body, or - for stdin")
	rootCmd.AddCommand(createRulesetCmd)
}

func runCreateRuleset(cmd *cobra.Command, args []string) error {
	reg, _, err := buildRegistry()
	if err != nil {
		return err
	}
	org, err := resolveOrg(createRulesetOrg, reg)
	if err != nil {
		return err
	}
	facade, err := reg.Get(org)
	if err != nil {
		return err
	}
	payload, err := readJSONPayload(createRulesetFile)
	if err != nil {
		return err
	}
	id, err := facade.CreateRuleset(cmd.Context(), payload)
	if err != nil {
		return fmt.Errorf("create ruleset: %w", err)
	}
	fmt.Println(id)
	return nil
}
