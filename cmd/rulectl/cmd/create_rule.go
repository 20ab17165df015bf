package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	outbound "github.com/rulectl/rulectl/internal/port/outbound"
)

var createRuleOrg, createRuleFile, createRuleTagsFile string

var createRuleCmd = &cobra.Command{
	Use:   "create-rule [ruleset_id]",
	Short: "Create a new rule within a ruleset",
	Long:  `Reads a rule body from --file (or stdin if omitted) and an optional tag set from --tags-file, mints a local rule id, and records the creation in the state ledger.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runCreateRule,
}

func init() {
	createRuleCmd.Flags().StringVar(&createRuleOrg, "org", "", orgFlagUsage)
	createRuleCmd.Flags().StringVar(&createRuleFile, "file", "-", "path to a JSON rule body, or - for stdin")
	createRuleCmd.Flags().StringVar(&createRuleTagsFile, "tags-file", "", "path to a JSON tag set (defaults to {})")
	rootCmd.AddCommand(createRuleCmd)
}

func runCreateRule(cmd *cobra.Command, args []string) error {
	reg, _, err := buildRegistry()
	if err != nil {
		return err
	}
	org, err := resolveOrg(createRuleOrg, reg)
	if err != nil {
		return err
	}
	facade, err := reg.Get(org)
	if err != nil {
		return err
	}
	rule, err := readJSONPayload(createRuleFile)
	if err != nil {
		return err
	}
	var tags outbound.JSON
	if createRuleTagsFile != "" {
		tags, err = readJSONPayload(createRuleTagsFile)
		if err != nil {
			return err
		}
	}
	id, err := facade.CreateRule(cmd.Context(), args[0], rule, tags)
	if err != nil {
		return fmt.Errorf("create rule in %s: %w", args[0], err)
	}
	fmt.Println(id)
	return nil
}
