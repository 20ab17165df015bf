package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var listOrg string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the rulesets and rules in the local mirror",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listOrg, "org", "", orgFlagUsage)
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	reg, _, err := buildRegistry()
	if err != nil {
		return err
	}

	org, err := resolveOrg(listOrg, reg)
	if err != nil {
		return err
	}

	facade, err := reg.Get(org)
	if err != nil {
		return err
	}

	rulesets, err := facade.ListRulesets()
	if err != nil {
		return fmt.Errorf("list rulesets: %w", err)
	}
	sort.Strings(rulesets)

	if len(rulesets) == 0 {
		fmt.Printf("%s: no rulesets in the local mirror (try `rulectl refresh --org %s`)\n", org, org)
		return nil
	}

	for _, r := range rulesets {
		name := r
		if data, err := facade.ReadRuleset(r); err == nil {
			if n, ok := data["name"].(string); ok {
				name = fmt.Sprintf("%s (%s)", r, n)
			}
		}
		fmt.Printf("ruleset %s\n", name)

		rules, err := facade.ListRules(r)
		if err != nil {
			return fmt.Errorf("list rules for %s: %w", r, err)
		}
		sort.Strings(rules)
		for _, ruleID := range rules {
			fmt.Printf("  rule %s\n", ruleID)
		}
	}
	return nil
}
