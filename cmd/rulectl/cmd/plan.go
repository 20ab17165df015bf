package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rulectl/rulectl/internal/domain/ledger"
)

var planOrg string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show pending local mutations that `push` would apply",
	Long: `Plan reads the state ledger without touching the network and prints,
per ruleset and rule, what push would do: create, update, or delete.`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planOrg, "org", "", orgFlagUsage)
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	reg, _, err := buildRegistry()
	if err != nil {
		return err
	}

	org, err := resolveOrg(planOrg, reg)
	if err != nil {
		return err
	}

	doc := reg.Document()
	rulesets, ok := doc.Organizations[org]
	if !ok || len(rulesets) == 0 {
		fmt.Printf("no pending changes for %s\n", org)
		return nil
	}

	ids := make([]string, 0, len(rulesets))
	for id := range rulesets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		entry := rulesets[id]
		fmt.Printf("ruleset %s: %s\n", id, describeRulesetAction(entry.Modified))
		ruleIDs := make([]string, 0, len(entry.Rules))
		for rid := range entry.Rules {
			ruleIDs = append(ruleIDs, rid)
		}
		sort.Strings(ruleIDs)
		for _, rid := range ruleIDs {
			fmt.Printf("  rule %s: %s\n", rid, describeRuleAction(entry.Rules[rid]))
		}
	}
	return nil
}

func describeRulesetAction(m ledger.RulesetModified) string {
	switch m {
	case ledger.RulesetModifiedTrue:
		return "create/update"
	case ledger.RulesetModifiedDel:
		return "delete"
	default:
		return "unchanged (parent of dirty rules)"
	}
}

func describeRuleAction(s ledger.RuleStatus) string {
	switch s {
	case ledger.RuleStatusRule:
		return "update rule body"
	case ledger.RuleStatusTags:
		return "update tags"
	case ledger.RuleStatusBoth:
		return "create/update rule and tags"
	case ledger.RuleStatusDel:
		return "delete"
	default:
		return string(s)
	}
}
