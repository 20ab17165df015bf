package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	copyRuleOrg      string
	copyRuleDstOrg   string
	copyRulePostfix  string
	copyRuleNoSuffix bool
)

var copyRuleCmd = &cobra.Command{
	Use:   "copy-rule [rule_id] [dst_ruleset_id]",
	Short: "Copy a rule into another ruleset, optionally on another organization",
	Args:  cobra.ExactArgs(2),
	RunE:  runCopyRule,
}

func init() {
	copyRuleCmd.Flags().StringVar(&copyRuleOrg, "org", "", orgFlagUsage)
	copyRuleCmd.Flags().StringVar(&copyRuleDstOrg, "dst-org", "", "destination organization id (defaults to the source organization)")
	copyRuleCmd.Flags().StringVar(&copyRulePostfix, "postfix", "", `suffix appended to the copy's name (default " - COPY")`)
	copyRuleCmd.Flags().BoolVar(&copyRuleNoSuffix, "no-postfix", false, "copy the name verbatim, with no suffix")
	rootCmd.AddCommand(copyRuleCmd)
}

func runCopyRule(cmd *cobra.Command, args []string) error {
	reg, _, err := buildRegistry()
	if err != nil {
		return err
	}
	org, err := resolveOrg(copyRuleOrg, reg)
	if err != nil {
		return err
	}
	facade, err := reg.Get(org)
	if err != nil {
		return err
	}

	postfix := resolvePostfix(copyRulePostfix, copyRuleNoSuffix)

	ruleID, dstRuleset := args[0], args[1]
	var newID string
	if copyRuleDstOrg == "" || copyRuleDstOrg == org {
		newID, err = facade.CopyRule(cmd.Context(), ruleID, dstRuleset, postfix)
	} else {
		newID, err = facade.CopyRuleOut(cmd.Context(), ruleID, dstRuleset, copyRuleDstOrg, postfix)
	}
	if err != nil {
		return fmt.Errorf("copy rule %s: %w", ruleID, err)
	}
	fmt.Println(newID)
	return nil
}

// resolvePostfix turns the copy commands' --postfix/--no-postfix flags
// into the *string the engine's Copy verbs expect: nil means "use the
// engine default", a non-nil empty string means "no suffix at all".
func resolvePostfix(postfix string, noPostfix bool) *string {
	if noPostfix {
		empty := ""
		return &empty
	}
	if postfix == "" {
		return nil
	}
	return &postfix
}
