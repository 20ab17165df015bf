package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	copyRulesetOrg      string
	copyRulesetDstOrg   string
	copyRulesetPostfix  string
	copyRulesetNoSuffix bool
)

var copyRulesetCmd = &cobra.Command{
	Use:   "copy-ruleset [ruleset_id]",
	Short: "Deep-copy a ruleset and every rule under it, optionally onto another organization",
	Args:  cobra.ExactArgs(1),
	RunE:  runCopyRuleset,
}

func init() {
	copyRulesetCmd.Flags().StringVar(&copyRulesetOrg, "org", "", orgFlagUsage)
	copyRulesetCmd.Flags().StringVar(&copyRulesetDstOrg, "dst-org", "", "destination organization id (defaults to the source organization)")
	copyRulesetCmd.Flags().StringVar(&copyRulesetPostfix, "postfix", "", `suffix appended to the copy's name (default " - COPY")`)
	copyRulesetCmd.Flags().BoolVar(&copyRulesetNoSuffix, "no-postfix", false, "copy the name verbatim, with no suffix")
	rootCmd.AddCommand(copyRulesetCmd)
}

func runCopyRuleset(cmd *cobra.Command, args []string) error {
	reg, _, err := buildRegistry()
	if err != nil {
		return err
	}
	org, err := resolveOrg(copyRulesetOrg, reg)
	if err != nil {
		return err
	}
	facade, err := reg.Get(org)
	if err != nil {
		return err
	}

	postfix := resolvePostfix(copyRulesetPostfix, copyRulesetNoSuffix)

	rulesetID := args[0]
	var newID string
	if copyRulesetDstOrg == "" || copyRulesetDstOrg == org {
		newID, err = facade.CopyRuleset(cmd.Context(), rulesetID, postfix)
	} else {
		newID, err = facade.CopyRulesetOut(cmd.Context(), rulesetID, copyRulesetDstOrg, postfix)
	}
	if err != nil {
		return fmt.Errorf("copy ruleset %s: %w", rulesetID, err)
	}
	fmt.Println(newID)
	return nil
}
