package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var workspaceCmd = &cobra.Command{
	Use:   "workspace [org_id]",
	Short: "Show or set the current organization",
	Long: `With no argument, prints the currently selected organization.

With an argument, selects org_id as the current organization, recording
it in the state ledger as a UI convenience so other verbs can omit
--org. If the organization has no local mirror yet, an initial refresh
is triggered.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWorkspace,
}

func init() {
	rootCmd.AddCommand(workspaceCmd)
}

func runWorkspace(cmd *cobra.Command, args []string) error {
	reg, _, err := buildRegistry()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		ws := reg.Workspace()
		if ws == "" {
			fmt.Println("no workspace set")
			return nil
		}
		fmt.Println(ws)
		return nil
	}

	org := args[0]
	facade, err := reg.Get(org)
	if err != nil {
		return err
	}
	if err := facade.EnsureRefreshed(cmd.Context()); err != nil {
		return fmt.Errorf("initial refresh for %s: %w", org, err)
	}
	if err := reg.SetWorkspace(org); err != nil {
		return fmt.Errorf("set workspace: %w", err)
	}
	fmt.Printf("switched to %s\n", org)
	return nil
}
