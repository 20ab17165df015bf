package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var createTagsOrg, createTagsFile string

var createTagsCmd = &cobra.Command{
	Use:   "create-tags [rule_id]",
	Short: "Overwrite a rule's tags, leaving its body untouched",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreateTags,
}

func init() {
	createTagsCmd.Flags().StringVar(&createTagsOrg, "org", "", orgFlagUsage)
	createTagsCmd.Flags().StringVar(&createTagsFile, "file", "-", "path to a JSON tag set, or - for stdin")
	rootCmd.AddCommand(createTagsCmd)
}

func runCreateTags(cmd *cobra.Command, args []string) error {
	reg, _, err := buildRegistry()
	if err != nil {
		return err
	}
	org, err := resolveOrg(createTagsOrg, reg)
	if err != nil {
		return err
	}
	facade, err := reg.Get(org)
	if err != nil {
		return err
	}
	payload, err := readJSONPayload(createTagsFile)
	if err != nil {
		return err
	}
	if err := facade.CreateTags(cmd.Context(), args[0], payload); err != nil {
		return fmt.Errorf("set tags on %s: %w", args[0], err)
	}
	fmt.Printf("tagged %s\n", args[0])
	return nil
}
