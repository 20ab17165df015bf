package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rulectl/rulectl/internal/config"
)

var configureOut string

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write the effective configuration to a rulectl.yaml file",
	Long: `Configure resolves the effective configuration (flags, environment,
any existing config file) and persists it to a rulectl.yaml.

The raw API key is never written: the file records an Argon2id hash of
it instead, so later runs can verify the key supplied via USER_ID and
API_KEY still matches what was configured here.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().StringVar(&configureOut, "out", "rulectl.yaml", "path to write the config file to")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if stateFlag != "" {
		cfg.StateDir = stateFlag
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if err := cfg.WriteFile(configureOut); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", configureOut)
	return nil
}
