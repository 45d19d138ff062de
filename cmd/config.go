/*
config.go - Configuration management commands

PURPOSE:
  Helpers around the YAML configuration file: print an example, create
  one in the home directory, and validate an existing file.
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/warp/billing-engine/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the billing-engine configuration file",
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print an example configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(config.ExampleYAML())
	},
}

var configCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a default configuration file in the home directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		path := filepath.Join(home, ".billing-engine.yaml")
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
		if err := os.WriteFile(path, []byte(config.ExampleYAML()), 0o644); err != nil {
			return err
		}
		fmt.Println("Created", path)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if _, err := config.ValidateYAMLContent(content); err != nil {
			return err
		}
		fmt.Println("Configuration is valid")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configExampleCmd)
	configCmd.AddCommand(configCreateCmd)
	configCmd.AddCommand(configValidateCmd)
}
