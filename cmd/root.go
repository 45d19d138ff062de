/*
root.go - CLI entry point and configuration bootstrap

PURPOSE:
  Defines the base cobra command, global flags, and viper configuration
  discovery. Subcommands (serve, export, config) hang off rootCmd.

CONFIG DISCOVERY:
  --config flag wins; otherwise $HOME/.billing-engine.yaml then
  ./.billing-engine.yaml. Environment variables override file values.

SEE ALSO:
  - serve.go: HTTP server command
  - export.go: Report export command
  - config/config.go: Typed configuration and validation
*/
package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/warp/billing-engine/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "billing-engine",
	Short: "Aggregate approved timesheet data into client-ready billing reports.",
	Long: `billing-engine turns management-verified timesheet approvals into
per-resource, per-task billing reports with committed adjustments,
integrity checks, and proportional redistribution of billable hours.`,
	Example: `
  # Start the HTTP API
  billing-engine serve --port 8080 --db ./billing.db

  # Export a billing report to CSV
  billing-engine export --period-start 2025-07-01 --period-end 2025-07-31 --output july.csv

  # Export a single project to Excel
  billing-engine export --project proj-atlas --period-start 2025-07-01 --period-end 2025-07-31 \
      --format excel --output atlas-july.xlsx

  # Print an example configuration file
  billing-engine config example`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	config.SetDefaults()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file override (default discovery: $HOME/.billing-engine.yaml, then ./.billing-engine.yaml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".billing-engine")
	}

	viper.SetEnvPrefix("BILLING")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing config file is fine, defaults and flags cover everything.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setupLogger configures the global zerolog logger from the config level.
func setupLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
	log.Logger = logger
	return logger
}
