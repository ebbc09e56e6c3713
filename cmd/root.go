// Package cmd provides the command-line interface for the group sync service.
//
// This package implements a cobra-based CLI with commands for:
//   - run: Execute a cross-domain group membership batch from a CSV file
//   - probe: Check connectivity and credentials for the involved domains
//   - serve: Start the HTTP API server for batch submission and history
//   - version: Display version and build information
//
// The CLI supports configuration via:
//   - Command-line flags
//   - Configuration files (YAML format)
//   - Environment variables (GROUPSYNC_ prefix)
//
// Configuration File Locations:
//   - Specified via --config flag
//   - $HOME/.groupsync.yaml (default)
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// cfgFile holds the path to the configuration file
	cfgFile string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "groupsync",
		Short: "Group Sync - batch cross-domain directory group membership",
		Long: `Group Sync adds users from source directory domains into groups in
target domains, in bulk, from a CSV input file.

The tool:
  - Resolves each source user to its distinguished name
  - Adds the user to the target group, retrying transient faults
  - Treats existing memberships as benign, not as errors
  - Writes a per-operation CSV audit log with a trailing summary
  - Optionally validates connectivity and credentials before a batch

Use "groupsync run" to process a batch, or "groupsync serve" to start
the HTTP API.`,
	}
)

// Execute executes the root command and returns any error that occurs.
// This is the main entry point for the CLI application.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.groupsync.yaml)")
}

// initConfig reads in config file and environment variables if set.
// This function is called during cobra initialization before command execution.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".groupsync")
	}

	// GROUPSYNC_BIND_PASSWORD etc. map onto bind-password and friends.
	viper.SetEnvPrefix("GROUPSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
