// SPDX-FileCopyrightText: 2024 The srsgnb community
// SPDX-License-Identifier: MIT

// Package commands implements the rlcamctl CLI commands.
package commands

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rlcamctl",
	Short: "Inspect and exercise an RLC acknowledged-mode bearer configuration",
	Long: `rlcamctl validates RLC AM bearer configurations and drives end-to-end
simulations of an entity pair talking over a lossy channel.

Use "rlcamctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command, for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(simulateCmd)
}
