// SPDX-FileCopyrightText: 2024 The srsgnb community
// SPDX-License-Identifier: MIT

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ranstack/rlcam/cmd/rlcamctl/cmdconfig"
)

var configPath string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a bearer configuration",
	Long: `validate loads a bearer configuration from --config (YAML), environment
variables prefixed RLCAM_, and flags, in that increasing order of precedence,
and reports whether every field falls within its 3GPP-enumerated range.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cmdconfig.Load(cmd, configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "config valid: sn_field_length=%d t_reordering_ms=%d max_retx_thresh=%d\n",
			cfg.SNFieldLength, cfg.TReorderingMS, cfg.MaxRetxThresh)

		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML bearer config file")
	cmdconfig.BindFlags(validateCmd)
}
