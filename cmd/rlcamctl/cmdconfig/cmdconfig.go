// SPDX-FileCopyrightText: 2024 The srsgnb community
// SPDX-License-Identifier: MIT

// Package cmdconfig loads an rlcam.Config the way rlcamctl's commands need
// it: CLI flags override environment variables (RLCAM_-prefixed) override a
// YAML config file override the package defaults.
package cmdconfig

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ranstack/rlcam/sn"

	"github.com/ranstack/rlcam"
)

// Load reads a bearer Config from path (if non-empty), the environment, and
// cmd's flags, in that precedence order, seeded with rlcam.DefaultConfig.
func Load(cmd *cobra.Command, path string) (rlcam.Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RLCAM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	def := rlcam.DefaultConfig()
	v.SetDefault("t_reordering_ms", def.TReorderingMS)
	v.SetDefault("t_status_prohibit_ms", def.TStatusProhibitMS)
	v.SetDefault("t_poll_retx_ms", def.TPollRetxMS)
	v.SetDefault("poll_pdu", def.PollPDU)
	v.SetDefault("poll_byte_kb", def.PollByteKB)
	v.SetDefault("max_retx_thresh", def.MaxRetxThresh)
	v.SetDefault("sn_field_length", int(def.SNFieldLength))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return rlcam.Config{}, err
		}
	}

	// BindPFlag per key rather than a blanket BindPFlags(cmd.Flags()): the
	// flags are hyphenated (cobra convention) but the viper keys above are
	// underscored (to match RLCAM_ env vars), and viper does not treat "-"
	// and "_" as equivalent in a bound key the way it does for env lookups.
	for key, flagName := range map[string]string{
		"t_reordering_ms":      "t-reordering-ms",
		"t_status_prohibit_ms": "t-status-prohibit-ms",
		"t_poll_retx_ms":       "t-poll-retx-ms",
		"poll_pdu":             "poll-pdu",
		"poll_byte_kb":         "poll-byte-kb",
		"max_retx_thresh":      "max-retx-thresh",
		"sn_field_length":      "sn-field-length",
	} {
		if flag := cmd.Flags().Lookup(flagName); flag != nil {
			if err := v.BindPFlag(key, flag); err != nil {
				return rlcam.Config{}, err
			}
		}
	}

	cfg := rlcam.Config{
		TReorderingMS:     v.GetInt("t_reordering_ms"),
		TStatusProhibitMS: v.GetInt("t_status_prohibit_ms"),
		TPollRetxMS:       v.GetInt("t_poll_retx_ms"),
		PollPDU:           v.GetInt("poll_pdu"),
		PollByteKB:        v.GetInt("poll_byte_kb"),
		MaxRetxThresh:     v.GetInt("max_retx_thresh"),
		SNFieldLength:     sn.Width(v.GetInt("sn_field_length")),
	}

	return cfg, nil
}

// BindFlags registers the flags Load reads back out of cmd via viper.
func BindFlags(cmd *cobra.Command) {
	cmd.Flags().Int("t-reordering-ms", 0, "t-Reordering, in milliseconds (overrides config/env)")
	cmd.Flags().Int("t-status-prohibit-ms", 0, "t-StatusProhibit, in milliseconds")
	cmd.Flags().Int("t-poll-retx-ms", 0, "t-PollRetransmit, in milliseconds")
	cmd.Flags().Int("poll-pdu", 0, "poll_pdu trigger, a multiple of 4, or -1 for infinite")
	cmd.Flags().Int("poll-byte-kb", 0, "poll_byte_kb trigger, a multiple of 25, or -1 for infinite")
	cmd.Flags().Int("max-retx-thresh", 0, "retransmission count that escalates a fault")
	cmd.Flags().Int("sn-field-length", 0, "sequence-number field width: 10, 12, or 18")
}
