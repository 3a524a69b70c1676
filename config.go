// SPDX-FileCopyrightText: 2024 The srsgnb community
// SPDX-License-Identifier: MIT

package rlcam

import (
	"fmt"
	"time"

	"github.com/ranstack/rlcam/sn"
)

// Infinite is the sentinel value for poll_pdu / poll_byte_kb meaning the
// corresponding poll trigger is disabled.
const Infinite = -1

// Config holds the integer-valued, enumerated configuration of one RLC AM
// entity, per 3GPP TS 38.331 RLC-BearerConfig.
type Config struct {
	// TReorderingMS is t-Reordering, in milliseconds. 0..200 in steps of 5.
	TReorderingMS int
	// TStatusProhibitMS is t-StatusProhibit, in milliseconds. 0..500 in steps of 5.
	TStatusProhibitMS int
	// TPollRetxMS is t-PollRetransmit, in milliseconds. 5..500 in steps of 5.
	TPollRetxMS int
	// PollPDU is the PDU-count poll trigger, a positive multiple of 4, or Infinite.
	PollPDU int
	// PollByteKB is the byte-count poll trigger in KB, a positive multiple
	// of 25, or Infinite.
	PollByteKB int
	// MaxRetxThresh is the retransmission count that escalates a fault.
	MaxRetxThresh int
	// SNFieldLength selects the wire sequence-number width.
	SNFieldLength sn.Width
}

// DefaultConfig returns the NR reference defaults: 12-bit SN, 45ms
// reordering, 50ms status prohibit, 45ms poll retransmit, poll every 16 PDUs
// or 25KB, 8 retransmissions before fault escalation.
func DefaultConfig() Config {
	return Config{
		TReorderingMS:     45,
		TStatusProhibitMS: 50,
		TPollRetxMS:       45,
		PollPDU:           16,
		PollByteKB:        25,
		MaxRetxThresh:     8,
		SNFieldLength:     sn.Width12,
	}
}

var validMaxRetxThresh = map[int]bool{1: true, 2: true, 3: true, 4: true, 6: true, 8: true, 16: true, 32: true}

// Validate reports ErrConfigInvalid if any field falls outside its
// enumerated range. It refuses at configure time, per the error-handling
// design: configuration-invalid never surfaces through the data path.
func (c Config) Validate() error {
	if !inRangeStep(c.TReorderingMS, 0, 200, 5) {
		return fmt.Errorf("%w: t_reordering_ms=%d", ErrConfigInvalid, c.TReorderingMS)
	}
	if !inRangeStep(c.TStatusProhibitMS, 0, 500, 5) {
		return fmt.Errorf("%w: t_status_prohibit_ms=%d", ErrConfigInvalid, c.TStatusProhibitMS)
	}
	if !inRangeStep(c.TPollRetxMS, 5, 500, 5) {
		return fmt.Errorf("%w: t_poll_retx_ms=%d", ErrConfigInvalid, c.TPollRetxMS)
	}
	if c.PollPDU != Infinite && (c.PollPDU <= 0 || c.PollPDU%4 != 0) {
		return fmt.Errorf("%w: poll_pdu=%d", ErrConfigInvalid, c.PollPDU)
	}
	if c.PollByteKB != Infinite && (c.PollByteKB <= 0 || c.PollByteKB%25 != 0) {
		return fmt.Errorf("%w: poll_byte_kb=%d", ErrConfigInvalid, c.PollByteKB)
	}
	if !validMaxRetxThresh[c.MaxRetxThresh] {
		return fmt.Errorf("%w: max_retx_thresh=%d", ErrConfigInvalid, c.MaxRetxThresh)
	}
	if !c.SNFieldLength.Valid() {
		return fmt.Errorf("%w: sn_field_length=%d", ErrConfigInvalid, c.SNFieldLength)
	}

	return nil
}

func inRangeStep(v, lo, hi, step int) bool {
	return v >= lo && v <= hi && (v-lo)%step == 0
}

// pollByteBudget returns poll_byte_kb in bytes, or Infinite unchanged.
func (c Config) pollByteBudget() int {
	if c.PollByteKB == Infinite {
		return Infinite
	}

	return c.PollByteKB * 1000
}

func (c Config) reorderingDuration() time.Duration {
	return time.Duration(c.TReorderingMS) * time.Millisecond
}

func (c Config) statusProhibitDuration() time.Duration {
	return time.Duration(c.TStatusProhibitMS) * time.Millisecond
}

func (c Config) pollRetxDuration() time.Duration {
	return time.Duration(c.TPollRetxMS) * time.Millisecond
}
