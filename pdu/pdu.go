// SPDX-FileCopyrightText: 2024 The srsgnb community
// SPDX-License-Identifier: MIT

// Package pdu implements the bit-exact framing of RLC acknowledged-mode
// protocol data units: the data PDU header (10-bit, 12-bit and 18-bit
// sequence number variants) and the status control PDU. Field layouts follow 3GPP
// TS 38.322 for the NR variant named in the design notes.
package pdu

import (
	"errors"
	"fmt"
)

// SegmentInfo is the 2-bit SI field of a data PDU header.
type SegmentInfo uint8

// SI field values, per 3GPP TS 38.322 6.2.2.4.
const (
	FullSDU       SegmentInfo = 0b00
	FirstSegment  SegmentInfo = 0b01
	LastSegment   SegmentInfo = 0b10
	MiddleSegment SegmentInfo = 0b11 // "neither" first nor last
)

// String renders si for logging.
func (si SegmentInfo) String() string {
	switch si {
	case FullSDU:
		return "full_sdu"
	case FirstSegment:
		return "first_segment"
	case LastSegment:
		return "last_segment"
	case MiddleSegment:
		return "middle_segment"
	default:
		return "unknown"
	}
}

// hasExplicitSO reports whether this SI value carries an encoded SO field.
// A first segment always starts at byte 0, so its offset is implied rather
// than written to the wire.
func (si SegmentInfo) hasExplicitSO() bool {
	return si == LastSegment || si == MiddleSegment
}

// HasExplicitSO is the exported form of hasExplicitSO, for callers (the tx
// assembler) that need to know whether an SO field must be written before
// they've built a full DataHeader.
func (si SegmentInfo) HasExplicitSO() bool {
	return si.hasExplicitSO()
}

// Sentinel errors surfaced by decode failures. A caller distinguishes
// ErrReservedBitsSet (malformed header -- drop and continue) from
// ErrTruncated (not enough bytes to decode a full header) only for logging;
// both are decode-reject per the entity's failure semantics.
var (
	ErrTruncated       = errors.New("pdu: buffer too short for header")
	ErrReservedBitsSet = errors.New("pdu: reserved bits set")
	ErrNotDataPDU      = errors.New("pdu: D/C bit indicates a control PDU")
	ErrNotControlPDU   = errors.New("pdu: D/C bit indicates a data PDU")
	ErrUnknownCPT      = errors.New("pdu: unsupported control PDU type")
	ErrBufferOverflow  = errors.New("pdu: output buffer too small")
)

// IsDataPDU reports whether the D/C bit of the first octet marks buf as a
// data PDU. The caller must supply at least one byte.
func IsDataPDU(buf []byte) (bool, error) {
	if len(buf) < 1 {
		return false, fmt.Errorf("%w: 0 < 1", ErrTruncated)
	}

	return buf[0]&0x80 != 0, nil
}
