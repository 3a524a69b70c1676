// SPDX-FileCopyrightText: 2024 The srsgnb community
// SPDX-License-Identifier: MIT

package rlcam

import "github.com/ranstack/rlcam/pdu"

// segmentInfoFor classifies a [offset, offset+length) sub-range of a
// totalLen-byte extent into the SI value its wire header must carry.
//
// This repo follows the NR data PDU format named in the design notes, which
// has no concatenation fields (no LI/E extensions): a single RLC SDU, not
// several, is carried per PDU. "Segment" below always means a byte range of
// one SDU, never a span across SDUs.
func segmentInfoFor(offset, length, totalLen int) pdu.SegmentInfo {
	first := offset == 0
	last := offset+length == totalLen

	switch {
	case first && last:
		return pdu.FullSDU
	case first:
		return pdu.FirstSegment
	case last:
		return pdu.LastSegment
	default:
		return pdu.MiddleSegment
	}
}
