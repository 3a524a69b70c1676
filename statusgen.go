// SPDX-FileCopyrightText: 2024 The srsgnb community
// SPDX-License-Identifier: MIT

package rlcam

import (
	"github.com/ranstack/rlcam/pdu"
	"github.com/ranstack/rlcam/sn"
)

// statusGenerator tracks whether a STATUS report is owed. The report itself
// is built from rx window state by rxWindow.buildStatus; this type owns none
// of that state, matching the entity's single-mutex, no-hidden-state design.
type statusGenerator struct {
	pending bool // a trigger fired and no report has been sent since
}

// statusTrigger names why a status report became due, purely for logging.
type statusTrigger int

const (
	triggerPollReceived statusTrigger = iota
	triggerReorderingExpiry
	triggerMissingBelowHighest
)

func (t statusTrigger) String() string {
	switch t {
	case triggerPollReceived:
		return "poll-received"
	case triggerReorderingExpiry:
		return "reordering-expiry"
	case triggerMissingBelowHighest:
		return "missing-below-highest"
	default:
		return "unknown-trigger"
	}
}

// markPending records that a report is owed once t-StatusProhibit allows it.
func (g *statusGenerator) markPending() {
	g.pending = true
}

func (g *statusGenerator) clearPending() {
	g.pending = false
}

// buildStatus scans [VR(R), VR(X)) for gaps and returns the STATUS PDU
// reporting them. ackSN is VR(X) itself: the first SN the report does not
// yet vouch for, per the testable property in the design notes. If VR(X) has
// never been set (no reordering expiry has happened yet), or VR(R) has
// already moved past it, the scan range is empty and the report acks every
// SN below VR(R) with no nacks.
func (w *rxWindow) buildStatus() pdu.StatusHeader {
	hdr := pdu.StatusHeader{AckSN: w.vrR}

	if !w.vrXValid || w.vrX.Distance(w.vrR, w.width) >= w.windowSize {
		return hdr
	}

	hdr.AckSN = w.vrX

	n := w.vrR
	for n != w.vrX {
		rec, ok := w.records[n]

		switch {
		case !ok:
			hdr.Nacks = append(hdr.Nacks, pdu.NackRecord{SN: n})
		case !rec.complete():
			hdr.Nacks = append(hdr.Nacks, gapsFor(n, rec)...)
		}

		n = n.Add(1, w.width)
	}

	return hdr
}

// gapsFor returns one NACK entry per hole in rec's coverage. Until a
// full_sdu or last_segment fragment has fixed the total length, nothing is
// known about what lies beyond the last received byte, so the whole SN is
// nacked with no SO range; once the length is known, each gap in [0,
// totalLen) becomes its own byte-range NACK.
func gapsFor(n sn.Num, rec *reassemblyState) []pdu.NackRecord {
	if !rec.sawLast {
		return []pdu.NackRecord{{SN: n}}
	}

	var out []pdu.NackRecord

	cursor := 0
	for _, c := range rec.coverage {
		if c.Offset > cursor {
			out = append(out, pdu.NackRecord{
				SN:         n,
				HasSORange: true,
				SOStart:    uint16(cursor),
				SOEnd:      uint16(c.Offset - 1),
			})
		}
		cursor = c.Offset + c.Length
	}

	if cursor < rec.totalLen {
		out = append(out, pdu.NackRecord{
			SN:         n,
			HasSORange: true,
			SOStart:    uint16(cursor),
			SOEnd:      uint16(rec.totalLen - 1),
		})
	}

	if len(out) == 0 {
		// Fully covered but complete() was false for some other reason
		// (shouldn't happen in practice); fall back to a plain nack rather
		// than silently reporting nothing.
		out = append(out, pdu.NackRecord{SN: n})
	}

	return out
}
