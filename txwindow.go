// SPDX-FileCopyrightText: 2024 The srsgnb community
// SPDX-License-Identifier: MIT

package rlcam

import "github.com/ranstack/rlcam/sn"

// byteRange is a [Offset, Offset+Length) sub-range of a tx PDU record's full
// extent, used both for a nack'd partial range and for the prefix/remainder
// split a shrinking budget forces on a retransmission.
type byteRange struct {
	Offset, Length int
}

// txPDURecord is one entry of the tx window: an SN already assigned to a
// specific SDU byte range. It is retained until acked, since the peer may
// still nack it.
type txPDURecord struct {
	sn        sn.Num
	sdu       sduID
	sduOffset int // offset into the SDU where this SN's extent begins
	totalLen  int // length of the extent this SN covers

	polled    bool // poll was set on some prior transmission of this SN
	retxCount int
	acked     bool

	// pending holds the byte ranges (relative to this record's own extent,
	// i.e. [0, totalLen)) still owed to the peer: the whole extent after a
	// fresh nack or a t-PollRetransmit expiry, or just the nacked sub-range
	// for a byte-range nack. A resegmentation split that doesn't fit a
	// budget pushes its remainder back onto the front of this same slice,
	// which is what gives the remainder transmission priority over moving
	// on to the next pending SN.
	pending []byteRange
}

// txWindow is the map from SN to in-flight PDU plus the VT(A)/VT(S) state
// machine that bounds it.
type txWindow struct {
	width      sn.Width
	windowSize uint32

	vtA sn.Num // oldest unacked SN
	vtS sn.Num // next SN to assign

	records   map[sn.Num]*txPDURecord
	retxOrder []sn.Num // FIFO of SNs with a non-empty pending range list
}

func newTxWindow(width sn.Width) *txWindow {
	return &txWindow{
		width:      width,
		windowSize: width.WindowSize(),
		records:    make(map[sn.Num]*txPDURecord),
	}
}

// canAssignFresh reports whether a new SN can still be taken from VT(S)
// without leaving the window.
func (w *txWindow) canAssignFresh() bool {
	return w.vtS.InWindow(w.vtA, w.windowSize, w.width)
}

// assign inserts a freshly assembled PDU at VT(S) and advances VT(S).
func (w *txWindow) assign(sdu sduID, sduOffset, length int, poll bool) *txPDURecord {
	rec := &txPDURecord{
		sn:        w.vtS,
		sdu:       sdu,
		sduOffset: sduOffset,
		totalLen:  length,
		polled:    poll,
	}
	w.records[rec.sn] = rec
	w.vtS = w.vtS.Add(1, w.width)

	return rec
}

func (w *txWindow) get(n sn.Num) (*txPDURecord, bool) {
	r, ok := w.records[n]

	return r, ok
}

func (w *txWindow) occupancy() int {
	return len(w.records)
}

// enqueueRetx marks n for retransmission, appending ranges to its pending
// list and adding it to the FIFO retx order if it isn't already queued.
func (w *txWindow) enqueueRetx(n sn.Num, ranges []byteRange) {
	rec, ok := w.records[n]
	if !ok || rec.acked {
		return
	}

	wasEmpty := len(rec.pending) == 0
	rec.pending = append(rec.pending, ranges...)

	if wasEmpty {
		rec.retxCount++
		w.retxOrder = append(w.retxOrder, n)
	}
}

// enqueueFullRetx marks the entire extent of n for retransmission, as
// t-PollRetransmit expiry and a plain (no SO) nack both do.
func (w *txWindow) enqueueFullRetx(n sn.Num) {
	rec, ok := w.records[n]
	if !ok {
		return
	}
	w.enqueueRetx(n, []byteRange{{Offset: 0, Length: rec.totalLen}})
}

// nextRetx returns the SN and head pending range at the front of the retx
// FIFO, or ok=false if nothing is pending.
func (w *txWindow) nextRetx() (sn.Num, byteRange, bool) {
	for len(w.retxOrder) > 0 {
		n := w.retxOrder[0]

		rec, ok := w.records[n]
		if !ok || rec.acked || len(rec.pending) == 0 {
			w.retxOrder = w.retxOrder[1:]

			continue
		}

		return n, rec.pending[0], true
	}

	return 0, byteRange{}, false
}

// splitRetxHead replaces the front pending range of n with sent (consumed,
// dropped) followed by remainder (if non-empty, kept at the front so it is
// served before any other queued SN).
func (w *txWindow) splitRetxHead(n sn.Num, remainder *byteRange) {
	rec, ok := w.records[n]
	if !ok || len(rec.pending) == 0 {
		return
	}

	rec.pending = rec.pending[1:]
	if remainder != nil {
		rec.pending = append([]byteRange{*remainder}, rec.pending...)
	}

	if len(rec.pending) == 0 && len(w.retxOrder) > 0 && w.retxOrder[0] == n {
		w.retxOrder = w.retxOrder[1:]
	}
}

// hasPendingRetx reports whether any SN still owes the peer a retransmitted
// byte range, used by the poll-trigger "queue would become empty" check.
func (w *txWindow) hasPendingRetx() bool {
	_, _, ok := w.nextRetx()

	return ok
}

// highestUnacked returns the SN nearest VT(S) that is still unacked, for
// t-PollRetransmit expiry's "select the highest unacked SN" rule.
func (w *txWindow) highestUnacked() (sn.Num, bool) {
	var (
		best    sn.Num
		bestDst uint32
		found   bool
	)

	for n, rec := range w.records {
		if rec.acked {
			continue
		}

		d := n.Distance(w.vtA, w.width)
		if !found || d > bestDst {
			best, bestDst, found = n, d, true
		}
	}

	return best, found
}

// ackResult is returned by applyStatus so the caller (the entity) can
// release acked SDU references and escalate any retx-exceeded record.
type ackResult struct {
	ackedSNs     []sn.Num
	ackedSDUs    []sduID
	retxExceeded []sn.Num
	pollAcked    bool
}

// applyStatus marks every SN in [VT(A), ackSN) as acked unless it appears in
// nacks, then advances VT(A) across the resulting contiguous acked prefix.
// It never advances past a still-unacked SN, per the invariant that VT(A) is
// the oldest unacked SN. maxRetx is the configured retransmission threshold;
// a nacked SN whose retxCount has reached it is reported in retxExceeded (on
// every status that nacks it again, not only the first) so the caller can
// raise max_retx_attempted. pollAcked reports whether any SN
// that had carried the poll bit was acked by this report -- t-PollRetransmit's
// stop condition, "poll acknowledged in a received status".
func (w *txWindow) applyStatus(ackSN sn.Num, nacks map[sn.Num][]byteRange, maxRetx int) ackResult {
	var res ackResult

	n := w.vtA
	for n.LessThan(ackSN, w.vtA, w.width) {
		rec, ok := w.records[n]
		if !ok {
			n = n.Add(1, w.width)

			continue
		}

		if ranges, nacked := nacks[n]; nacked {
			if len(ranges) == 0 {
				w.enqueueFullRetx(n)
			} else {
				w.enqueueRetx(n, ranges)
			}

			if rec.retxCount >= maxRetx {
				res.retxExceeded = append(res.retxExceeded, n)
			}
		} else {
			rec.acked = true

			if rec.polled {
				res.pollAcked = true
				rec.polled = false
			}
		}

		n = n.Add(1, w.width)
	}

	for {
		rec, ok := w.records[w.vtA]
		if !ok || !rec.acked {
			break
		}

		res.ackedSNs = append(res.ackedSNs, w.vtA)
		res.ackedSDUs = append(res.ackedSDUs, rec.sdu)
		delete(w.records, w.vtA)
		w.vtA = w.vtA.Add(1, w.width)
	}

	return res
}

// reset clears all window state, per the entity-wide reset operation.
func (w *txWindow) reset() {
	w.vtA = 0
	w.vtS = 0
	w.records = make(map[sn.Num]*txPDURecord)
	w.retxOrder = nil
}
