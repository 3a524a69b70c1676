// SPDX-FileCopyrightText: 2024 The srsgnb community
// SPDX-License-Identifier: MIT

package rlcam

import (
	"github.com/ranstack/rlcam/pdu"
	"github.com/ranstack/rlcam/pool"
	"github.com/ranstack/rlcam/sn"
)

// rxWindow is the receive side's SN-indexed reassembly state plus the
// VR(R)/VR(H)/VR(X) state machine that drives in-order delivery and
// t-Reordering.
type rxWindow struct {
	width      sn.Width
	windowSize uint32

	vrR sn.Num // lowest SN not yet fully received/delivered
	vrH sn.Num // one past the highest SN for which any byte has been received

	vrXValid bool
	vrX      sn.Num // exclusive upper bound the status generator scans to

	reorderingAnchorSet bool
	reorderingAnchor    sn.Num

	records map[sn.Num]*reassemblyState
}

func newRxWindow(width sn.Width) *rxWindow {
	return &rxWindow{
		width:      width,
		windowSize: width.WindowSize(),
		records:    make(map[sn.Num]*reassemblyState),
	}
}

// inWindow reports whether n falls in [VR(R), VR(R)+window_size), the only
// range of SNs this entity will accept data for.
func (w *rxWindow) inWindow(n sn.Num) bool {
	return n.InWindow(w.vrR, w.windowSize, w.width)
}

// deliveredSDU is one SDU ready to hand to the upper layer, in VR(R) order.
type deliveredSDU struct {
	sn  sn.Num
	buf *pool.Buffer
}

// receive records one data PDU's segment. It reports whether the SN was
// within the receive window (an out-of-window SN is simply dropped, per the
// window-violation invariant) and the list of SDUs now deliverable in order,
// which may include SNs beyond n if their coverage was already complete.
func (w *rxWindow) receive(hdr pdu.DataHeader, payload []byte, p pool.Pool) (accepted bool, delivered []deliveredSDU, startReordering bool, err error) {
	if !w.inWindow(hdr.SN) {
		return false, nil, false, nil
	}

	offset, last := rxExtentFor(hdr, len(payload))

	rec, ok := w.records[hdr.SN]
	if !ok {
		rec = newReassemblyState()
		w.records[hdr.SN] = rec
	}

	buf, err := p.Get(len(payload))
	if err != nil {
		return true, nil, false, err
	}
	copy(buf.Msg, payload)

	rec.addFragment(offset, buf, last)

	if d := hdr.SN.Distance(w.vrR, w.width) + 1; w.vrH.Distance(w.vrR, w.width) < d {
		w.vrH = hdr.SN.Add(1, w.width)
	}

	delivered = w.drain(p)
	startReordering, _ = w.maybeStartReordering()

	return true, delivered, startReordering, nil
}

// rxExtentFor derives the [offset, ...) placement of a data PDU's payload
// and whether it fixes the SDU's total length, from its SI/SO fields.
func rxExtentFor(hdr pdu.DataHeader, payloadLen int) (offset int, last bool) {
	switch hdr.SI {
	case pdu.FullSDU:
		return 0, true
	case pdu.FirstSegment:
		return 0, false
	case pdu.LastSegment:
		return int(hdr.SO), true
	default: // MiddleSegment
		return int(hdr.SO), false
	}
}

// drain advances VR(R) across every now-complete, contiguous SN starting at
// VR(R), assembling and returning each SDU in order.
func (w *rxWindow) drain(p pool.Pool) []deliveredSDU {
	var out []deliveredSDU

	startVrR := w.vrR
	anchorDist := w.reorderingAnchor.Distance(startVrR, w.width)

	for {
		rec, ok := w.records[w.vrR]
		if !ok || !rec.complete() {
			break
		}

		buf, err := rec.assemble(p)
		if err != nil {
			break
		}

		out = append(out, deliveredSDU{sn: w.vrR, buf: buf})
		delete(w.records, w.vrR)
		w.vrR = w.vrR.Add(1, w.width)
	}

	// If VR(R) has reached or passed the remembered reordering anchor, every
	// gap below it resolved on its own and the timer's eventual expiry would
	// have nothing left to report; stop waiting on it.
	if w.reorderingAnchorSet && w.vrR.Distance(startVrR, w.width) >= anchorDist {
		w.reorderingAnchorSet = false
	}

	return out
}

// maybeStartReordering arms t-Reordering, anchored to the current VR(H), the
// first time a gap appears below it. The timer is never restarted while
// already running; only its eventual expiry (onReorderingExpiry) or VR(R)
// catching up to the anchor clears reorderingAnchorSet.
func (w *rxWindow) maybeStartReordering() (shouldStart bool, anchor sn.Num) {
	if w.reorderingAnchorSet {
		return false, 0
	}

	if w.vrH == w.vrR {
		return false, 0
	}

	w.reorderingAnchorSet = true
	w.reorderingAnchor = w.vrH

	return true, w.vrH
}

// onReorderingExpiry implements the t-Reordering expiry action: the anchor
// becomes VR(X), the value the status generator scans up to, and the timer
// slot is freed for a future gap.
func (w *rxWindow) onReorderingExpiry() {
	if !w.reorderingAnchorSet {
		return
	}

	w.vrX = w.reorderingAnchor
	w.vrXValid = true
	w.reorderingAnchorSet = false
}

// missingBelowHighest reports whether any SN in [VR(R), VR(H)) has not yet
// been (fully) received, the "detection of a missing SN below VR(H)" status
// trigger.
func (w *rxWindow) missingBelowHighest() bool {
	n := w.vrR
	for n != w.vrH {
		rec, ok := w.records[n]
		if !ok || !rec.complete() {
			return true
		}

		n = n.Add(1, w.width)
	}

	return false
}

// reset clears all receive-side state, per the entity-wide reset operation.
func (w *rxWindow) reset() {
	w.vrR = 0
	w.vrH = 0
	w.vrXValid = false
	w.vrX = 0
	w.reorderingAnchorSet = false
	w.records = make(map[sn.Num]*reassemblyState)
}
