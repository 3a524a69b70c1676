// SPDX-FileCopyrightText: 2024 The srsgnb community
// SPDX-License-Identifier: MIT

package rlcam

import (
	"github.com/ranstack/rlcam/pdu"
	"github.com/ranstack/rlcam/sn"
)

// txAssembler implements the tx side's read_pdu/get_buffer_state logic: a
// pending retransmission (plain or resegmented) is tried before a new
// transmission, and a new transmission is tried only when the head
// retransmission cannot fit the budget. A new transmission is only ever
// pulled from the front of the SDU queue. It holds no buffer of its own; every byte it emits is sliced
// straight out of an sduTable entry.
type txAssembler struct {
	width sn.Width
	cfg   Config

	window *txWindow
	queue  *txSDUQueue
	sdus   *sduTable

	pollPDUCount  int
	pollByteCount int
}

func newTxAssembler(width sn.Width, cfg Config, window *txWindow, queue *txSDUQueue, sdus *sduTable) *txAssembler {
	return &txAssembler{width: width, cfg: cfg, window: window, queue: queue, sdus: sdus}
}

// assembled is one data PDU worth of output: its wire bytes, the SN it was
// sent under, whether it was a retransmission, and whether the poll bit was
// set (the caller arms t-PollRetransmit on the latter).
type assembled struct {
	bytes   []byte
	sn      sn.Num
	isRetx  bool
	pollSet bool
}

// readPDU produces the next data PDU within budget bytes, or reports ok=false
// if neither a retransmission nor a new transmission currently fits. Status
// PDUs are not this type's concern; the entity gives them read_pdu priority
// before ever calling in here.
func (a *txAssembler) readPDU(budget int) (out assembled, ok bool, err error) {
	if out, ok, err = a.readRetx(budget); ok || err != nil {
		return out, ok, err
	}

	return a.readNew(budget)
}

func (a *txAssembler) readRetx(budget int) (out assembled, ok bool, err error) {
	n, rng, ok := a.window.nextRetx()
	if !ok {
		return assembled{}, false, nil
	}

	rec, _ := a.window.get(n)
	entry, _ := a.sdus.get(rec.sdu)

	absOffset := rec.sduOffset + rng.Offset
	si := segmentInfoFor(absOffset, rng.Length, entry.size)

	hlen := pdu.HeaderLen(si, a.width)
	avail := budget - hlen
	if avail <= 0 {
		return assembled{}, false, nil
	}

	sendLen := rng.Length

	var remainder *byteRange
	if avail < sendLen {
		sendLen = avail
		remainder = &byteRange{Offset: rng.Offset + sendLen, Length: rng.Length - sendLen}
	}

	finalSI := segmentInfoFor(absOffset, sendLen, entry.size)
	a.window.splitRetxHead(n, remainder)

	payload := a.sdus.bytes(rec.sdu, absOffset, sendLen)
	pollSet := a.accountPoll(sendLen)
	if pollSet {
		rec.polled = true
	}

	hdr := pdu.DataHeader{Poll: pollSet, SI: finalSI, SN: n}
	if finalSI.HasExplicitSO() {
		hdr.SO = uint16(absOffset)
	}

	bytes, err := marshalData(hdr, payload, a.width)
	if err != nil {
		return assembled{}, false, err
	}

	return assembled{bytes: bytes, sn: n, isRetx: true, pollSet: pollSet}, true, nil
}

func (a *txAssembler) readNew(budget int) (out assembled, ok bool, err error) {
	if a.queue.empty() || !a.window.canAssignFresh() {
		return assembled{}, false, nil
	}

	item := a.queue.front()
	absOffset := item.consumed
	remaining := item.remaining()

	si := segmentInfoFor(absOffset, remaining, item.size)
	hlen := pdu.HeaderLen(si, a.width)
	avail := budget - hlen
	if avail <= 0 {
		return assembled{}, false, nil
	}

	sendLen := remaining
	if avail < sendLen {
		sendLen = avail
	}

	finalSI := segmentInfoFor(absOffset, sendLen, item.size)

	payload := a.sdus.bytes(item.id, absOffset, sendLen)
	rec := a.window.assign(item.id, absOffset, sendLen, false)
	a.sdus.addRef(item.id)
	a.queue.advance(sendLen)

	pollSet := a.accountPoll(sendLen)
	if pollSet {
		rec.polled = true
	}

	hdr := pdu.DataHeader{Poll: pollSet, SI: finalSI, SN: rec.sn}
	if finalSI.HasExplicitSO() {
		hdr.SO = uint16(absOffset)
	}

	bytes, err := marshalData(hdr, payload, a.width)
	if err != nil {
		return assembled{}, false, err
	}

	return assembled{bytes: bytes, sn: rec.sn, isRetx: false, pollSet: pollSet}, true, nil
}

// accountPoll updates the poll_pdu/poll_byte counters for a just-sent PDU of
// sendLen payload bytes and reports whether this PDU must carry the poll
// bit: either counter tripped its configured threshold, or nothing at all
// remains to send afterward (the queue-drained condition).
func (a *txAssembler) accountPoll(sendLen int) bool {
	a.pollPDUCount++
	a.pollByteCount += sendLen

	pollSet := false

	if a.cfg.PollPDU != Infinite && a.pollPDUCount >= a.cfg.PollPDU {
		pollSet = true
	}
	if budget := a.cfg.pollByteBudget(); budget != Infinite && a.pollByteCount >= budget {
		pollSet = true
	}
	if a.queue.empty() && !a.window.hasPendingRetx() {
		pollSet = true
	}

	if pollSet {
		a.pollPDUCount = 0
		a.pollByteCount = 0
	}

	return pollSet
}

// getBufferState returns the worst-case number of bytes this assembler
// would need to drain everything outstanding: every pending retransmission
// range (its own header plus payload) and every still-queued SDU (assuming
// each is eventually sent as a single PDU of its own).
func (a *txAssembler) getBufferState() int {
	total := 0

	for _, rec := range a.window.records {
		entry, ok := a.sdus.get(rec.sdu)
		if !ok {
			continue
		}
		for _, rng := range rec.pending {
			absOffset := rec.sduOffset + rng.Offset
			si := segmentInfoFor(absOffset, rng.Length, entry.size)
			total += pdu.HeaderLen(si, a.width) + rng.Length
		}
	}

	for _, item := range a.queue.items {
		si := segmentInfoFor(item.consumed, item.remaining(), item.size)
		total += pdu.HeaderLen(si, a.width) + item.remaining()
	}

	return total
}

// reset clears the poll_pdu/poll_byte counters, for the entity-wide reset
// operation.
func (a *txAssembler) reset() {
	a.pollPDUCount = 0
	a.pollByteCount = 0
}

func marshalData(hdr pdu.DataHeader, payload []byte, width sn.Width) ([]byte, error) {
	buf := make([]byte, hdr.MarshalSize(width)+len(payload))

	n, err := hdr.MarshalTo(buf, width)
	if err != nil {
		return nil, err
	}

	copy(buf[n:], payload)

	return buf, nil
}
