// SPDX-FileCopyrightText: 2024 The srsgnb community
// SPDX-License-Identifier: MIT

// Package rlcam implements a single RLC acknowledged-mode entity: one
// bidirectional bearer endpoint running the segmentation, ARQ, and
// reassembly procedures of 3GPP TS 38.322's AM data transfer, independent
// of any particular transport or scheduler.
package rlcam

import (
	"errors"
	"sync"

	"github.com/ranstack/rlcam/pdu"
	"github.com/ranstack/rlcam/pool"
	"github.com/ranstack/rlcam/sn"
)

// SDUSink receives SDUs reassembled on the receive side, in delivery order.
type SDUSink interface {
	DeliverSDU(lcid uint8, sdu []byte)
}

// FaultSink is notified when an SN exhausts its retransmission budget. The
// entity then refuses further traffic (ErrFaulted) until Reset is called,
// mirroring the real protocol's reliance on an outer RRC re-establishment.
type FaultSink interface {
	MaxRetxAttempted(lcid uint8, n sn.Num)
}

// Entity is one RLC AM bearer: the tx SDU queue, tx window, tx assembler,
// rx window, reassembler, status generator, and timer coordinator wired
// together behind a single mutex. Every exported method is one of the five
// external operations in the design notes (write_sdu, read_pdu, write_pdu,
// get_buffer_state, reset); none of them block, and none of them re-enter
// each other.
type Entity struct {
	mu sync.Mutex

	cfg  Config
	lcid uint8

	log     Logger
	metrics *Metrics
	pool    pool.Pool

	sinkSDU   SDUSink
	sinkFault FaultSink

	timers *timerCoordinator

	txSDUs *sduTable
	txQ    *txSDUQueue
	txWin  *txWindow
	asm    *txAssembler

	rxWin  *rxWindow
	status statusGenerator

	faulted bool
}

// NewEntity constructs an Entity for logical channel lcid. logger and
// metrics may be nil (NopLogger and a no-op Metrics are substituted);
// timerSvc defaults to NewTimerService() if nil.
func NewEntity(cfg Config, lcid uint8, p pool.Pool, timerSvc TimerService, log Logger, metrics *Metrics, sinkSDU SDUSink, sinkFault FaultSink) (*Entity, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = NopLogger{}
	}
	if timerSvc == nil {
		timerSvc = NewTimerService()
	}

	txSDUs := newSDUTable(p)
	txQ := &txSDUQueue{}
	txWin := newTxWindow(cfg.SNFieldLength)
	asm := newTxAssembler(cfg.SNFieldLength, cfg, txWin, txQ, txSDUs)
	rxWin := newRxWindow(cfg.SNFieldLength)

	e := &Entity{
		cfg:       cfg,
		lcid:      lcid,
		log:       log,
		metrics:   metrics,
		pool:      p,
		sinkSDU:   sinkSDU,
		sinkFault: sinkFault,
		txSDUs:    txSDUs,
		txQ:       txQ,
		txWin:     txWin,
		asm:       asm,
		rxWin:     rxWin,
	}
	e.timers = newTimerCoordinator(timerSvc, e.onTimerExpiry)

	return e, nil
}

// WriteSDU queues sdu for transmission. The entity copies it into a
// pool-owned buffer; the caller's slice may be reused immediately after
// this returns.
func (e *Entity) WriteSDU(sdu []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.faulted {
		return ErrFaulted
	}

	buf, err := e.pool.Get(len(sdu))
	if err != nil {
		if errors.Is(err, pool.ErrBufferOverflow) {
			return ErrBufferOverflow
		}

		e.metrics.exhausted()

		return ErrPoolExhausted
	}
	copy(buf.Msg, sdu)

	id := e.txSDUs.insert(buf, len(sdu))
	e.txQ.push(id, len(sdu))

	e.metrics.submittedSDU()
	e.log.Debug("sdu queued", "lcid", e.lcid, "bytes", len(sdu))

	return nil
}

// ReadPDU pulls the next PDU this entity wants to send, up to budget bytes.
// It returns (nil, nil) if nothing is currently sendable within budget.
// Priority order: a due status report, then a pending retransmission
// (whole or resegmented), then a fresh transmission from the SDU queue.
func (e *Entity) ReadPDU(budget int) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.faulted {
		return nil, ErrFaulted
	}

	if e.statusDue() {
		hdr := e.rxWin.buildStatus()

		out, err := pdu.MarshalStatus(hdr, e.cfg.SNFieldLength)
		if err == nil && len(out) <= budget {
			e.status.clearPending()
			e.armStatusProhibit()
			e.metrics.sentStatus()
			e.metrics.sentPDU("status")

			return out, nil
		}
	}

	out, ok, err := e.asm.readPDU(budget)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	if out.pollSet {
		e.timers.start(timerPollRetransmit, e.cfg.pollRetxDuration())
	}

	kind := "new"
	if out.isRetx {
		kind = "retx"
		e.metrics.retx()
	}
	e.metrics.sentPDU(kind)
	e.metrics.setTxWindowOccupancy(e.txWin.occupancy())

	return out.bytes, nil
}

// statusDue reports whether a status report is owed and t-StatusProhibit
// isn't currently blocking one from being sent.
func (e *Entity) statusDue() bool {
	return e.status.pending && !e.timers.isRunning(timerStatusProhibit)
}

func (e *Entity) armStatusProhibit() {
	if e.cfg.TStatusProhibitMS > 0 {
		e.timers.start(timerStatusProhibit, e.cfg.statusProhibitDuration())
	}
}

// WritePDU delivers a PDU received from the peer. Malformed PDUs are dropped
// silently (decode-reject failure mode). A data PDU whose SN falls outside
// the receive window is dropped and reported as ErrWindowViolation; a pool
// exhaustion while reassembling returns ErrPoolExhausted, and a faulted
// entity returns ErrFaulted.
func (e *Entity) WritePDU(raw []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.faulted {
		return ErrFaulted
	}

	isData, err := pdu.IsDataPDU(raw)
	if err != nil {
		e.dropMalformed()

		return nil
	}

	if isData {
		return e.writeDataPDU(raw)
	}

	return e.writeStatusPDU(raw)
}

func (e *Entity) writeDataPDU(raw []byte) error {
	hdr, n, err := pdu.UnmarshalDataHeader(raw, e.cfg.SNFieldLength)
	if err != nil {
		e.dropMalformed()

		return nil
	}

	accepted, delivered, startReordering, err := e.rxWin.receive(hdr, raw[n:], e.pool)
	if err != nil {
		e.metrics.exhausted()

		return ErrPoolExhausted
	}
	if !accepted {
		e.dropReason("window_violation")

		return ErrWindowViolation
	}

	if startReordering {
		e.timers.start(timerReordering, e.cfg.reorderingDuration())
	}

	for _, d := range delivered {
		e.sinkSDU.DeliverSDU(e.lcid, d.buf.Msg)
		e.pool.Put(d.buf)
		e.metrics.deliveredSDU()
	}

	e.metrics.setRxWindowOccupancy(len(e.rxWin.records))

	if hdr.Poll || e.rxWin.missingBelowHighest() {
		e.status.markPending()
	}

	return nil
}

func (e *Entity) writeStatusPDU(raw []byte) error {
	shdr, err := pdu.UnmarshalStatus(raw, e.cfg.SNFieldLength)
	if err != nil {
		e.dropMalformed()

		return nil
	}

	nacks := make(map[sn.Num][]byteRange, len(shdr.Nacks))

	for _, nr := range shdr.Nacks {
		if !nr.HasSORange {
			if _, ok := nacks[nr.SN]; !ok {
				nacks[nr.SN] = nil
			}

			continue
		}

		end := int(nr.SOEnd)
		if nr.SOEnd == pdu.SOEndOfPDU {
			if rec, ok := e.txWin.get(nr.SN); ok {
				end = rec.totalLen - 1
			} else {
				continue
			}
		}

		length := end - int(nr.SOStart) + 1
		if length <= 0 {
			continue
		}

		nacks[nr.SN] = append(nacks[nr.SN], byteRange{Offset: int(nr.SOStart), Length: length})
	}

	res := e.txWin.applyStatus(shdr.AckSN, nacks, e.cfg.MaxRetxThresh)

	if res.pollAcked {
		e.timers.stop(timerPollRetransmit)
	}

	for _, id := range res.ackedSDUs {
		e.txSDUs.release(id)
	}

	for _, n := range res.retxExceeded {
		e.faulted = true
		e.metrics.maxRetx()

		if e.sinkFault != nil {
			e.sinkFault.MaxRetxAttempted(e.lcid, n)
		}
	}

	if len(res.retxExceeded) > 0 {
		// Escalation clears the tx SDU queue and stops every timer; the
		// queued SDU buffers stay in txSDUs until Reset releases them.
		e.timers.stopAll()
		e.txQ.items = nil
		e.txQ.bytes = 0
	}

	e.metrics.setTxWindowOccupancy(e.txWin.occupancy())

	return nil
}

func (e *Entity) dropMalformed() {
	e.dropReason("malformed")
}

func (e *Entity) dropReason(reason string) {
	e.metrics.droppedPDU(reason)
	e.log.Warn("dropped pdu", "lcid", e.lcid, "reason", reason)
}

// GetBufferState reports the worst-case number of bytes this entity would
// need to hand the scheduler to drain everything it currently has queued or
// outstanding, including a due status report.
func (e *Entity) GetBufferState() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.faulted {
		return 0, ErrFaulted
	}

	total := e.asm.getBufferState()

	if e.status.pending {
		if out, err := pdu.MarshalStatus(e.rxWin.buildStatus(), e.cfg.SNFieldLength); err == nil {
			total += len(out)
		}
	}

	return total, nil
}

// Reset clears all tx and rx state and releases every pool buffer this
// entity currently owns, as after an RRC re-establishment. A faulted entity
// becomes usable again.
func (e *Entity) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.timers.stopAll()
	e.txWin.reset()
	for _, rec := range e.rxWin.records {
		for _, f := range rec.fragments {
			e.pool.Put(f.buf)
		}
	}
	e.rxWin.reset()
	e.asm.reset()
	e.txSDUs.reset()
	e.txQ = &txSDUQueue{}
	e.asm.queue = e.txQ
	e.status.clearPending()
	e.faulted = false
}

// onTimerExpiry is the single re-entry point every timer callback uses; it
// always acquires the entity's own mutex rather than acting on entity state
// from whatever goroutine the TimerService runs callbacks on.
func (e *Entity) onTimerExpiry(k timerKind) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// The timer that fired is no longer running.
	e.timers.running[k] = nil

	if e.faulted {
		return
	}

	switch k {
	case timerReordering:
		e.rxWin.onReorderingExpiry()
		e.status.markPending()
	case timerStatusProhibit:
		// No direct action: its expiry only lifts the statusDue() gate for
		// the next ReadPDU call.
	case timerPollRetransmit:
		if n, ok := e.txWin.highestUnacked(); ok {
			e.txWin.enqueueFullRetx(n)
		}
	}

	e.log.Debug("timer expired", "lcid", e.lcid, "timer", k.String())
}
