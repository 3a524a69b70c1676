// SPDX-FileCopyrightText: 2024 The srsgnb community
// SPDX-License-Identifier: MIT

package rlcam

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ranstack/rlcam/pdu"
	"github.com/ranstack/rlcam/pool"
	"github.com/ranstack/rlcam/sn"
)

// fakeTimer and fakeTimerService let tests fire timer expiries deterministically
// instead of waiting on the wall clock.
type fakeTimer struct {
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true

	return true
}

type fakeTimerService struct {
	scheduled []*fakeTimer
}

func (s *fakeTimerService) AfterFunc(_ time.Duration, fn func()) Timer {
	t := &fakeTimer{fn: fn}
	s.scheduled = append(s.scheduled, t)

	return t
}

// fireLast invokes the most recently scheduled, still-live timer.
func (s *fakeTimerService) fireLast() {
	for i := len(s.scheduled) - 1; i >= 0; i-- {
		if !s.scheduled[i].stopped {
			s.scheduled[i].fn()

			return
		}
	}
}

type fakeSDUSink struct {
	delivered [][]byte
}

func (s *fakeSDUSink) DeliverSDU(_ uint8, sdu []byte) {
	cp := make([]byte, len(sdu))
	copy(cp, sdu)
	s.delivered = append(s.delivered, cp)
}

type fakeFaultSink struct {
	faulted []sn.Num
}

func (s *fakeFaultSink) MaxRetxAttempted(_ uint8, n sn.Num) {
	s.faulted = append(s.faulted, n)
}

func newTestEntity(t *testing.T, sink SDUSink, fault FaultSink) (*Entity, *fakeTimerService) {
	t.Helper()

	ts := &fakeTimerService{}
	e, err := NewEntity(DefaultConfig(), 3, pool.New(), ts, nil, nil, sink, fault)
	require.NoError(t, err)

	return e, ts
}

// TestLossAndRetransmit reproduces the single-SDU-per-PDU loss scenario: five
// 1-byte SDUs are sent, the PDU carrying SN 1 never arrives, t-Reordering
// expiry on the receiver produces a status report nacking it, and the
// retransmission completes in-order delivery.
func TestLossAndRetransmit(t *testing.T) {
	txSink := &fakeSDUSink{}
	rxSink := &fakeSDUSink{}

	tx, _ := newTestEntity(t, txSink, nil)
	rx, rxTimers := newTestEntity(t, rxSink, nil)

	for i := byte(0); i < 5; i++ {
		require.NoError(t, tx.WriteSDU([]byte{i}))
	}

	var pdus [][]byte
	for {
		out, err := tx.ReadPDU(64)
		require.NoError(t, err)
		if out == nil {
			break
		}
		pdus = append(pdus, out)
	}
	require.Len(t, pdus, 5)

	for i, p := range pdus {
		if i == 1 {
			continue // drop SN 1
		}
		require.NoError(t, rx.WritePDU(p))
	}

	require.Len(t, rxSink.delivered, 1)
	assert.Equal(t, []byte{0}, rxSink.delivered[0])

	rxTimers.fireLast() // t-Reordering expiry

	status, err := rx.ReadPDU(64)
	require.NoError(t, err)
	require.NotNil(t, status)

	shdr, err := pdu.UnmarshalStatus(status, DefaultConfig().SNFieldLength)
	require.NoError(t, err)
	// t-Reordering's anchor freezes at VR(H) the moment it starts (on SN 2's
	// arrival, the first time a gap exists): VR(X) only covers [1, 3) even
	// though SN 3 and 4 arrive before the timer fires.
	assert.EqualValues(t, 3, shdr.AckSN)
	require.Len(t, shdr.Nacks, 1)
	assert.EqualValues(t, 1, shdr.Nacks[0].SN)
	assert.False(t, shdr.Nacks[0].HasSORange)

	require.NoError(t, tx.WritePDU(status))

	retx, err := tx.ReadPDU(3)
	require.NoError(t, err)
	require.NotNil(t, retx)

	require.NoError(t, rx.WritePDU(retx))

	require.Len(t, rxSink.delivered, 5)
	for i := byte(0); i < 5; i++ {
		assert.Equal(t, []byte{i}, rxSink.delivered[i])
	}
}

// TestResegmentationUnderShrinkingBudget reproduces resegmentation: a
// retransmission that doesn't fit a budget is split into a first segment now
// and a last segment later, reassembling into the original SDU.
func TestResegmentationUnderShrinkingBudget(t *testing.T) {
	rxSink := &fakeSDUSink{}

	tx, _ := newTestEntity(t, &fakeSDUSink{}, nil)
	rx, rxTimers := newTestEntity(t, rxSink, nil)

	sdu := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	require.NoError(t, tx.WriteSDU(sdu))

	full, err := tx.ReadPDU(64)
	require.NoError(t, err)
	require.NotNil(t, full)

	// Force a gap so t-Reordering has something to report: send a second SDU
	// and deliver it first, withholding the first PDU.
	require.NoError(t, tx.WriteSDU([]byte{9, 9}))
	second, err := tx.ReadPDU(64)
	require.NoError(t, err)
	require.NoError(t, rx.WritePDU(second))

	rxTimers.fireLast()
	status, err := rx.ReadPDU(64)
	require.NoError(t, err)
	require.NotNil(t, status)
	require.NoError(t, tx.WritePDU(status))

	// Budget fits a 2-byte (no-SO) header plus 5 payload bytes: a first
	// segment, leaving a 5-byte remainder.
	seg1, err := tx.ReadPDU(7)
	require.NoError(t, err)
	require.NotNil(t, seg1)

	hdr1, n1, err := pdu.UnmarshalDataHeader(seg1, DefaultConfig().SNFieldLength)
	require.NoError(t, err)
	assert.Equal(t, pdu.FirstSegment, hdr1.SI)
	assert.Len(t, seg1[n1:], 5)

	require.NoError(t, rx.WritePDU(seg1))
	assert.Empty(t, rxSink.delivered)

	seg2, err := tx.ReadPDU(64)
	require.NoError(t, err)
	require.NotNil(t, seg2)

	hdr2, n2, err := pdu.UnmarshalDataHeader(seg2, DefaultConfig().SNFieldLength)
	require.NoError(t, err)
	assert.Equal(t, pdu.LastSegment, hdr2.SI)
	assert.EqualValues(t, 5, hdr2.SO)
	assert.Len(t, seg2[n2:], 5)

	require.NoError(t, rx.WritePDU(seg2))

	require.Len(t, rxSink.delivered, 2)
	assert.Equal(t, sdu, rxSink.delivered[0])
}

func TestWriteSDUAfterFaultReturnsErrFaulted(t *testing.T) {
	faultSink := &fakeFaultSink{}
	e, _ := newTestEntity(t, &fakeSDUSink{}, faultSink)

	e.faulted = true

	err := e.WriteSDU([]byte{1})
	assert.ErrorIs(t, err, ErrFaulted)
}

func TestResetClearsFaultAndState(t *testing.T) {
	e, _ := newTestEntity(t, &fakeSDUSink{}, nil)

	require.NoError(t, e.WriteSDU([]byte{1, 2, 3}))
	e.faulted = true

	e.Reset()

	assert.False(t, e.faulted)
	assert.True(t, e.txQ.empty())
	assert.Zero(t, e.txWin.occupancy())
}

// TestPollAckedStopsPollRetransmitTimer reproduces t-PollRetransmit's stop
// condition from the timers table: once a status report acks the SN that
// carried the poll bit, the running timer must be stopped rather than left
// to fire a spurious retransmission later.
func TestPollAckedStopsPollRetransmitTimer(t *testing.T) {
	tx, txTimers := newTestEntity(t, &fakeSDUSink{}, nil)

	require.NoError(t, tx.WriteSDU([]byte{1}))

	out, err := tx.ReadPDU(64)
	require.NoError(t, err)
	require.NotNil(t, out)

	hdr, _, err := pdu.UnmarshalDataHeader(out, DefaultConfig().SNFieldLength)
	require.NoError(t, err)
	require.True(t, hdr.Poll) // queue just drained, so poll was set and the timer armed

	status := pdu.StatusHeader{AckSN: 1}
	raw, err := pdu.MarshalStatus(status, DefaultConfig().SNFieldLength)
	require.NoError(t, err)
	require.NoError(t, tx.WritePDU(raw))

	txTimers.fireLast() // no-op: the poll-ack stopped the only running timer

	next, err := tx.ReadPDU(64)
	require.NoError(t, err)
	assert.Nil(t, next)
}

// TestMaxRetxExceededFaultsEntity reproduces the retx-exceeded escalation:
// with max_retx_thresh=1, a single nack of a never-acked SN is enough to
// cross the threshold, which must fault the entity and notify the FaultSink.
func TestMaxRetxExceededFaultsEntity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetxThresh = 1

	faultSink := &fakeFaultSink{}
	tx, err := NewEntity(cfg, 0, pool.New(), &fakeTimerService{}, nil, nil, &fakeSDUSink{}, faultSink)
	require.NoError(t, err)

	require.NoError(t, tx.WriteSDU([]byte{1}))
	out, err := tx.ReadPDU(64)
	require.NoError(t, err)
	require.NotNil(t, out)

	status := pdu.StatusHeader{AckSN: 1, Nacks: []pdu.NackRecord{{SN: 0}}}
	raw, err := pdu.MarshalStatus(status, cfg.SNFieldLength)
	require.NoError(t, err)

	require.NoError(t, tx.WritePDU(raw))

	require.Len(t, faultSink.faulted, 1)
	assert.EqualValues(t, 0, faultSink.faulted[0])

	err = tx.WriteSDU([]byte{2})
	assert.ErrorIs(t, err, ErrFaulted)
}

func TestGetBufferStateReflectsQueuedSDU(t *testing.T) {
	e, _ := newTestEntity(t, &fakeSDUSink{}, nil)

	n, err := e.GetBufferState()
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, e.WriteSDU([]byte{1, 2, 3}))

	n, err = e.GetBufferState()
	require.NoError(t, err)
	assert.Positive(t, n)
}
