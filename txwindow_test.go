// SPDX-FileCopyrightText: 2024 The srsgnb community
// SPDX-License-Identifier: MIT

package rlcam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ranstack/rlcam/sn"
)

func TestTxWindowAssignAdvancesVTS(t *testing.T) {
	w := newTxWindow(sn.Width12)

	rec := w.assign(sduID(1), 0, 10, false)
	assert.EqualValues(t, 0, rec.sn)
	assert.EqualValues(t, 1, w.vtS)

	rec2 := w.assign(sduID(1), 10, 5, true)
	assert.EqualValues(t, 1, rec2.sn)
	assert.True(t, rec2.polled)
}

func TestTxWindowCanAssignFreshRespectsWindowSize(t *testing.T) {
	w := newTxWindow(sn.Width12)

	for i := uint32(0); i < w.windowSize; i++ {
		require.True(t, w.canAssignFresh())
		w.assign(sduID(1), 0, 1, false)
	}

	assert.False(t, w.canAssignFresh())
}

func TestTxWindowApplyStatusAcksContiguousPrefix(t *testing.T) {
	w := newTxWindow(sn.Width12)
	w.assign(sduID(1), 0, 1, false)
	w.assign(sduID(2), 0, 1, false)
	w.assign(sduID(3), 0, 1, false)

	res := w.applyStatus(sn.Num(3), nil, 8)

	assert.Equal(t, []sn.Num{0, 1, 2}, res.ackedSNs)
	assert.EqualValues(t, 3, w.vtA)
	assert.Zero(t, w.occupancy())
}

func TestTxWindowApplyStatusNackBlocksAckAdvance(t *testing.T) {
	w := newTxWindow(sn.Width12)
	w.assign(sduID(1), 0, 1, false)
	w.assign(sduID(2), 0, 1, false)

	res := w.applyStatus(sn.Num(2), map[sn.Num][]byteRange{0: nil}, 8)

	assert.Empty(t, res.ackedSNs)
	assert.EqualValues(t, 0, w.vtA)

	n, rng, ok := w.nextRetx()
	require.True(t, ok)
	assert.EqualValues(t, 0, n)
	assert.Equal(t, byteRange{Offset: 0, Length: 1}, rng)
}

func TestTxWindowApplyStatusReportsRetxExceeded(t *testing.T) {
	w := newTxWindow(sn.Width12)
	w.assign(sduID(1), 0, 1, false)

	for i := 0; i < 3; i++ {
		w.applyStatus(sn.Num(1), map[sn.Num][]byteRange{0: nil}, 2)
		n, _, ok := w.nextRetx()
		require.True(t, ok)
		w.splitRetxHead(n, nil)
	}

	res := w.applyStatus(sn.Num(1), map[sn.Num][]byteRange{0: nil}, 2)
	assert.Equal(t, []sn.Num{0}, res.retxExceeded)
}

func TestTxWindowSplitRetxHeadKeepsRemainderAtFront(t *testing.T) {
	w := newTxWindow(sn.Width12)
	w.assign(sduID(1), 0, 10, false)
	w.enqueueFullRetx(0)

	w.splitRetxHead(0, &byteRange{Offset: 5, Length: 5})

	n, rng, ok := w.nextRetx()
	require.True(t, ok)
	assert.EqualValues(t, 0, n)
	assert.Equal(t, byteRange{Offset: 5, Length: 5}, rng)
}

func TestTxWindowHighestUnacked(t *testing.T) {
	w := newTxWindow(sn.Width12)
	w.assign(sduID(1), 0, 1, false)
	w.assign(sduID(1), 0, 1, false)
	w.assign(sduID(1), 0, 1, false)

	rec, _ := w.get(1)
	rec.acked = true

	n, ok := w.highestUnacked()
	require.True(t, ok)
	assert.EqualValues(t, 2, n)
}

func TestTxWindowReset(t *testing.T) {
	w := newTxWindow(sn.Width12)
	w.assign(sduID(1), 0, 1, false)
	w.reset()

	assert.Zero(t, w.vtA)
	assert.Zero(t, w.vtS)
	assert.Zero(t, w.occupancy())
}
