// SPDX-FileCopyrightText: 2024 The srsgnb community
// SPDX-License-Identifier: MIT

package rlcam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ranstack/rlcam/pool"
)

func bufOf(t *testing.T, p pool.Pool, data []byte) *pool.Buffer {
	t.Helper()

	buf, err := p.Get(len(data))
	require.NoError(t, err)
	copy(buf.Msg, data)

	return buf
}

func TestReassemblyStateCompleteOnSingleFullSDU(t *testing.T) {
	p := pool.New()
	r := newReassemblyState()

	assert.False(t, r.complete())

	r.addFragment(0, bufOf(t, p, []byte{1, 2, 3}), true)
	assert.True(t, r.complete())

	out, err := r.assemble(p)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, out.Msg)
}

func TestReassemblyStateIncompleteWithGap(t *testing.T) {
	p := pool.New()
	r := newReassemblyState()

	r.addFragment(0, bufOf(t, p, []byte{1, 2}), false)
	r.addFragment(4, bufOf(t, p, []byte{5, 6}), true)

	assert.False(t, r.complete())
	assert.Equal(t, 6, r.totalLen)
}

func TestReassemblyStateCompletesOutOfOrder(t *testing.T) {
	p := pool.New()
	r := newReassemblyState()

	r.addFragment(3, bufOf(t, p, []byte{4, 5, 6}), true)
	assert.False(t, r.complete())

	r.addFragment(0, bufOf(t, p, []byte{1, 2, 3}), false)
	assert.True(t, r.complete())

	out, err := r.assemble(p)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, out.Msg)
}

func TestReassemblyStateOverlappingFragmentsIdempotent(t *testing.T) {
	p := pool.New()
	r := newReassemblyState()

	r.addFragment(0, bufOf(t, p, []byte{1, 2, 3}), false)
	r.addFragment(1, bufOf(t, p, []byte{2, 3}), false)
	r.addFragment(3, bufOf(t, p, []byte{4}), true)

	require.True(t, r.complete())
	require.Len(t, r.coverage, 1)
	assert.Equal(t, byteRange{Offset: 0, Length: 4}, r.coverage[0])
}

func TestMergeRangeCoalescesAdjacent(t *testing.T) {
	var ranges []byteRange
	ranges = mergeRange(ranges, byteRange{Offset: 0, Length: 2})
	ranges = mergeRange(ranges, byteRange{Offset: 2, Length: 2})

	require.Len(t, ranges, 1)
	assert.Equal(t, byteRange{Offset: 0, Length: 4}, ranges[0])
}

func TestMergeRangeKeepsDisjointSeparate(t *testing.T) {
	var ranges []byteRange
	ranges = mergeRange(ranges, byteRange{Offset: 0, Length: 2})
	ranges = mergeRange(ranges, byteRange{Offset: 5, Length: 2})

	require.Len(t, ranges, 2)
}
