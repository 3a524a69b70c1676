// SPDX-FileCopyrightText: 2024 The srsgnb community
// SPDX-License-Identifier: MIT

package rlcam

import (
	"github.com/ranstack/rlcam/pool"
)

// rxFragment is one received byte range for a given SN, holding its own
// pool-owned copy of the payload so the originating PDU buffer can be
// released independently of reassembly.
type rxFragment struct {
	offset int
	buf    *pool.Buffer
}

// reassemblyState tracks everything received so far for one SN: the
// fragments themselves, plus a merged, sorted coverage list used only to
// test for completeness without re-scanning the raw fragment list.
type reassemblyState struct {
	fragments []rxFragment
	coverage  []byteRange
	sawLast   bool
	totalLen  int // -1 until a full_sdu or last_segment fragment has arrived
}

func newReassemblyState() *reassemblyState {
	return &reassemblyState{totalLen: -1}
}

// addFragment records a newly received [offset, offset+len(buf.Msg)) range.
// last marks whether this fragment's SI fixed the SDU's total length.
func (r *reassemblyState) addFragment(offset int, buf *pool.Buffer, last bool) {
	length := buf.Len()
	r.fragments = append(r.fragments, rxFragment{offset: offset, buf: buf})
	r.coverage = mergeRange(r.coverage, byteRange{Offset: offset, Length: length})

	if last {
		r.sawLast = true
		r.totalLen = offset + length
	}
}

// complete reports whether the merged coverage spans [0, totalLen) with no
// gaps -- the only condition under which an SDU is releasable.
func (r *reassemblyState) complete() bool {
	if !r.sawLast || r.totalLen < 0 {
		return false
	}
	if len(r.coverage) != 1 {
		return false
	}

	return r.coverage[0].Offset == 0 && r.coverage[0].Length == r.totalLen
}

// assemble copies every fragment into one freshly allocated buffer of
// totalLen bytes, releases the fragment buffers back to p, and returns the
// assembled SDU. Call only once complete() is true.
func (r *reassemblyState) assemble(p pool.Pool) (*pool.Buffer, error) {
	out, err := p.Get(r.totalLen)
	if err != nil {
		return nil, err
	}

	for _, f := range r.fragments {
		copy(out.Msg[f.offset:], f.buf.Msg)
		p.Put(f.buf)
	}

	r.fragments = nil

	return out, nil
}

// mergeRange inserts next into ranges, which the caller must already have
// sorted and merged by offset (every prior call leaves it in that state),
// coalescing any overlap or adjacency. Duplicate or overlapping
// retransmitted segments are idempotent: they widen coverage at most to
// their own extent. Insertion position is found by a linear scan rather
// than a sort, since ranges is already ordered.
func mergeRange(ranges []byteRange, next byteRange) []byteRange {
	pos := 0
	for pos < len(ranges) && ranges[pos].Offset < next.Offset {
		pos++
	}

	widened := make([]byteRange, 0, len(ranges)+1)
	widened = append(widened, ranges[:pos]...)
	widened = append(widened, next)
	widened = append(widened, ranges[pos:]...)

	merged := widened[:0]
	for _, r := range widened {
		if len(merged) == 0 {
			merged = append(merged, r)

			continue
		}

		last := &merged[len(merged)-1]
		lastEnd := last.Offset + last.Length
		if r.Offset > lastEnd {
			merged = append(merged, r)

			continue
		}

		end := r.Offset + r.Length
		if end > lastEnd {
			last.Length = end - last.Offset
		}
	}

	return merged
}
