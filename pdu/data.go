// SPDX-FileCopyrightText: 2024 The srsgnb community
// SPDX-License-Identifier: MIT

package pdu

import (
	"encoding/binary"
	"fmt"

	"github.com/ranstack/rlcam/sn"
)

// DataHeader is the fixed-format header of an RLC AM data PDU.
//
//	 0                   1
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|D/C|P|SI |  ...  SN  ...       |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|      SO (if SI is middle/last)|
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
type DataHeader struct {
	Poll bool
	SI   SegmentInfo
	SN   sn.Num
	SO   uint16 // valid only when SI.hasExplicitSO(); 0 otherwise
}

// HeaderLen returns the wire length a data PDU header for si will occupy at
// the given SN field width, without requiring a full DataHeader value. The
// tx assembler uses this to size a transmission against a byte budget
// before it has decided on a concrete SN or poll bit.
func HeaderLen(si SegmentInfo, width sn.Width) int {
	return headerLen(si, width)
}

// headerLen returns the wire length of h for the given SN field width.
func headerLen(si SegmentInfo, width sn.Width) int {
	base := 2
	if width == sn.Width18 {
		base = 3
	}
	if si.hasExplicitSO() {
		base += 2
	}

	return base
}

// MarshalSize returns the number of bytes MarshalTo will write.
func (h DataHeader) MarshalSize(width sn.Width) int {
	return headerLen(h.SI, width)
}

// MarshalTo packs h into buf, returning the number of bytes written.
func (h DataHeader) MarshalTo(buf []byte, width sn.Width) (int, error) {
	n := headerLen(h.SI, width)
	if len(buf) < n {
		return 0, fmt.Errorf("%w: %d < %d", ErrBufferOverflow, len(buf), n)
	}

	snVal := uint32(h.SN)

	switch width {
	case sn.Width12:
		buf[0] = 0x80 // D/C = 1 (data)
		if h.Poll {
			buf[0] |= 0x40
		}
		buf[0] |= byte(h.SI) << 4
		buf[0] |= byte((snVal >> 8) & 0x0F)
		buf[1] = byte(snVal & 0xFF)
	case sn.Width18:
		buf[0] = 0x80
		if h.Poll {
			buf[0] |= 0x40
		}
		buf[0] |= byte(h.SI) << 4
		// bits 3-2 are the reserved R field, always written as zero.
		buf[0] |= byte((snVal >> 16) & 0x03)
		buf[1] = byte((snVal >> 8) & 0xFF)
		buf[2] = byte(snVal & 0xFF)
	case sn.Width10:
		buf[0] = 0x80
		if h.Poll {
			buf[0] |= 0x40
		}
		buf[0] |= byte(h.SI) << 4
		// bits 3-2 reserved, like the 18-bit layout, to byte-align a
		// narrower SN field; bits 1-0 carry SN[9:8].
		buf[0] |= byte((snVal >> 8) & 0x03)
		buf[1] = byte(snVal & 0xFF)
	default:
		return 0, fmt.Errorf("pdu: unsupported sn field width %d", width)
	}

	off := n - 2
	if h.SI.hasExplicitSO() {
		binary.BigEndian.PutUint16(buf[off:off+2], h.SO)
	}

	return n, nil
}

// Marshal packs h into a freshly allocated slice.
func (h DataHeader) Marshal(width sn.Width) ([]byte, error) {
	buf := make([]byte, h.MarshalSize(width))
	n, err := h.MarshalTo(buf, width)
	if err != nil {
		return nil, err
	}

	return buf[:n], nil
}

// UnmarshalDataHeader parses buf into a DataHeader, returning the number of
// header bytes consumed. Reserved bits that are set return ErrReservedBitsSet
// without partially applying the parse, per the decode-reject failure mode.
func UnmarshalDataHeader(buf []byte, width sn.Width) (DataHeader, int, error) {
	var h DataHeader

	if len(buf) < 1 {
		return h, 0, fmt.Errorf("%w: 0 < 1", ErrTruncated)
	}

	if buf[0]&0x80 == 0 {
		return h, 0, ErrNotDataPDU
	}

	h.Poll = buf[0]&0x40 != 0
	h.SI = SegmentInfo((buf[0] >> 4) & 0x03)

	var snVal uint32

	switch width {
	case sn.Width12:
		if len(buf) < 2 {
			return h, 0, fmt.Errorf("%w: %d < 2", ErrTruncated, len(buf))
		}
		snVal = uint32(buf[0]&0x0F)<<8 | uint32(buf[1])
	case sn.Width18:
		if len(buf) < 3 {
			return h, 0, fmt.Errorf("%w: %d < 3", ErrTruncated, len(buf))
		}
		if buf[0]&0x0C != 0 {
			return h, 0, ErrReservedBitsSet
		}
		snVal = uint32(buf[0]&0x03)<<16 | uint32(buf[1])<<8 | uint32(buf[2])
	case sn.Width10:
		if len(buf) < 2 {
			return h, 0, fmt.Errorf("%w: %d < 2", ErrTruncated, len(buf))
		}
		if buf[0]&0x0C != 0 {
			return h, 0, ErrReservedBitsSet
		}
		snVal = uint32(buf[0]&0x03)<<8 | uint32(buf[1])
	default:
		return h, 0, fmt.Errorf("pdu: unsupported sn field width %d", width)
	}

	h.SN = sn.Num(snVal)

	n := headerLen(h.SI, width)
	if h.SI.hasExplicitSO() {
		if len(buf) < n {
			return h, 0, fmt.Errorf("%w: %d < %d", ErrTruncated, len(buf), n)
		}
		h.SO = binary.BigEndian.Uint16(buf[n-2 : n])
	}

	return h, n, nil
}
