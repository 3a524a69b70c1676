// SPDX-FileCopyrightText: 2024 The srsgnb community
// SPDX-License-Identifier: MIT

package pdu

import (
	"fmt"

	"github.com/ranstack/rlcam/sn"
)

// SOEndOfPDU is the SO_END sentinel meaning "to the end of the PDU", used
// when the last segment covering a byte range has not yet been observed.
const SOEndOfPDU = 0xFFFF

// NackRecord describes one gap reported by a status PDU. HasSORange is false
// for a fully missing SN, in which case SOStart/SOEnd are unused.
type NackRecord struct {
	SN         sn.Num
	HasSORange bool
	SOStart    uint16
	SOEnd      uint16
}

// StatusHeader is the parsed form of an RLC AM status control PDU.
type StatusHeader struct {
	AckSN sn.Num
	Nacks []NackRecord
}

// cptStatus is the 3-bit control PDU type identifying a status report.
const cptStatus = 0

// MarshalStatus packs h into a freshly allocated byte slice.
func MarshalStatus(h StatusHeader, width sn.Width) ([]byte, error) {
	w := bitWriter{}

	// D/C = 0 (control), CPT = 0 (status).
	w.writeBits(0, 1)
	w.writeBits(cptStatus, 3)
	w.writeBits(uint32(h.AckSN), uint8(width))
	w.padToByte()

	if len(h.Nacks) > 0 {
		w.writeBits(1, 1) // E1: at least one NACK follows
	} else {
		w.writeBits(0, 1)
	}
	w.padToByte()

	for i, nack := range h.Nacks {
		w.writeBits(uint32(nack.SN), uint8(width))

		more := uint32(0)
		if i < len(h.Nacks)-1 {
			more = 1
		}
		w.writeBits(more, 1)

		hasRange := uint32(0)
		if nack.HasSORange {
			hasRange = 1
		}
		w.writeBits(hasRange, 1)
		w.padToByte()

		if nack.HasSORange {
			w.writeBits(uint32(nack.SOStart), 16)
			w.writeBits(uint32(nack.SOEnd), 16)
		}
	}

	return w.bytes(), nil
}

// UnmarshalStatus parses buf as a status control PDU.
func UnmarshalStatus(buf []byte, width sn.Width) (StatusHeader, error) {
	var h StatusHeader

	if len(buf) < 1 {
		return h, fmt.Errorf("%w: 0 < 1", ErrTruncated)
	}
	if buf[0]&0x80 != 0 {
		return h, ErrNotControlPDU
	}

	r := newBitReader(buf)

	_, err := r.readBits(1) // D/C, already checked above
	if err != nil {
		return h, err
	}

	cpt, err := r.readBits(3)
	if err != nil {
		return h, err
	}
	if cpt != cptStatus {
		return h, ErrUnknownCPT
	}

	ackSN, err := r.readBits(uint8(width))
	if err != nil {
		return h, err
	}
	h.AckSN = sn.Num(ackSN)
	r.alignToByte()

	e1, err := r.readBits(1)
	if err != nil {
		return h, err
	}
	r.alignToByte()

	for e1 != 0 {
		nackSN, err := r.readBits(uint8(width))
		if err != nil {
			return h, err
		}

		more, err := r.readBits(1)
		if err != nil {
			return h, err
		}

		hasRange, err := r.readBits(1)
		if err != nil {
			return h, err
		}
		r.alignToByte()

		rec := NackRecord{SN: sn.Num(nackSN), HasSORange: hasRange != 0}
		if rec.HasSORange {
			soStart, err := r.readBits(16)
			if err != nil {
				return h, err
			}
			soEnd, err := r.readBits(16)
			if err != nil {
				return h, err
			}
			rec.SOStart = uint16(soStart)
			rec.SOEnd = uint16(soEnd)
		}

		h.Nacks = append(h.Nacks, rec)
		e1 = more
	}

	return h, nil
}
