// SPDX-FileCopyrightText: 2024 The srsgnb community
// SPDX-License-Identifier: MIT

package rlcam

import "github.com/ranstack/rlcam/pool"

// sduID identifies one SDU inside an entity's sduTable. PDU fragments and
// tx window records carry a sduID plus a byte range rather than a pointer,
// so the window stays a plain value-addressable map -- easy to assert over
// in tests, and safe to copy for diagnostics without aliasing buffers.
type sduID uint64

// sduEntry is one arena slot: the owned buffer plus a reference count of how
// many still-unacked tx PDU records cover some range of it. The buffer is
// released to the pool only once refs drops to zero.
type sduEntry struct {
	buf  *pool.Buffer
	size int
	refs int
}

// sduTable is the arena backing every tx SDU an entity currently holds,
// whether still queued or in flight. The rx side keeps its own fragment
// buffers (rxFragment) and does not use this table.
type sduTable struct {
	entries map[sduID]*sduEntry
	next    sduID
	pool    pool.Pool
}

func newSDUTable(p pool.Pool) *sduTable {
	return &sduTable{entries: make(map[sduID]*sduEntry), pool: p}
}

// insert takes ownership of buf and returns a fresh id for it.
func (t *sduTable) insert(buf *pool.Buffer, size int) sduID {
	id := t.next
	t.next++
	t.entries[id] = &sduEntry{buf: buf, size: size}

	return id
}

func (t *sduTable) get(id sduID) (*sduEntry, bool) {
	e, ok := t.entries[id]

	return e, ok
}

// addRef records one more tx PDU record covering part of id.
func (t *sduTable) addRef(id sduID) {
	if e, ok := t.entries[id]; ok {
		e.refs++
	}
}

// release drops one reference to id, returning the buffer to the pool and
// forgetting id once no record covers it any longer.
func (t *sduTable) release(id sduID) {
	e, ok := t.entries[id]
	if !ok {
		return
	}

	e.refs--
	if e.refs <= 0 {
		t.pool.Put(e.buf)
		delete(t.entries, id)
	}
}

// reset releases every outstanding buffer back to the pool and forgets all
// entries, for the entity-wide reset operation.
func (t *sduTable) reset() {
	for _, e := range t.entries {
		t.pool.Put(e.buf)
	}

	t.entries = make(map[sduID]*sduEntry)
	t.next = 0
}

// bytes returns the payload slice [offset, offset+length) of the SDU stored
// as id.
func (t *sduTable) bytes(id sduID, offset, length int) []byte {
	e := t.entries[id]

	return e.buf.Msg[offset : offset+length]
}

// queuedSDU is one FIFO entry in the tx SDU queue: an SDU not yet (fully)
// handed to the tx window. consumed tracks how many leading bytes have
// already been copied into some earlier PDU, for the case where a segmented
// SDU straddles multiple read_pdu calls.
type queuedSDU struct {
	id       sduID
	size     int
	consumed int
}

// remaining returns the byte range of q not yet pulled into any PDU.
func (q queuedSDU) remaining() int {
	return q.size - q.consumed
}

// txSDUQueue is the FIFO of whole SDUs awaiting transmission, carrying a
// running byte counter of unsent payload bytes. get_buffer_state walks the
// items instead, since it also adds a header per item.
type txSDUQueue struct {
	items []queuedSDU
	bytes int
}

func (q *txSDUQueue) push(id sduID, size int) {
	q.items = append(q.items, queuedSDU{id: id, size: size})
	q.bytes += size
}

func (q *txSDUQueue) empty() bool {
	return len(q.items) == 0
}

func (q *txSDUQueue) front() *queuedSDU {
	if len(q.items) == 0 {
		return nil
	}

	return &q.items[0]
}

// advance records that n more bytes of the front SDU were consumed,
// dropping it from the queue once it is fully drained.
func (q *txSDUQueue) advance(n int) {
	if len(q.items) == 0 {
		return
	}

	q.items[0].consumed += n
	q.bytes -= n

	if q.items[0].remaining() <= 0 {
		q.items = q.items[1:]
	}
}
