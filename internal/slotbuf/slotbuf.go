// Package slotbuf implements the local-buffer slot shortcut: when
// sender and receiver are co-located on the same node, bulk data is
// handed off through a small fixed pool of in-memory slots instead of
// a portal round-trip, one condition variable per slot.
package slotbuf

import (
	"sync"

	"github.com/nanvix/libmpi/internal/mpierr"
)

// NumSlots bounds the pool; co-located transfers beyond this many
// in flight at once fail with ErrNoMem.
const NumSlots = 16

// slot is one reservable transfer cell. The done channel is created
// fresh by every Reserve and captured by the reserving sender, so a
// slot id recycled to a new transfer can never deliver the new
// transfer's completion to a stale waiter.
type slot struct {
	mu    sync.Mutex
	cond  *sync.Cond
	ready bool // payload written, waiting for receiver to claim it
	data  []byte
	done  chan mpierr.Code
}

// Reservation is a sender's handle on a reserved slot. The sender holds
// it across the whole local-shortcut exchange: Publish the payload,
// then Wait for the receiver's Finish to report the result code.
type Reservation struct {
	table *Table
	id    int
	done  chan mpierr.Code
}

// Table is the fixed pool of slots shared by all local ranks on a node.
type Table struct {
	mu    sync.Mutex
	slots [NumSlots]*slot
	free  []int
}

// New returns a pool with every slot free.
func New() *Table {
	t := &Table{}
	for i := range t.slots {
		s := &slot{}
		s.cond = sync.NewCond(&s.mu)
		t.slots[i] = s
		t.free = append(t.free, i)
	}
	return t
}

// Reserve claims a free slot for a sender, or reports ErrNoMem if the
// pool is exhausted.
func (t *Table) Reserve() (*Reservation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.free) == 0 {
		return nil, mpierr.New(mpierr.ErrNoMem, "slotbuf: pool exhausted")
	}
	id := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]

	done := make(chan mpierr.Code, 1)
	s := t.slots[id]
	s.mu.Lock()
	s.ready = false
	s.data = nil
	s.done = done
	s.mu.Unlock()
	return &Reservation{table: t, id: id, done: done}, nil
}

// ID returns the slot id to advertise in the request-to-send frame.
func (r *Reservation) ID() int { return r.id }

// Publish exposes the sender's payload through the slot and wakes any
// receiver already blocked in Await.
func (r *Reservation) Publish(data []byte) {
	s := r.table.slots[r.id]
	s.mu.Lock()
	s.data = data
	s.ready = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Wait blocks the sender until the receiver has consumed the slot and
// called Finish, returning the receiver's result code — the synchronous
// completion signal of the shortcut path, without a second mailbox
// round trip.
func (r *Reservation) Wait() mpierr.Code {
	return <-r.done
}

// Cancel returns an unconsumed slot to the pool. Only legal before the
// request-to-send frame has been dispatched (afterwards the receiver
// owns the slot's release via Finish).
func (r *Reservation) Cancel() {
	r.table.release(r.id)
}

// Await blocks until slot id's payload is published, copies it into
// dst, and reports how many bytes were copied. dst is sized by the
// caller to min(user_capacity, advertised_size), the same truncation
// arithmetic the portal path uses.
func (t *Table) Await(id int, dst []byte) int {
	s := t.slots[id]
	s.mu.Lock()
	for !s.ready {
		s.cond.Wait()
	}
	n := copy(dst, s.data)
	s.mu.Unlock()
	return n
}

// Finish completes a transfer on the receiver side: the result code is
// delivered to the sender blocked in Wait, and the slot returns to the
// free pool.
func (t *Table) Finish(id int, code mpierr.Code) {
	s := t.slots[id]
	s.mu.Lock()
	done := s.done
	s.done = nil
	s.ready = false
	s.data = nil
	s.mu.Unlock()

	if done != nil {
		done <- code
	}
	t.mu.Lock()
	t.free = append(t.free, id)
	t.mu.Unlock()
}

func (t *Table) release(id int) {
	s := t.slots[id]
	s.mu.Lock()
	s.done = nil
	s.ready = false
	s.data = nil
	s.mu.Unlock()

	t.mu.Lock()
	t.free = append(t.free, id)
	t.mu.Unlock()
}

// FreeCount reports how many slots are currently unreserved.
func (t *Table) FreeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.free)
}
