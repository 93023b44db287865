package objutil

import "sync"

// blockSize is the fixed growth increment used by the pointer table,
// mirroring ptr_array_t's block_size-driven growth.
const blockSize = 32

// Table is a dense, indexed, mutex-guarded container of arbitrary
// values with a lowest-free-index optimization. It backs the process
// registry and any other registry that needs stable, reusable indices
// (e.g. communicator/group slots in a future extension).
type Table struct {
	mu         sync.Mutex
	slots      []interface{}
	lowestFree int
}

// NewTable returns an empty table pre-sized to initial entries.
func NewTable(initial int) *Table {
	if initial < 0 {
		initial = 0
	}
	return &Table{
		slots:      make([]interface{}, initial),
		lowestFree: 0,
	}
}

// Insert stores ptr at the lowest known free index, growing the backing
// array by blockSize if none is available, and returns that index.
func (t *Table) Insert(ptr interface{}) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.findFreeLocked()
	t.slots[idx] = ptr
	t.lowestFree = idx + 1
	return idx
}

// findFreeLocked returns an index known to be nil, growing the slice if
// necessary. Caller must hold t.mu.
func (t *Table) findFreeLocked() int {
	for i := t.lowestFree; i < len(t.slots); i++ {
		if t.slots[i] == nil {
			return i
		}
	}
	// No free slot from lowestFree onward: grow by blockSize and use
	// the first of the new block. Indices below lowestFree may still be
	// free from an out-of-order Remove; a full Insert-heavy workload
	// eventually rescans from zero once the free list caches out, but
	// normal amortized O(1) behavior holds as long as lowestFree tracks
	// the frontier.
	grown := len(t.slots) + blockSize
	newSlots := make([]interface{}, grown)
	copy(newSlots, t.slots)
	t.slots = newSlots
	return len(t.slots) - blockSize
}

// Remove clears the slot at index, making it available for reuse by a
// later Insert. Removing an already-empty or out-of-range index is a
// no-op.
func (t *Table) Remove(index int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.slots) {
		return
	}
	t.slots[index] = nil
	if index < t.lowestFree {
		t.lowestFree = index
	}
}

// Set overwrites the value already occupying index, without touching
// lowestFree bookkeeping. Used when a caller needs to reserve an index
// with Insert before the final value it should hold is ready to
// construct (e.g. a value that embeds its own index).
func (t *Table) Set(index int, ptr interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.slots) {
		return
	}
	t.slots[index] = ptr
}

// Get returns the value at index and whether it is present.
func (t *Table) Get(index int) (interface{}, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.slots) {
		return nil, false
	}
	v := t.slots[index]
	return v, v != nil
}

// MaxSize returns a snapshot of the current backing capacity, for
// callers that want to iterate without holding the lock for the whole
// walk (they must tolerate entries disappearing concurrently).
func (t *Table) MaxSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

// Each calls fn for every occupied slot, holding the table lock for the
// duration of the snapshot copy only, not for each callback invocation.
func (t *Table) Each(fn func(index int, value interface{})) {
	t.mu.Lock()
	snapshot := make([]interface{}, len(t.slots))
	copy(snapshot, t.slots)
	t.mu.Unlock()

	for i, v := range snapshot {
		if v != nil {
			fn(i, v)
		}
	}
}
